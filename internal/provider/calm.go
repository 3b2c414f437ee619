package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/pkg/core"
)

// DefaultDistanceFilter is the distance in meters the device has to move
// before another location fix is delivered.
const DefaultDistanceFilter = 50.0

// Calm is a Provider that only reports meaningful movement. Location fixes
// closer than the distance filter to the last delivered fix are dropped;
// headings pass through unchanged.
type Calm struct {
	source         Source
	distanceFilter float64
	grant          core.AuthorizationStatus
	logger         Logger

	mu        sync.Mutex
	delegate  Delegate
	status    core.AuthorizationStatus
	locations bool
	headings  bool
	last      *core.Coordinate
	cancel    context.CancelFunc
	done      chan struct{}
}

// CalmOption configures a Calm provider
type CalmOption func(*Calm)

// WithDistanceFilter sets the minimum movement in meters between fixes.
// Zero delivers every fix.
func WithDistanceFilter(meters float64) CalmOption {
	return func(c *Calm) {
		if meters >= 0 {
			c.distanceFilter = meters
		}
	}
}

// WithGrant sets the authorization a permission request resolves to
func WithGrant(status core.AuthorizationStatus) CalmOption {
	return func(c *Calm) {
		c.grant = status
	}
}

// WithLogger sets the logger
func WithLogger(l Logger) CalmOption {
	return func(c *Calm) {
		c.logger = l
	}
}

// NewCalm creates a Calm provider reading from source
func NewCalm(source Source, opts ...CalmOption) *Calm {
	c := &Calm{
		source:         source,
		distanceFilter: DefaultDistanceFilter,
		grant:          core.AuthorizationWhenInUse,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDelegate sets the receiver of fixes and failures
func (c *Calm) SetDelegate(d Delegate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate = d
}

// AuthorizationStatus returns the current permission state
func (c *Calm) AuthorizationStatus() core.AuthorizationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RequestWhenInUseAuthorization asks for foreground permission
func (c *Calm) RequestWhenInUseAuthorization() {
	granted := c.grant
	if granted == core.AuthorizationAlways {
		granted = core.AuthorizationWhenInUse
	}
	c.resolve(granted)
}

// RequestAlwaysAuthorization asks for background permission
func (c *Calm) RequestAlwaysAuthorization() {
	c.resolve(c.grant)
}

func (c *Calm) resolve(granted core.AuthorizationStatus) {
	c.mu.Lock()
	if c.status != core.AuthorizationNotDetermined && c.status != core.AuthorizationWhenInUse {
		c.mu.Unlock()
		return
	}
	if c.status == granted {
		c.mu.Unlock()
		return
	}
	c.status = granted
	d := c.delegate
	c.mu.Unlock()

	c.logger.Info("location authorization changed", "status", granted.String())
	if d != nil {
		d.DidChangeAuthorization(granted)
	}
}

// StartUpdatingLocation begins delivering location fixes
func (c *Calm) StartUpdatingLocation() {
	c.start(func() {
		c.locations = true
		c.last = nil
	})
}

// StopUpdatingLocation stops delivering location fixes
func (c *Calm) StopUpdatingLocation() {
	c.stop(func() { c.locations = false })
}

// StartUpdatingHeading begins delivering heading fixes
func (c *Calm) StartUpdatingHeading() {
	c.start(func() { c.headings = true })
}

// StopUpdatingHeading stops delivering heading fixes
func (c *Calm) StopUpdatingHeading() {
	c.stop(func() { c.headings = false })
}

// Done is closed once the source has returned. It is nil before the first start.
func (c *Calm) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Calm) start(enable func()) {
	c.mu.Lock()
	if !c.status.Authorized() {
		d := c.delegate
		c.mu.Unlock()
		c.logger.Error("cannot start location updates", "status", c.AuthorizationStatus().String())
		if d != nil {
			d.DidFail(ErrNotAuthorized)
		}
		return
	}
	enable()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(ctx, cancel, done)
}

func (c *Calm) stop(disable func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	disable()
	if c.locations || c.headings || c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
}

func (c *Calm) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	err := c.source.Run(ctx, c)

	c.mu.Lock()
	if c.done == done {
		c.cancel = nil
	}
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		c.Fail(err)
	}
}

// Location implements Sink
func (c *Calm) Location(fix core.LocationFix) {
	c.mu.Lock()
	if !c.locations {
		c.mu.Unlock()
		return
	}
	if c.last != nil && geo.Distance(*c.last, fix.Coordinate) < c.distanceFilter {
		c.mu.Unlock()
		return
	}
	coord := fix.Coordinate
	c.last = &coord
	d := c.delegate
	c.mu.Unlock()

	if d != nil {
		d.DidUpdateLocations([]core.LocationFix{fix})
	}
}

// Heading implements Sink
func (c *Calm) Heading(fix core.HeadingFix) {
	c.mu.Lock()
	enabled := c.headings
	d := c.delegate
	c.mu.Unlock()

	if enabled && d != nil {
		d.DidUpdateHeading(fix)
	}
}

// Fail implements Sink. Failures are passed on untouched.
func (c *Calm) Fail(err error) {
	c.mu.Lock()
	d := c.delegate
	c.mu.Unlock()

	c.logger.Error("location delivery failed", "error", err)
	if d != nil {
		d.DidFail(err)
	}
}
