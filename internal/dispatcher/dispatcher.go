package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Commands routed to the marker.
const (
	CommandLocation      = "location"
	CommandHeading       = "heading"
	CommandAuthorization = "authorization"
	CommandFailure       = "failure"
	CommandProjection    = "projection"
	CommandTap           = "tap"
)

var (
	// ErrUnknownCommand is returned when no handler is registered for a command
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a non-blocking queue drops an event
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned for events dispatched after Close
	ErrClosed = errors.New("dispatcher closed")
)

// Event represents an incoming notification for the marker.
type Event struct {
	Command   string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures the dispatcher lane or a handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	coalesced  bool
}

// Buffered makes dispatch async with a queue of the given size. All handlers
// share the queue and run one at a time on a single goroutine, in the order
// events were dispatched. Only meaningful for New.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered dispatcher block when the queue is full instead
// of dropping. Only meaningful for New.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler. Only meaningful for Register.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Coalesced lets one queued event of the command stand for any number
// dispatched before it runs. Later events are absorbed, so the handler must
// read current state rather than rely on the payload. Only meaningful for
// Register on a buffered dispatcher.
func Coalesced() Option {
	return func(c *config) {
		c.coalesced = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers  map[string]HandlerFunc
	coalesced map[string]bool
	logger    Logger

	blocking bool
	queue    chan Event
	done     chan struct{}

	metrics metrics

	// commands with an event waiting in the queue, for Coalesced handlers
	pmu     sync.Mutex
	pending map[string]bool

	// handlers are guarded separately so the lane never waits on Close
	hmu    sync.RWMutex
	mu     sync.RWMutex
	closed bool
}

// New creates a new Dispatcher with the given logger. Without Buffered,
// Dispatch runs handlers on the caller's goroutine.
func New(logger Logger, opts ...Option) (*Dispatcher, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	d := &Dispatcher{
		handlers:  make(map[string]HandlerFunc),
		coalesced: make(map[string]bool),
		pending:   make(map[string]bool),
		logger:    logger,
		blocking:  cfg.blocking,
	}
	if cfg.bufferSize > 0 {
		d.queue = make(chan Event, cfg.bufferSize)
		d.done = make(chan struct{})
	}

	var err error
	if d.metrics, err = newMetrics(d.queueLen); err != nil {
		return nil, err
	}

	if d.queue != nil {
		go d.loop()
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Handlers must be registered before events are dispatched.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.hmu.Lock()
	defer d.hmu.Unlock()
	d.handlers[command] = handler
	d.coalesced[command] = cfg.coalesced
}

// Dispatch routes an event to its registered handler. Buffered dispatchers
// return "queued" once the event is accepted.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.hmu.RLock()
	h, ok := d.handlers[e.Command]
	d.hmu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if d.queue == nil {
		d.mu.RLock()
		closed := d.closed
		d.mu.RUnlock()
		if closed {
			return nil, ErrClosed
		}

		result, err := h(e)
		d.metrics.processed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", e.Command)))
		return result, err
	}

	d.hmu.RLock()
	coalesce := d.coalesced[e.Command]
	d.hmu.RUnlock()
	if coalesce && !d.markPending(e.Command) {
		d.metrics.coalesced.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", e.Command)))
		return "coalesced", nil
	}

	result, err := d.enqueue(e)
	if err != nil && coalesce {
		d.clearPending(e.Command)
	}
	return result, err
}

// markPending reports whether command had no event waiting and marks it
func (d *Dispatcher) markPending(command string) bool {
	d.pmu.Lock()
	defer d.pmu.Unlock()
	if d.pending[command] {
		return false
	}
	d.pending[command] = true
	return true
}

func (d *Dispatcher) clearPending(command string) {
	d.pmu.Lock()
	delete(d.pending, command)
	d.pmu.Unlock()
}

func (d *Dispatcher) queueLen() int {
	if d.queue == nil {
		return 0
	}
	return len(d.queue)
}

func (d *Dispatcher) enqueue(e Event) (any, error) {
	// Hold the read lock while sending so Close cannot close the queue
	// underneath a pending send.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}

	if d.blocking {
		d.queue <- e
		return "queued", nil
	}

	select {
	case d.queue <- e:
		return "queued", nil
	default:
		d.metrics.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", e.Command)))
		return nil, fmt.Errorf("%w: %s", ErrQueueFull, e.Command)
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for e := range d.queue {
		d.hmu.RLock()
		h := d.handlers[e.Command]
		coalesce := d.coalesced[e.Command]
		d.hmu.RUnlock()

		// cleared before running so events dispatched meanwhile queue again
		if coalesce {
			d.clearPending(e.Command)
		}

		if _, err := h(e); err != nil {
			d.logger.Error("event failed", "command", e.Command, "error", err)
		}
		d.metrics.processed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", e.Command)))
	}
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.hmu.RLock()
	defer d.hmu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Close stops accepting events and waits until queued events are handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.queue != nil {
		close(d.queue)
	}
	d.mu.Unlock()

	if d.done != nil {
		<-d.done
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "age", start.Sub(e.Timestamp))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
