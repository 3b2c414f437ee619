// Package provider delivers location and heading fixes to the marker.
package provider

import (
	"context"
	"errors"

	"github.com/OCAP2/locationmarker/pkg/core"
)

// ErrNotAuthorized is reported when streaming starts without permission
var ErrNotAuthorized = errors.New("location updates not authorized")

// Delegate receives everything a Provider emits
type Delegate interface {
	DidUpdateLocations(fixes []core.LocationFix)
	DidUpdateHeading(fix core.HeadingFix)
	DidChangeAuthorization(status core.AuthorizationStatus)
	DidFail(err error)
}

// Provider is a push source of location and heading fixes with explicit
// start and stop controls for each stream.
type Provider interface {
	SetDelegate(d Delegate)
	AuthorizationStatus() core.AuthorizationStatus
	RequestWhenInUseAuthorization()
	RequestAlwaysAuthorization()
	StartUpdatingLocation()
	StopUpdatingLocation()
	StartUpdatingHeading()
	StopUpdatingHeading()
}

// Sink accepts raw fixes from a Source
type Sink interface {
	Location(fix core.LocationFix)
	Heading(fix core.HeadingFix)
	Fail(err error)
}

// Source produces raw fixes until ctx is cancelled or the feed ends.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
