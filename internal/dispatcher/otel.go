package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/locationmarker/internal/dispatcher"

type metrics struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	coalesced metric.Int64Counter
}

// newMetrics registers the lane instruments on the global meter, which is a
// no-op until a meter provider is installed.
func newMetrics(queueLen func() int) (metrics, error) {
	m := otel.Meter(instrumentationName)
	var out metrics

	queueSize, err := m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return out, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(queueSize, int64(queueLen()))
		return nil
	}, queueSize)
	if err != nil {
		return out, fmt.Errorf("registering queue callback: %w", err)
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&out.processed, "dispatcher.events.processed", "Total events processed"},
		{&out.dropped, "dispatcher.events.dropped", "Total events dropped due to full queue"},
		{&out.coalesced, "dispatcher.events.coalesced", "Events absorbed by one already queued"},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return out, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}
	return out, nil
}
