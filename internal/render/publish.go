package render

import (
	"context"
	"log/slog"
	"time"

	"github.com/OCAP2/locationmarker/internal/marker"
	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/OCAP2/locationmarker/pkg/streaming"
	"github.com/redis/go-redis/v9"
)

const publishTimeout = time.Second

// Publisher is the part of a Redis client the Publish renderer uses.
// *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publish is a renderer that publishes every committed transaction as a
// geometry envelope on a Redis channel, for render clients that sit behind
// a broker rather than on the websocket hub.
type Publish struct {
	client   Publisher
	channel  string
	params   marker.Params
	snapshot *marker.Snapshot
	logger   *slog.Logger
}

// NewPublish creates a Publish renderer
func NewPublish(client Publisher, channel string, params marker.Params, logger *slog.Logger) *Publish {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publish{
		client:   client,
		channel:  channel,
		params:   params,
		snapshot: marker.NewSnapshot(params),
		logger:   logger,
	}
}

// OpenRedis returns nil when addr is empty
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Transaction implements marker.Renderer. A failed publish is logged and
// the geometry is still tracked, so the next commit carries the full state.
func (p *Publish) Transaction(suppressAnimation bool, writes func(marker.Layer)) {
	writes(p.snapshot.Layer(nil))

	data, err := encodeGeometry(p.params, p.snapshot.Geometry(), suppressAnimation)
	if err != nil {
		p.logger.Error("encoding geometry", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Error("publishing geometry", "channel", p.channel, "error", err)
	}
}

func encodeGeometry(params marker.Params, g core.MarkerGeometry, suppressAnimation bool) ([]byte, error) {
	return streaming.Encode(streaming.TypeGeometry, streaming.GeometryPayload{
		Geometry:          g,
		SuppressAnimation: suppressAnimation,
		ArrowOutline:      marker.ArrowOutlineJSON(params, g),
	})
}
