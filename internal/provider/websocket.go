package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/OCAP2/locationmarker/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

// DeviceError is a failure reported by the device at the far end of a feed
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string {
	return "device error: " + e.Message
}

// WebsocketSource reads fixes from a device feed. Every message is a
// streaming.Envelope of type location, heading or error.
type WebsocketSource struct {
	URL    string
	Dialer *ws.Dialer
	Logger Logger
}

// NewWebsocketSource creates a source for the feed at rawURL
func NewWebsocketSource(rawURL string, logger Logger) *WebsocketSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketSource{URL: rawURL, Dialer: ws.DefaultDialer, Logger: logger}
}

// Run implements Source
func (s *WebsocketSource) Run(ctx context.Context, sink Sink) error {
	conn, _, err := s.Dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(
				ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			)
			_ = conn.Close()
		case <-stop:
			_ = conn.Close()
		}
	}()

	s.Logger.Info("device feed connected", "url", s.URL)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				s.Logger.Info("device feed closed")
				return nil
			}
			return fmt.Errorf("reading device feed: %w", err)
		}

		if err := s.handle(message, sink); err != nil {
			s.Logger.Debug("skipping feed message", "error", err, "raw", string(message))
		}
	}
}

var errUnknownMessage = errors.New("unknown message type")

func (s *WebsocketSource) handle(message []byte, sink Sink) error {
	env, err := streaming.Decode(message)
	if err != nil {
		return err
	}

	switch env.Type {
	case streaming.TypeLocation:
		var fix core.LocationFix
		if err := json.Unmarshal(env.Payload, &fix); err != nil {
			return fmt.Errorf("invalid location payload: %w", err)
		}
		sink.Location(fix)
	case streaming.TypeHeading:
		var fix core.HeadingFix
		if err := json.Unmarshal(env.Payload, &fix); err != nil {
			return fmt.Errorf("invalid heading payload: %w", err)
		}
		sink.Heading(fix)
	case streaming.TypeError:
		var p streaming.ErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("invalid error payload: %w", err)
		}
		sink.Fail(&DeviceError{Message: p.Message})
	default:
		return fmt.Errorf("%w: %s", errUnknownMessage, env.Type)
	}
	return nil
}
