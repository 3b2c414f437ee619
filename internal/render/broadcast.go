package render

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/OCAP2/locationmarker/internal/marker"
	"github.com/OCAP2/locationmarker/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize     = 64
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// InboundFunc receives the envelopes render clients send back (camera and
// tap messages). It runs on the client's read goroutine.
type InboundFunc func(env streaming.Envelope)

// Broadcast is a renderer that pushes every committed transaction to all
// connected websocket clients as a geometry envelope. New clients receive
// the latest geometry on connect.
type Broadcast struct {
	params   marker.Params
	snapshot *marker.Snapshot
	upgrader ws.Upgrader
	inbound  InboundFunc
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	closed  bool
}

// NewBroadcast creates a hub. inbound may be nil.
func NewBroadcast(params marker.Params, inbound InboundFunc, logger *slog.Logger) *Broadcast {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcast{
		params:   params,
		snapshot: marker.NewSnapshot(params),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		inbound: inbound,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Transaction implements marker.Renderer.
func (b *Broadcast) Transaction(suppressAnimation bool, writes func(marker.Layer)) {
	writes(b.snapshot.Layer(nil))

	data, err := encodeGeometry(b.params, b.snapshot.Geometry(), suppressAnimation)
	if err != nil {
		b.logger.Error("encoding geometry", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = data
	for c := range b.clients {
		c.send(data)
	}
}

// Clients returns the number of connected clients
func (b *Broadcast) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (b *Broadcast) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		logger: b.logger,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		c.close()
		return
	}
	b.clients[c] = struct{}{}
	if b.last != nil {
		c.send(b.last)
	}
	b.mu.Unlock()

	b.logger.Info("render client connected", "remote", r.RemoteAddr)
	go c.writeLoop()
	c.readLoop(b.inbound)

	b.remove(c)
	b.logger.Info("render client disconnected", "remote", r.RemoteAddr)
}

func (b *Broadcast) remove(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
	c.close()
}

// Close disconnects every client. Later connections are refused.
func (b *Broadcast) Close() error {
	b.mu.Lock()
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[*client]struct{})
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}

// client is one render connection with a single write goroutine.
type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *client) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("render client too slow, dropping geometry")
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("websocket SetWriteDeadline error", "error", err)
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Debug("websocket write error", "error", err)
				_ = c.conn.Close()
				return
			}
		}
	}
}

// readLoop decodes inbound envelopes until the connection fails.
func (c *client) readLoop(inbound InboundFunc) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				select {
				case <-c.done:
				default:
					c.logger.Debug("websocket read error", "error", err)
				}
			}
			return
		}

		env, err := streaming.Decode(message)
		if err != nil {
			c.logger.Debug("skipping client message", "error", err, "raw", string(message))
			continue
		}
		if inbound != nil {
			inbound(env)
		}
	}
}

// close sends a close frame and shuts the connection down once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		_ = c.conn.Close()
	})
}
