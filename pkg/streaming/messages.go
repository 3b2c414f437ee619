package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/locationmarker/pkg/core"
)

// Message type constants of the device feed and render protocols.
const (
	// device -> markerd
	TypeLocation = "location"
	TypeHeading  = "heading"
	TypeError    = "error"

	// render client -> markerd
	TypeCamera = "camera"
	TypeTap    = "tap"

	// markerd -> render client
	TypeGeometry = "geometry"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorPayload reports a delivery failure on the device side.
type ErrorPayload struct {
	Message string `json:"message"`
}

// CameraPayload changes the map state. Nil fields are left as they are.
type CameraPayload struct {
	Attached *bool            `json:"attached,omitempty"`
	Zoom     *float64         `json:"zoom,omitempty"`
	Bearing  *float64         `json:"bearing,omitempty"`
	Center   *core.Coordinate `json:"center,omitempty"`
}

// TapPayload is a tap in marker canvas coordinates.
type TapPayload struct {
	Point core.Point `json:"point"`
}

// GeometryPayload is one committed render transaction.
type GeometryPayload struct {
	Geometry          core.MarkerGeometry `json:"geometry"`
	SuppressAnimation bool                `json:"suppressAnimation"`
	ArrowOutline      json.RawMessage     `json:"arrowOutline,omitempty"` // GeoJSON polygon
}

// Encode wraps payload in an envelope of the given type.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Decode parses an envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("invalid envelope: missing type")
	}
	return env, nil
}
