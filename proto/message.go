package proto

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types exchanged between screens, the server, and dashboard
// event subscribers.
const (
	TypeRegister      = "register"       // screen -> server
	TypeHeartbeat     = "heartbeat"      // screen -> server
	TypeRegistered    = "registered"     // server -> screen
	TypeLayoutUpdate  = "layout_update"  // server -> screen
	TypeRefresh       = "refresh"        // server -> screen
	TypeStatus        = "status"         // server -> dashboard
	TypeScreenDeleted = "screen_deleted" // server -> dashboard
	TypeLayoutApplied = "layout_applied" // server -> dashboard
)

type Message struct {
	Type      string          `json:"type"`
	Sender    string          `json:"sender,omitempty"`    // connection ID, injected by the transport
	Payload   json.RawMessage `json:"payload,omitempty"`   // schema depends on Type
	Timestamp int64           `json:"timestamp,omitempty"` // UNIX timestamp in seconds
}

// NewMessage builds a Message of the given type with the payload
// marshalled in place.
func NewMessage(msgType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}

// RegisterPayload is sent by a screen when it connects. An empty
// ScreenID asks the server to assign one.
type RegisterPayload struct {
	ScreenID   string `json:"screen_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

type HeartbeatPayload struct {
	ScreenID string `json:"screen_id"`
}

// RegisteredPayload acknowledges a register and carries the
// authoritative layout so a reconnecting screen reconciles immediately.
type RegisteredPayload struct {
	ScreenID string `json:"screen_id"`
	Name     string `json:"name"`
	Layout   Layout `json:"layout"`
	Version  int64  `json:"version"`
}

type LayoutUpdatePayload struct {
	Layout  Layout `json:"layout"`
	Version int64  `json:"version"`
}

// StatusPayload is informational, delivered to dashboard subscribers
// only. Screens never receive another screen's status.
type StatusPayload struct {
	ScreenID   string `json:"screen_id"`
	Name       string `json:"name"`
	Connected  bool   `json:"connected"`
	LastSeen   int64  `json:"last_seen"`
	Resolution string `json:"resolution,omitempty"`
}

type ScreenDeletedPayload struct {
	ScreenID string `json:"screen_id"`
}

type LayoutAppliedPayload struct {
	ScreenID string `json:"screen_id"`
	Version  int64  `json:"version"`
	Checksum uint64 `json:"checksum"`
}
