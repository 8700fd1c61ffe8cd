package streaming

import (
	"encoding/json"

	"github.com/clutterstack/flymap/pkg/core"
)

// Message type constants for the room sync protocol.
const (
	// client to server
	TypeJoin        = "join"
	TypeLeave       = "leave"
	TypeSyncRequest = "sync_request"
	TypeHealthCheck = "health_check"

	// server to client
	TypeFullState        = "full_state"
	TypeGroupUpdate      = "group_update"
	TypeMarkerAdd        = "marker_add"
	TypeMarkerRemove     = "marker_remove"
	TypeThemeChange      = "theme_change"
	TypeVisibilityToggle = "visibility_toggle"
	TypeSyncReply        = "sync_reply"
	TypeHealthReply      = "health_reply"
)

// Sync reply outcomes. Anything not unambiguously in_sync or
// state_updated answers sync_acknowledged.
const (
	SyncInSync       = "in_sync"
	SyncStateUpdated = "state_updated"
	SyncAcknowledged = "sync_acknowledged"
)

// Envelope wraps every message crossing the WebSocket. Room identifies the
// target room so a client can discard events forwarded from a room it has
// since left.
type Envelope struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload carries the room key a client wants to subscribe to.
type JoinPayload struct {
	Room string `json:"room"`
}

// SyncRequestPayload carries the client's state fingerprint.
type SyncRequestPayload struct {
	Fingerprint string `json:"client_state_fingerprint"`
}

// SyncReplyPayload is the server's answer to a sync_request.
type SyncReplyPayload struct {
	Result string `json:"result"`
}

// FullStatePayload replaces the client mirror wholesale.
type FullStatePayload struct {
	Groups []core.MarkerGroup `json:"marker_groups"`
	Theme  core.Theme         `json:"theme,omitempty"`
	Config core.MapConfig     `json:"config"`
}

// GroupUpdatePayload replaces all markers of one group. A client that has
// no such group treats it as an implicit add.
type GroupUpdatePayload struct {
	GroupID string      `json:"group_id"`
	Markers []core.Node `json:"markers"`
	Label   string      `json:"label,omitempty"`
	Style   *core.Style `json:"style,omitempty"`
}

// MarkerAddPayload adds one marker to a group.
type MarkerAddPayload struct {
	GroupID string    `json:"group_id"`
	Marker  core.Node `json:"marker"`
}

// MarkerRemovePayload removes one marker; removing a marker that does not
// exist is a no-op.
type MarkerRemovePayload struct {
	GroupID  string `json:"group_id"`
	MarkerID string `json:"marker_id"`
}

// ThemeChangePayload merges the carried keys into the client theme.
type ThemeChangePayload struct {
	Theme core.Theme `json:"theme"`
}

// VisibilityTogglePayload hides or re-shows a group. Hidden groups stay in
// the mirror so re-showing needs no re-fetch.
type VisibilityTogglePayload struct {
	GroupID string `json:"group_id"`
	Visible bool   `json:"visible"`
}

// Event is a self-contained, idempotent mutation instruction for a
// client mirror.
type Event struct {
	Type    string
	Room    string
	Payload any
}

// Marshal encodes the event as an Envelope ready for the wire.
func (e Event) Marshal() ([]byte, error) {
	var raw json.RawMessage
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{Type: e.Type, Room: e.Room, Payload: raw})
}
