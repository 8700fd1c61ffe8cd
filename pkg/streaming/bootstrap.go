package streaming

import (
	"encoding/json"
	"fmt"
)

// Bootstrap is the page-load document the hosting page embeds so the
// first paint needs no round trip: the room key, the DOM id of the
// rendering surface, and a full_state-shaped snapshot.
type Bootstrap struct {
	Room      string           `json:"room"`
	SurfaceID string           `json:"surface_id"`
	State     FullStatePayload `json:"state"`
}

// ParseBootstrap decodes and minimally checks an embedded bootstrap
// document.
func ParseBootstrap(data []byte) (Bootstrap, error) {
	var b Bootstrap
	if err := json.Unmarshal(data, &b); err != nil {
		return Bootstrap{}, fmt.Errorf("decode bootstrap: %w", err)
	}
	if b.Room == "" {
		return Bootstrap{}, fmt.Errorf("bootstrap missing room key")
	}
	return b, nil
}
