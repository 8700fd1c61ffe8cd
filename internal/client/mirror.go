// Package client is the viewer side of the map sync protocol: it keeps a
// local mirror of one room's Scene State, applies incoming events to it,
// and drives a rendering surface. The mirror is the only state a client
// ever mutates; room state on the server is out of its reach.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/clutterstack/flymap/pkg/core"
	"github.com/clutterstack/flymap/pkg/streaming"
)

// Mirror is a client's private copy of Scene State. All methods run on
// the reconciler goroutine; Mirror does no locking of its own.
type Mirror struct {
	state core.SceneState
}

// Seed replaces the mirror from a bootstrap snapshot.
func (m *Mirror) Seed(p streaming.FullStatePayload) {
	m.state = core.SceneState{
		Groups: append([]core.MarkerGroup(nil), p.Groups...),
		Theme:  p.Theme.Clone(),
		Config: p.Config,
	}
}

// State returns a deep copy, safe to hand outside the reconciler.
func (m *Mirror) State() core.SceneState {
	return m.state.Clone()
}

// Fingerprint hashes the mirror for sync_request exchanges.
func (m *Mirror) Fingerprint() (string, error) {
	return streaming.Fingerprint(m.state)
}

// Apply validates one wire envelope and folds it into the mirror.
// Events are at-least-once: applying the same event twice must land on
// the same mirror as applying it once. A validation failure leaves the
// mirror untouched.
func (m *Mirror) Apply(env streaming.Envelope) error {
	switch env.Type {
	case streaming.TypeFullState:
		var p streaming.FullStatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode full_state: %w", err)
		}
		if err := ValidateServerState(p); err != nil {
			return err
		}
		m.Seed(p)

	case streaming.TypeGroupUpdate:
		var p streaming.GroupUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode group_update: %w", err)
		}
		if p.GroupID == "" {
			return fmt.Errorf("group_update without group id")
		}
		for _, n := range p.Markers {
			if err := ValidateMarkerData(n); err != nil {
				return err
			}
		}
		m.applyGroupUpdate(p)

	case streaming.TypeMarkerAdd:
		var p streaming.MarkerAddPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode marker_add: %w", err)
		}
		if p.GroupID == "" {
			return fmt.Errorf("marker_add without group id")
		}
		if err := ValidateMarkerData(p.Marker); err != nil {
			return err
		}
		m.applyMarkerAdd(p)

	case streaming.TypeMarkerRemove:
		var p streaming.MarkerRemovePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode marker_remove: %w", err)
		}
		m.applyMarkerRemove(p)

	case streaming.TypeThemeChange:
		var p streaming.ThemeChangePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode theme_change: %w", err)
		}
		for k, v := range p.Theme {
			if v == "" {
				return fmt.Errorf("theme key %q without colour", k)
			}
		}
		m.state.Theme = m.state.Theme.Merge(p.Theme)

	case streaming.TypeVisibilityToggle:
		var p streaming.VisibilityTogglePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode visibility_toggle: %w", err)
		}
		// Hidden groups stay in the mirror so a re-show needs no
		// re-fetch. Toggling an unknown group is a no-op.
		if i := m.state.GroupIndex(p.GroupID); i >= 0 {
			m.state.Groups[i].Visible = p.Visible
		}

	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	return nil
}

// applyGroupUpdate replaces one group's markers; an unknown group is an
// implicit add.
func (m *Mirror) applyGroupUpdate(p streaming.GroupUpdatePayload) {
	// Non-nil even when the update clears the group, matching how the
	// server stores it; a nil slice would skew the sync fingerprint.
	markers := append(make([]core.Node, 0, len(p.Markers)), p.Markers...)
	if i := m.state.GroupIndex(p.GroupID); i >= 0 {
		g := &m.state.Groups[i]
		g.Nodes = markers
		if p.Label != "" {
			g.Label = p.Label
		}
		if p.Style != nil {
			g.Style = *p.Style
		}
		return
	}
	g := core.MarkerGroup{ID: p.GroupID, Label: p.Label, Nodes: markers, Visible: true}
	if p.Style != nil {
		g.Style = *p.Style
	}
	m.state.Groups = append(m.state.Groups, g)
}

// applyMarkerAdd upserts by marker id, so a redelivered add converges.
func (m *Mirror) applyMarkerAdd(p streaming.MarkerAddPayload) {
	i := m.state.GroupIndex(p.GroupID)
	if i < 0 {
		m.state.Groups = append(m.state.Groups, core.MarkerGroup{
			ID:      p.GroupID,
			Nodes:   []core.Node{p.Marker},
			Visible: true,
		})
		return
	}
	g := &m.state.Groups[i]
	if j := g.NodeIndex(p.Marker.ID); j >= 0 {
		g.Nodes[j] = p.Marker
		return
	}
	g.Nodes = append(g.Nodes, p.Marker)
}

// applyMarkerRemove removes by id; a missing group or marker is a no-op.
func (m *Mirror) applyMarkerRemove(p streaming.MarkerRemovePayload) {
	i := m.state.GroupIndex(p.GroupID)
	if i < 0 {
		return
	}
	g := &m.state.Groups[i]
	if j := g.NodeIndex(p.MarkerID); j >= 0 {
		g.Nodes = append(g.Nodes[:j], g.Nodes[j+1:]...)
	}
}
