package client

import (
	"fmt"

	"github.com/clutterstack/flymap/pkg/core"
	"github.com/clutterstack/flymap/pkg/streaming"
)

// ValidateServerState structurally checks a full_state payload before it
// replaces the mirror: every group needs a non-empty id and a nodes
// sequence, and a supplied theme must not carry empty colours.
func ValidateServerState(p streaming.FullStatePayload) error {
	for i, g := range p.Groups {
		if g.ID == "" {
			return fmt.Errorf("group %d has no id", i)
		}
		if g.Nodes == nil {
			return fmt.Errorf("group %q has no nodes sequence", g.ID)
		}
		for _, n := range g.Nodes {
			if err := ValidateMarkerData(n); err != nil {
				return fmt.Errorf("group %q: %w", g.ID, err)
			}
		}
	}
	for k, v := range p.Theme {
		if v == "" {
			return fmt.Errorf("theme key %q without colour", k)
		}
	}
	return nil
}

// ValidateMarkerData accepts exactly the three node shapes the protocol
// defines; anything else is rejected before touching the mirror.
func ValidateMarkerData(n core.Node) error {
	if n.ID == "" {
		return fmt.Errorf("marker without id")
	}
	switch n.Kind {
	case core.NodeNamed:
		if n.Key == "" {
			return fmt.Errorf("marker %q: named node without key", n.ID)
		}
	case core.NodeCoord:
		if !n.Coord.Valid() {
			return fmt.Errorf("marker %q: coordinates out of range", n.ID)
		}
	case core.NodeLabeled:
		if !n.Coord.Valid() {
			return fmt.Errorf("marker %q: coordinates out of range", n.ID)
		}
		if n.Label == "" {
			return fmt.Errorf("marker %q: labeled node without label", n.ID)
		}
	default:
		return fmt.Errorf("marker %q: unrecognized node shape", n.ID)
	}
	return nil
}
