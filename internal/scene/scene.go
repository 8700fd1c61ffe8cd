// Package scene builds and diffs the authoritative per-room scene state.
package scene

import (
	"fmt"

	"github.com/clutterstack/flymap/internal/geo"
	"github.com/clutterstack/flymap/internal/style"
	"github.com/clutterstack/flymap/pkg/core"
)

// GroupInput is a marker group before normalization: a raw style input
// plus candidate nodes.
type GroupInput struct {
	ID    string
	Label string
	Style style.Input
	Nodes []core.Node
}

// NodeError records one skipped input during ApplyGroups. NodeID is empty
// for group-level failures (bad style, missing id).
type NodeError struct {
	GroupID string
	NodeID  string
	Err     error
}

func (e NodeError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("group %q: %v", e.GroupID, e.Err)
	}
	return fmt.Sprintf("group %q node %q: %v", e.GroupID, e.NodeID, e.Err)
}

// Builder folds group inputs into scene states.
type Builder struct {
	Projector geo.Projector
}

// ApplyGroups normalizes every input group and replaces the scene's group
// list, returning the new state plus all validation errors encountered.
//
// Recovery policy: an invalid node is skipped and the rest of its group
// kept; a group whose nodes all fail still appears (empty) so its label
// stays visible. Only group-level failures (unusable style, blank id)
// drop a whole group. ApplyGroups never fails outright.
func (b Builder) ApplyGroups(s core.SceneState, inputs []GroupInput) (core.SceneState, []NodeError) {
	out := s.Clone()
	out.Groups = make([]core.MarkerGroup, 0, len(inputs))

	var errs []NodeError
	for _, in := range inputs {
		if in.ID == "" {
			errs = append(errs, NodeError{GroupID: in.ID,
				Err: core.Validationf(core.ErrInvalidField, "id", "group id must not be empty")})
			continue
		}

		st, err := style.Normalize(in.Style)
		if err != nil {
			errs = append(errs, NodeError{GroupID: in.ID, Err: err})
			continue
		}

		group := core.MarkerGroup{
			ID:      in.ID,
			Label:   in.Label,
			Style:   st,
			Nodes:   make([]core.Node, 0, len(in.Nodes)),
			Visible: true,
		}
		for _, n := range in.Nodes {
			if _, err := b.Projector.Resolve(n); err != nil {
				errs = append(errs, NodeError{GroupID: in.ID, NodeID: n.ID, Err: err})
				continue
			}
			group.Nodes = append(group.Nodes, n)
		}
		out.Groups = append(out.Groups, group)
	}
	return out, errs
}
