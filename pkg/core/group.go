package core

// MarkerGroup is a named, owned collection of nodes sharing one style.
//
// ID is the diff-addressing key and never changes for the lifetime of the
// group; replacing a group is modeled as remove+add. Node order carries no
// meaning but is preserved so re-renders are idempotent.
type MarkerGroup struct {
	ID      string `json:"id"`
	Label   string `json:"label,omitempty"`
	Style   Style  `json:"style"`
	Nodes   []Node `json:"nodes"`
	Visible bool   `json:"visible"`
}

// Clone returns a deep copy of the group.
func (g MarkerGroup) Clone() MarkerGroup {
	out := g
	out.Nodes = make([]Node, len(g.Nodes))
	copy(out.Nodes, g.Nodes)
	return out
}

// NodeIndex returns the position of the node with the given ID, or -1.
func (g MarkerGroup) NodeIndex(id string) int {
	for i, n := range g.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
