package core

import (
	"encoding/json"
	"fmt"
)

// NodeKind discriminates the node variants.
type NodeKind string

const (
	// NodeNamed resolves a short location key via the location table.
	NodeNamed NodeKind = "named"
	// NodeCoord carries an explicit lat/lng pair.
	NodeCoord NodeKind = "coord"
	// NodeLabeled is an explicit pair plus a display label.
	NodeLabeled NodeKind = "labeled"
)

// Node is a single plotted point. Exactly one of the three variants is
// populated, selected by Kind.
type Node struct {
	ID    string
	Kind  NodeKind
	Key   string // named variant
	Coord LatLng // coord and labeled variants
	Label string // labeled variant
}

// NamedNode builds a named-location node.
func NamedNode(id, key string) Node {
	return Node{ID: id, Kind: NodeNamed, Key: key}
}

// CoordNode builds an explicit-coordinate node.
func CoordNode(id string, lat, lng float64) Node {
	return Node{ID: id, Kind: NodeCoord, Coord: LatLng{Lat: lat, Lng: lng}}
}

// LabeledNode builds a coordinate node with a display label.
func LabeledNode(id string, lat, lng float64, label string) Node {
	return Node{ID: id, Kind: NodeLabeled, Coord: LatLng{Lat: lat, Lng: lng}, Label: label}
}

// wireNode is the JSON shape. The variant is inferred from which fields
// are present rather than carried as an explicit tag.
type wireNode struct {
	ID    string  `json:"id,omitempty"`
	Key   string  `json:"key,omitempty"`
	Coord *LatLng `json:"coord,omitempty"`
	Label string  `json:"label,omitempty"`
}

// MarshalJSON emits only the fields relevant to the node's variant.
func (n Node) MarshalJSON() ([]byte, error) {
	w := wireNode{ID: n.ID}
	switch n.Kind {
	case NodeNamed:
		w.Key = n.Key
	case NodeCoord:
		c := n.Coord
		w.Coord = &c
	case NodeLabeled:
		c := n.Coord
		w.Coord = &c
		w.Label = n.Label
	default:
		return nil, fmt.Errorf("node %q has unknown kind %q", n.ID, n.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON infers the variant from the populated fields.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Key != "" && w.Coord == nil:
		*n = NamedNode(w.ID, w.Key)
	case w.Coord != nil && w.Label != "":
		*n = LabeledNode(w.ID, w.Coord.Lat, w.Coord.Lng, w.Label)
	case w.Coord != nil:
		*n = CoordNode(w.ID, w.Coord.Lat, w.Coord.Lng)
	default:
		return fmt.Errorf("node %q matches no accepted shape", w.ID)
	}
	return nil
}
