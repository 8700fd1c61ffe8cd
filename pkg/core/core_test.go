package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatLngMarshalsAsArray(t *testing.T) {
	data, err := json.Marshal(LatLng{Lat: 52.3676, Lng: 4.9041})
	require.NoError(t, err)
	assert.JSONEq(t, `[52.3676, 4.9041]`, string(data))

	var p LatLng
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, 52.3676, p.Lat)
	assert.Equal(t, 4.9041, p.Lng)
}

func TestLatLngRejectsWrongArity(t *testing.T) {
	var p LatLng
	assert.Error(t, json.Unmarshal([]byte(`[1.0]`), &p))
	assert.Error(t, json.Unmarshal([]byte(`[1.0, 2.0, 3.0]`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"lat": 1, "lng": 2}`), &p))
}

func TestNodeWireShapes(t *testing.T) {
	tests := []struct {
		name string
		node Node
		json string
	}{
		{"named", NamedNode("m1", "ams"), `{"id":"m1","key":"ams"}`},
		{"coord", CoordNode("m2", 52.52, 13.405), `{"id":"m2","coord":[52.52,13.405]}`},
		{"labeled", LabeledNode("m3", 51.47, -0.45, "London"), `{"id":"m3","coord":[51.47,-0.45],"label":"London"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.node)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var back Node
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.node, back)
		})
	}
}

func TestNodeRejectsUnknownShape(t *testing.T) {
	var n Node
	assert.Error(t, json.Unmarshal([]byte(`{"id":"m1"}`), &n))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"m1","sides":4}`), &n))
}

func TestThemeMergeLeavesReceiverAlone(t *testing.T) {
	base := Theme{"background": "#000", "border": "#111"}
	merged := base.Merge(Theme{"border": "#222"})

	assert.Equal(t, "#111", base["border"])
	assert.Equal(t, "#222", merged["border"])
	assert.Equal(t, "#000", merged["background"])
}

func TestSceneCloneIsDeep(t *testing.T) {
	s := SceneState{
		Groups: []MarkerGroup{{ID: "a", Nodes: []Node{NamedNode("m1", "ams")}, Visible: true}},
		Theme:  Theme{"background": "#000"},
	}
	c := s.Clone()
	c.Groups[0].Nodes[0] = NamedNode("m9", "fra")
	c.Theme["background"] = "#fff"

	assert.Equal(t, "m1", s.Groups[0].Nodes[0].ID)
	assert.Equal(t, "#000", s.Theme["background"])
}
