package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clutterstack/flymap/pkg/core"
	"github.com/clutterstack/flymap/pkg/streaming"
)

// recordingSurface captures render calls for assertions.
type recordingSurface struct {
	calls   []string
	cleared bool
	static  bool
}

func (s *recordingSurface) RenderFull(core.SceneState)        { s.calls = append(s.calls, "full") }
func (s *recordingSurface) RenderGroup(core.MarkerGroup)      { s.calls = append(s.calls, "group") }
func (s *recordingSurface) RenderMarkerAdd(string, core.Node) { s.calls = append(s.calls, "add") }
func (s *recordingSurface) RenderMarkerRemove(string, string) { s.calls = append(s.calls, "remove") }
func (s *recordingSurface) RenderTheme(core.Theme)            { s.calls = append(s.calls, "theme") }
func (s *recordingSurface) RenderVisibility(string, bool)     { s.calls = append(s.calls, "visibility") }
func (s *recordingSurface) Clear()                            { s.cleared = true }
func (s *recordingSurface) MarkStatic()                       { s.static = true }

func envelope(t *testing.T, typ, room string, payload any) streaming.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return streaming.Envelope{Type: typ, Room: room, Payload: data}
}

func newTestReconciler(t *testing.T) (*Reconciler, *recordingSurface) {
	t.Helper()
	surface := &recordingSurface{}
	r := New(Config{Room: "demo", Support: FullSupport()}, surface, slog.New(slog.DiscardHandler))
	return r, surface
}

func TestApplyMarkerAddIsIdempotent(t *testing.T) {
	var m Mirror
	env := envelope(t, streaming.TypeMarkerAdd, "demo",
		streaming.MarkerAddPayload{GroupID: "g1", Marker: core.NamedNode("m1", "ams")})

	require.NoError(t, m.Apply(env))
	once := m.State()
	require.NoError(t, m.Apply(env))
	twice := m.State()

	assert.Equal(t, once, twice)
	require.Len(t, twice.Groups, 1)
	assert.Len(t, twice.Groups[0].Nodes, 1)
}

func TestApplyFullStateReplacesMirror(t *testing.T) {
	var m Mirror
	m.Seed(streaming.FullStatePayload{
		Groups: []core.MarkerGroup{{ID: "old", Nodes: []core.Node{core.NamedNode("m1", "fra")}, Visible: true}},
	})

	env := envelope(t, streaming.TypeFullState, "demo", streaming.FullStatePayload{
		Groups: []core.MarkerGroup{{ID: "new", Nodes: []core.Node{core.NamedNode("m2", "ams")}, Visible: true}},
		Theme:  core.Theme{"background": "#1a1a2e"},
	})
	require.NoError(t, m.Apply(env))

	state := m.State()
	require.Len(t, state.Groups, 1)
	assert.Equal(t, "new", state.Groups[0].ID)
	assert.Equal(t, "#1a1a2e", state.Theme["background"])
}

func TestApplyGroupUpdateImplicitAdd(t *testing.T) {
	var m Mirror
	env := envelope(t, streaming.TypeGroupUpdate, "demo", streaming.GroupUpdatePayload{
		GroupID: "g1",
		Markers: []core.Node{core.NamedNode("m1", "ams")},
	})
	require.NoError(t, m.Apply(env))

	state := m.State()
	require.Len(t, state.Groups, 1)
	assert.True(t, state.Groups[0].Visible)
}

func TestApplyMarkerRemoveMissingIsNoop(t *testing.T) {
	var m Mirror
	m.Seed(streaming.FullStatePayload{
		Groups: []core.MarkerGroup{{ID: "g1", Nodes: []core.Node{core.NamedNode("m1", "ams")}, Visible: true}},
	})

	require.NoError(t, m.Apply(envelope(t, streaming.TypeMarkerRemove, "demo",
		streaming.MarkerRemovePayload{GroupID: "g1", MarkerID: "ghost"})))
	require.NoError(t, m.Apply(envelope(t, streaming.TypeMarkerRemove, "demo",
		streaming.MarkerRemovePayload{GroupID: "nope", MarkerID: "m1"})))

	assert.Len(t, m.State().Groups[0].Nodes, 1)
}

func TestApplyThemeChangeMergesOnlyPresentKeys(t *testing.T) {
	var m Mirror
	m.Seed(streaming.FullStatePayload{
		Theme: core.Theme{"background": "#000000", "text": "#ffffff"},
	})

	require.NoError(t, m.Apply(envelope(t, streaming.TypeThemeChange, "demo",
		streaming.ThemeChangePayload{Theme: core.Theme{"background": "#1a1a2e"}})))

	theme := m.State().Theme
	assert.Equal(t, "#1a1a2e", theme["background"])
	assert.Equal(t, "#ffffff", theme["text"])
}

func TestToggleThenReshowPreservesMarkerData(t *testing.T) {
	var m Mirror
	m.Seed(streaming.FullStatePayload{
		Groups: []core.MarkerGroup{{ID: "g1", Nodes: []core.Node{
			core.NamedNode("m1", "ams"),
			core.LabeledNode("m2", 52.3, 4.9, "HQ"),
		}, Visible: true}},
	})
	before := m.State()

	require.NoError(t, m.Apply(envelope(t, streaming.TypeVisibilityToggle, "demo",
		streaming.VisibilityTogglePayload{GroupID: "g1", Visible: false})))
	hidden := m.State()
	assert.False(t, hidden.Groups[0].Visible)
	assert.Equal(t, before.Groups[0].Nodes, hidden.Groups[0].Nodes)

	require.NoError(t, m.Apply(envelope(t, streaming.TypeVisibilityToggle, "demo",
		streaming.VisibilityTogglePayload{GroupID: "g1", Visible: true})))
	assert.Equal(t, before, m.State())
}

func TestInvalidEventsLeaveMirrorUntouched(t *testing.T) {
	var m Mirror
	m.Seed(streaming.FullStatePayload{
		Groups: []core.MarkerGroup{{ID: "g1", Nodes: []core.Node{core.NamedNode("m1", "ams")}, Visible: true}},
	})
	before := m.State()

	cases := []streaming.Envelope{
		// group without id
		envelope(t, streaming.TypeFullState, "demo", streaming.FullStatePayload{
			Groups: []core.MarkerGroup{{Nodes: []core.Node{}}},
		}),
		// theme colour missing
		envelope(t, streaming.TypeThemeChange, "demo",
			streaming.ThemeChangePayload{Theme: core.Theme{"background": ""}}),
		// marker_add without group id
		envelope(t, streaming.TypeMarkerAdd, "demo",
			streaming.MarkerAddPayload{Marker: core.NamedNode("m1", "ams")}),
		// unknown event type
		{Type: "telemetry_burst", Room: "demo"},
	}
	for _, env := range cases {
		assert.Error(t, m.Apply(env), "type %s", env.Type)
	}
	assert.Equal(t, before, m.State())
}

func TestValidateMarkerDataShapes(t *testing.T) {
	tests := []struct {
		name    string
		node    core.Node
		wantErr bool
	}{
		{"named", core.NamedNode("m1", "ams"), false},
		{"coord", core.CoordNode("m2", 52.3, 4.9), false},
		{"labeled", core.LabeledNode("m3", 52.3, 4.9, "HQ"), false},
		{"no id", core.Node{Kind: core.NodeNamed, Key: "ams"}, true},
		{"named without key", core.Node{ID: "m4", Kind: core.NodeNamed}, true},
		{"coord out of range", core.CoordNode("m5", 200, 0), true},
		{"labeled without label", core.Node{ID: "m6", Kind: core.NodeLabeled, Coord: core.LatLng{Lat: 1, Lng: 1}}, true},
		{"no kind", core.Node{ID: "m7"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMarkerData(tt.node)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaleRoomEventsDiscarded(t *testing.T) {
	r, surface := newTestReconciler(t)
	r.mirror.Seed(streaming.FullStatePayload{
		Groups: []core.MarkerGroup{{ID: "g1", Nodes: []core.Node{core.NamedNode("m1", "ams")}, Visible: true}},
	})
	before := r.mirror.State()

	r.handleEvent(envelope(t, streaming.TypeMarkerAdd, "other-room",
		streaming.MarkerAddPayload{GroupID: "g1", Marker: core.NamedNode("m9", "fra")}))

	assert.Equal(t, before, r.mirror.State())
	assert.Empty(t, surface.calls)
}

func TestHandleEventRendersAfterApply(t *testing.T) {
	r, surface := newTestReconciler(t)

	r.handleEvent(envelope(t, streaming.TypeMarkerAdd, "demo",
		streaming.MarkerAddPayload{GroupID: "g1", Marker: core.NamedNode("m1", "ams")}))
	r.handleEvent(envelope(t, streaming.TypeVisibilityToggle, "demo",
		streaming.VisibilityTogglePayload{GroupID: "g1", Visible: false}))

	assert.Equal(t, []string{"add", "visibility"}, surface.calls)
}

func TestInvalidEventDoesNotRender(t *testing.T) {
	r, surface := newTestReconciler(t)
	r.handleEvent(envelope(t, streaming.TypeMarkerAdd, "demo",
		streaming.MarkerAddPayload{GroupID: "g1", Marker: core.Node{ID: "m1"}}))
	assert.Empty(t, surface.calls)
}

func TestFallbackIsTerminal(t *testing.T) {
	r, surface := newTestReconciler(t)
	r.enterFallback()

	assert.Equal(t, StateFallback, r.State())
	assert.True(t, surface.cleared)
	assert.True(t, surface.static)

	// Transport-available signals must not revive a fallback session.
	r.NotifyTransportAvailable()
	r.NotifyTransportAvailable()
	assert.Equal(t, StateFallback, r.State())

	// State transitions are refused outright.
	r.setState(StateJoined)
	assert.Equal(t, StateFallback, r.State())
}

func TestUnsupportedRuntimeFallsBackWithoutConnecting(t *testing.T) {
	surface := &recordingSurface{}
	r := New(Config{
		Room:    "demo",
		Support: Support{Transport: false, Surface: true, Runtime: true},
	}, surface, slog.New(slog.DiscardHandler))

	require.NoError(t, r.Mount(nil))
	assert.Equal(t, StateFallback, r.State())
	assert.Nil(t, r.conn, "no connection may be attempted")
	assert.True(t, surface.static)
}

func TestMountSeedsFromBootstrap(t *testing.T) {
	r, surface := newTestReconciler(t)

	doc, err := json.Marshal(streaming.Bootstrap{
		Room:      "demo",
		SurfaceID: "flymap-1",
		State: streaming.FullStatePayload{
			Groups: []core.MarkerGroup{{ID: "g1", Nodes: []core.Node{core.NamedNode("m1", "ams")}, Visible: true}},
		},
	})
	require.NoError(t, err)

	b, err := streaming.ParseBootstrap(doc)
	require.NoError(t, err)
	r.mirror.Seed(b.State)
	r.surface.RenderFull(r.mirror.State())

	assert.Equal(t, []string{"full"}, surface.calls)
	require.Len(t, r.mirror.State().Groups, 1)
}

func TestMountRejectsMismatchedBootstrap(t *testing.T) {
	r, _ := newTestReconciler(t)
	doc, _ := json.Marshal(streaming.Bootstrap{Room: "someone-elses-room"})
	err := r.Mount(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room")
}

func TestMirrorFingerprintMatchesServerShape(t *testing.T) {
	state := core.SceneState{
		Groups: []core.MarkerGroup{{ID: "g1", Nodes: []core.Node{core.NamedNode("m1", "ams")}, Visible: true}},
		Theme:  core.Theme{"background": "#1a1a2e"},
	}
	m := Mirror{state: state.Clone()}

	want, err := streaming.Fingerprint(state)
	require.NoError(t, err)
	got, err := m.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGroupUpdateClearingMarkersKeepsNodesSequence(t *testing.T) {
	var m Mirror
	require.NoError(t, m.Apply(envelope(t, streaming.TypeMarkerAdd, "demo",
		streaming.MarkerAddPayload{GroupID: "g1", Marker: core.NamedNode("m1", "ams")})))
	require.NoError(t, m.Apply(envelope(t, streaming.TypeGroupUpdate, "demo",
		streaming.GroupUpdatePayload{GroupID: "g1"})))

	state := m.State()
	require.Len(t, state.Groups, 1)
	require.NotNil(t, state.Groups[0].Nodes)
	assert.Empty(t, state.Groups[0].Nodes)

	// The emptied group must fingerprint the same as the server's shape,
	// or every sync_request after a clear would force a full resend.
	want, err := streaming.Fingerprint(core.SceneState{
		Groups: []core.MarkerGroup{{ID: "g1", Nodes: []core.Node{}, Visible: true}},
	})
	require.NoError(t, err)
	got, err := m.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMirrorSnapshotSafeDuringApply(t *testing.T) {
	r, _ := newTestReconciler(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = r.Mirror()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		r.handleEvent(envelope(t, streaming.TypeMarkerAdd, "demo",
			streaming.MarkerAddPayload{GroupID: "g1", Marker: core.NamedNode(fmt.Sprintf("m%d", i), "ams")}))
	}
	close(stop)
	wg.Wait()

	mirror := r.Mirror()
	state := mirror.State()
	require.Len(t, state.Groups, 1)
	assert.Len(t, state.Groups[0].Nodes, 200)
}
