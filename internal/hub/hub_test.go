package hub

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clutterstack/flymap/internal/client"
	"github.com/clutterstack/flymap/internal/scene"
	"github.com/clutterstack/flymap/internal/store/memory"
	"github.com/clutterstack/flymap/internal/style"
	"github.com/clutterstack/flymap/pkg/core"
	"github.com/clutterstack/flymap/pkg/streaming"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestHub(t *testing.T, grace time.Duration) *Hub {
	t.Helper()
	h, err := New(Config{
		OutboxSize:  64,
		GracePeriod: grace,
		DefaultMapConfig: core.MapConfig{
			BBox: core.BBox{Width: 800, Height: 400},
		},
	}, nopLogger{}, scene.Builder{}, nil)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func recvEnvelope(t *testing.T, m *Member) streaming.Envelope {
	t.Helper()
	select {
	case data, ok := <-m.Events():
		require.True(t, ok, "event channel closed")
		var env streaming.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return streaming.Envelope{}
	}
}

func TestColdJoinReceivesFullState(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ctx := context.Background()

	_, err := h.PublishGroups("demo", []scene.GroupInput{
		{ID: "g1", Label: "Fleet", Style: style.PresetInput("operational"),
			Nodes: []core.Node{core.NamedNode("m1", "ams")}},
		{ID: "g2", Label: "Edge", Style: style.PresetInput("info"),
			Nodes: []core.Node{core.NamedNode("m2", "sjc")}},
	})
	require.NoError(t, err)
	theme, _ := style.ThemePreset("dark")
	require.NoError(t, h.PublishThemeChange("demo", theme))

	m, err := h.Join(ctx, "demo")
	require.NoError(t, err)
	defer h.Leave("demo", m)

	env := recvEnvelope(t, m)
	assert.Equal(t, streaming.TypeFullState, env.Type)
	assert.Equal(t, "demo", env.Room)

	var payload streaming.FullStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Len(t, payload.Groups, 2)
	assert.Equal(t, "g1", payload.Groups[0].ID)
	assert.Equal(t, "g2", payload.Groups[1].ID)
	assert.Equal(t, theme["background"], payload.Theme["background"])
}

func TestJoinEmptyRoomGetsNoSeedEvent(t *testing.T) {
	h := newTestHub(t, time.Minute)
	m, err := h.Join(context.Background(), "fresh")
	require.NoError(t, err)
	defer h.Leave("fresh", m)

	select {
	case data := <-m.Events():
		t.Fatalf("expected no seed event for empty room, got %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProducerOrderPreserved(t *testing.T) {
	h := newTestHub(t, time.Minute)
	m, err := h.Join(context.Background(), "demo")
	require.NoError(t, err)
	defer h.Leave("demo", m)

	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m1", "ams")))
	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m2", "fra")))
	require.NoError(t, h.PublishMarkerRemove("demo", "g1", "m1"))

	first := recvEnvelope(t, m)
	second := recvEnvelope(t, m)
	third := recvEnvelope(t, m)

	assert.Equal(t, streaming.TypeMarkerAdd, first.Type)
	assert.Equal(t, streaming.TypeMarkerAdd, second.Type)
	assert.Equal(t, streaming.TypeMarkerRemove, third.Type)

	var a1, a2 streaming.MarkerAddPayload
	require.NoError(t, json.Unmarshal(first.Payload, &a1))
	require.NoError(t, json.Unmarshal(second.Payload, &a2))
	assert.Equal(t, "m1", a1.Marker.ID)
	assert.Equal(t, "m2", a2.Marker.ID)
}

func TestPublishUpdatesSceneBeforeBroadcast(t *testing.T) {
	h := newTestHub(t, time.Minute)
	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m1", "ams")))

	snap, ok := h.Snapshot("demo")
	require.True(t, ok)
	require.Len(t, snap.Groups, 1)
	assert.Equal(t, "m1", snap.Groups[0].Nodes[0].ID)
}

func TestMarkerRemoveNonexistentIsNoop(t *testing.T) {
	h := newTestHub(t, time.Minute)
	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m1", "ams")))
	require.NoError(t, h.PublishMarkerRemove("demo", "g1", "ghost"))
	require.NoError(t, h.PublishMarkerRemove("demo", "nogroup", "m1"))

	snap, ok := h.Snapshot("demo")
	require.True(t, ok)
	require.Len(t, snap.Groups, 1)
	assert.Len(t, snap.Groups[0].Nodes, 1)
}

func TestMarkerAddSameIDReplaces(t *testing.T) {
	h := newTestHub(t, time.Minute)
	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m1", "ams")))
	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m1", "fra")))

	snap, _ := h.Snapshot("demo")
	require.Len(t, snap.Groups[0].Nodes, 1)
	assert.Equal(t, "fra", snap.Groups[0].Nodes[0].Key)
}

func TestPublishGroupsReportsNodeErrors(t *testing.T) {
	h := newTestHub(t, time.Minute)
	errs, err := h.PublishGroups("demo", []scene.GroupInput{{
		ID:    "g1",
		Style: style.PresetInput("info"),
		Nodes: []core.Node{
			core.NamedNode("m1", "ams"),
			core.CoordNode("m2", 200, 0),
		},
	}})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "m2", errs[0].NodeID)

	snap, _ := h.Snapshot("demo")
	require.Len(t, snap.Groups, 1)
	assert.Len(t, snap.Groups[0].Nodes, 1)
}

func TestVisibilityToggleKeepsMarkerData(t *testing.T) {
	h := newTestHub(t, time.Minute)
	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m1", "ams")))
	before, _ := h.Snapshot("demo")

	require.NoError(t, h.PublishVisibilityToggle("demo", "g1", false))
	hidden, _ := h.Snapshot("demo")
	assert.False(t, hidden.Groups[0].Visible)
	assert.Equal(t, before.Groups[0].Nodes, hidden.Groups[0].Nodes)

	require.NoError(t, h.PublishVisibilityToggle("demo", "g1", true))
	after, _ := h.Snapshot("demo")
	assert.Equal(t, before.Groups[0], after.Groups[0])
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := newTestHub(t, time.Minute)
	m, err := h.Join(context.Background(), "demo")
	require.NoError(t, err)

	h.Leave("demo", m)
	h.Leave("demo", m) // second leave is a no-op
	h.Leave("demo", nil)

	_, members := h.Stats()
	assert.Equal(t, 0, members)
}

func TestRoomReapedAfterGracePeriod(t *testing.T) {
	h := newTestHub(t, 50*time.Millisecond)
	m, err := h.Join(context.Background(), "ephemeral")
	require.NoError(t, err)
	h.Leave("ephemeral", m)

	require.Eventually(t, func() bool {
		rooms, _ := h.Stats()
		return rooms == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRejoinDuringGraceCancelsReap(t *testing.T) {
	h := newTestHub(t, 200*time.Millisecond)
	require.NoError(t, h.PublishMarkerAdd("sticky", "g1", core.NamedNode("m1", "ams")))

	m1, err := h.Join(context.Background(), "sticky")
	require.NoError(t, err)
	recvEnvelope(t, m1) // seeded full_state
	h.Leave("sticky", m1)

	m2, err := h.Join(context.Background(), "sticky")
	require.NoError(t, err)
	defer h.Leave("sticky", m2)

	time.Sleep(400 * time.Millisecond)
	rooms, _ := h.Stats()
	assert.Equal(t, 1, rooms)

	env := recvEnvelope(t, m2)
	assert.Equal(t, streaming.TypeFullState, env.Type)
}

func TestHandleSyncOutcomes(t *testing.T) {
	h := newTestHub(t, time.Minute)
	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m1", "ams")))

	m, err := h.Join(context.Background(), "demo")
	require.NoError(t, err)
	defer h.Leave("demo", m)
	recvEnvelope(t, m) // seeded full_state

	snap, _ := h.Snapshot("demo")
	fp, err := streaming.Fingerprint(snap)
	require.NoError(t, err)

	assert.Equal(t, streaming.SyncInSync, h.HandleSync("demo", m, fp))
	assert.Equal(t, streaming.SyncAcknowledged, h.HandleSync("demo", m, ""))

	result := h.HandleSync("demo", m, "stale-fingerprint")
	assert.Equal(t, streaming.SyncStateUpdated, result)

	env := recvEnvelope(t, m)
	assert.Equal(t, streaming.TypeFullState, env.Type)
}

func TestSnapshotRehydrationFromStore(t *testing.T) {
	st := memory.New()
	require.NoError(t, st.Init())

	saved := core.SceneState{
		Groups: []core.MarkerGroup{{ID: "g1", Nodes: []core.Node{core.NamedNode("m1", "lhr")}, Visible: true}},
		Config: core.MapConfig{BBox: core.BBox{Width: 800, Height: 400}},
	}
	require.NoError(t, st.SaveScene(context.Background(), "restored", &saved))

	h, err := New(Config{GracePeriod: time.Minute}, nopLogger{}, scene.Builder{}, st)
	require.NoError(t, err)
	defer h.Close()

	m, err := h.Join(context.Background(), "restored")
	require.NoError(t, err)
	defer h.Leave("restored", m)

	env := recvEnvelope(t, m)
	assert.Equal(t, streaming.TypeFullState, env.Type)

	var payload streaming.FullStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Len(t, payload.Groups, 1)
	assert.Equal(t, "g1", payload.Groups[0].ID)
}

func TestHealthCheckTouchesNoRoom(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ev := h.HandleHealth()
	assert.Equal(t, streaming.TypeHealthReply, ev.Type)

	rooms, _ := h.Stats()
	assert.Equal(t, 0, rooms, "health check must not create rooms")
}

func TestJoinCancelledContext(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// a join raced with immediate cancellation must not leak membership
	m, err := h.Join(ctx, "demo")
	if err == nil {
		h.Leave("demo", m)
	}
	require.Eventually(t, func() bool {
		_, members := h.Stats()
		return members == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestClearedGroupStillValidatesOnClients(t *testing.T) {
	h := newTestHub(t, time.Minute)

	require.NoError(t, h.PublishMarkerAdd("demo", "g1", core.NamedNode("m1", "ams")))
	require.NoError(t, h.PublishGroupUpdate("demo", "g1", nil))
	// A group that never held a marker at all.
	require.NoError(t, h.PublishGroupUpdate("demo", "g2", nil))

	m, err := h.Join(context.Background(), "demo")
	require.NoError(t, err)
	defer h.Leave("demo", m)

	env := recvEnvelope(t, m)
	require.Equal(t, streaming.TypeFullState, env.Type)
	assert.NotContains(t, string(env.Payload), `"nodes":null`)

	var payload streaming.FullStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	require.Len(t, payload.Groups, 2)
	for _, g := range payload.Groups {
		require.NotNil(t, g.Nodes, "group %q", g.ID)
	}
	assert.NoError(t, client.ValidateServerState(payload))
}

func TestShutdownRunsQueuedClosures(t *testing.T) {
	h := newTestHub(t, time.Minute)
	r := h.getOrCreate("demo")

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, r.enqueue(func() { ran.Add(1) }))
	}
	r.shutdown()

	assert.ErrorIs(t, r.enqueue(func() { ran.Add(1) }), ErrRoomClosed)

	// Closures accepted before shutdown are drained, never dropped;
	// callers waiting on a reply from one cannot hang.
	assert.Eventually(t, func() bool { return ran.Load() == 5 },
		2*time.Second, 5*time.Millisecond)
}
