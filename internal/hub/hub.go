// Package hub is the server side of the map sync protocol: it owns one
// Scene State per room, registers members, answers sync and health
// requests, and fans state changes out to every subscriber.
package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/clutterstack/flymap/internal/scene"
	"github.com/clutterstack/flymap/internal/store"
	"github.com/clutterstack/flymap/internal/util"
	"github.com/clutterstack/flymap/pkg/core"
	"github.com/clutterstack/flymap/pkg/streaming"
)

// Logger is the pluggable logging interface the hub writes through.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config carries hub tuning knobs.
type Config struct {
	// OutboxSize bounds each member's event buffer.
	OutboxSize int
	// GracePeriod is how long an empty room lingers before its state is
	// discarded.
	GracePeriod time.Duration
	// DefaultMapConfig seeds the config block of newly created rooms.
	DefaultMapConfig core.MapConfig
}

// Hub coordinates all rooms. Rooms are created lazily on first reference
// and reaped after draining.
type Hub struct {
	cfg     Config
	log     Logger
	store   store.Store // optional snapshot persistence
	builder scene.Builder
	baseCtx context.Context

	mu    sync.RWMutex
	rooms map[string]*room

	eventsBroadcast metric.Int64Counter
	droppedEvents   metric.Int64Counter
	roomCount       metric.Int64ObservableGauge
	memberCount     metric.Int64ObservableGauge
}

// New creates a Hub. st may be nil to disable snapshot persistence.
// Metrics use the global OTel meter and are no-ops when none is
// configured.
func New(cfg Config, log Logger, b scene.Builder, st store.Store) (*Hub, error) {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 256
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 30 * time.Second
	}

	h := &Hub{
		cfg:     cfg,
		log:     log,
		store:   st,
		builder: b,
		baseCtx: context.Background(),
		rooms:   make(map[string]*room),
	}

	m := meter()
	var err error

	h.eventsBroadcast, err = m.Int64Counter(
		"hub.events.broadcast",
		metric.WithDescription("Total events fanned out to room members"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating broadcast counter: %w", err)
	}

	h.droppedEvents, err = m.Int64Counter(
		"hub.events.dropped",
		metric.WithDescription("Events dropped because a member outbox was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	h.roomCount, err = m.Int64ObservableGauge(
		"hub.rooms",
		metric.WithDescription("Rooms currently alive"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating room gauge: %w", err)
	}

	h.memberCount, err = m.Int64ObservableGauge(
		"hub.members",
		metric.WithDescription("Members across all rooms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating member gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			rooms, members := h.Stats()
			o.ObserveInt64(h.roomCount, int64(rooms))
			o.ObserveInt64(h.memberCount, int64(members))
			return nil
		},
		h.roomCount, h.memberCount,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}

	return h, nil
}

func (h *Hub) recordBroadcast(roomKey, eventType string, members int) {
	h.eventsBroadcast.Add(h.baseCtx, int64(members),
		metric.WithAttributes(
			attribute.String("room", roomKey),
			attribute.String("type", eventType),
		))
}

func (h *Hub) recordDrop(roomKey string) {
	h.droppedEvents.Add(h.baseCtx, 1,
		metric.WithAttributes(attribute.String("room", roomKey)))
}

// getOrCreate returns the live room for key, creating it (and attempting
// snapshot rehydration) on first reference.
func (h *Hub) getOrCreate(key string) *room {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if ok {
		return r
	}

	seed := core.SceneState{Config: h.cfg.DefaultMapConfig}
	if h.store != nil {
		if saved, err := h.store.LoadScene(h.baseCtx, key); err == nil && saved != nil {
			seed = *saved
			h.log.Info("Rehydrated room from snapshot", "room", key, "groups", len(seed.Groups))
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[key]; ok {
		return r // lost the race
	}
	r = newRoom(h, key, seed)
	h.rooms[key] = r
	h.log.Debug("Room created", "room", key)
	return r
}

// reap removes a drained room. Called from the room's grace timer; the
// room re-checks emptiness on its own goroutine before dying.
func (h *Hub) reap(key string) {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if !ok {
		return
	}
	_ = r.enqueue(func() {
		if len(r.members) != 0 || r.state != stateDraining {
			return // re-joined during the grace period
		}
		h.mu.Lock()
		delete(h.rooms, key)
		h.mu.Unlock()
		r.shutdown()
		h.log.Debug("Room reaped", "room", key)
	})
}

// dispatch runs fn on the room goroutine, recreating the room once if it
// was reaped between lookup and enqueue.
func (h *Hub) dispatch(key string, fn func(r *room)) error {
	key = util.NormalizeKey(key)
	for attempt := 0; attempt < 2; attempt++ {
		r := h.getOrCreate(key)
		err := r.enqueue(func() { fn(r) })
		if err == ErrRoomClosed {
			continue
		}
		return err
	}
	return ErrRoomClosed
}

// Join registers the caller as a member of the room, creating the room if
// absent. No payload validation happens at join; the room may start
// empty.
func (h *Hub) Join(ctx context.Context, roomKey string) (*Member, error) {
	m := newMember(util.NormalizeKey(roomKey), h.cfg.OutboxSize)
	joined := make(chan struct{})
	err := h.dispatch(roomKey, func(r *room) {
		r.join(m)
		close(joined)
	})
	if err != nil {
		return nil, err
	}
	select {
	case <-joined:
		return m, nil
	case <-ctx.Done():
		// Joined-then-gone must not leak a subscription.
		h.Leave(roomKey, m)
		return nil, ctx.Err()
	}
}

// Leave removes a member. Idempotent: leaving twice, or leaving a room
// that is already gone, is safe.
func (h *Hub) Leave(roomKey string, m *Member) {
	if m == nil {
		return
	}
	_ = h.dispatch(roomKey, func(r *room) {
		r.leave(m.ID)
	})
}

// HandleSync compares the client's fingerprint against the room state and
// returns one of the streaming.Sync* results.
func (h *Hub) HandleSync(roomKey string, m *Member, clientFingerprint string) string {
	result := streaming.SyncAcknowledged
	done := make(chan struct{})
	err := h.dispatch(roomKey, func(r *room) {
		result = r.handleSync(m, clientFingerprint)
		close(done)
	})
	if err != nil {
		return streaming.SyncAcknowledged
	}
	<-done
	return result
}

// HandleHealth is a constant-time liveness reply. It never touches Scene
// State.
func (h *Hub) HandleHealth() streaming.Event {
	return streaming.Event{Type: streaming.TypeHealthReply}
}

// Snapshot returns a copy of the room's current scene, for the bootstrap
// endpoint. ok is false when the room does not exist.
func (h *Hub) Snapshot(roomKey string) (core.SceneState, bool) {
	h.mu.RLock()
	r, exists := h.rooms[util.NormalizeKey(roomKey)]
	h.mu.RUnlock()
	if !exists {
		return core.SceneState{}, false
	}

	var snap core.SceneState
	done := make(chan struct{})
	if err := r.enqueue(func() {
		snap = r.scene.Clone()
		close(done)
	}); err != nil {
		return core.SceneState{}, false
	}
	<-done
	return snap, true
}

// Stats counts live rooms and members, for gauges and the stats sink.
func (h *Hub) Stats() (rooms, members int) {
	h.mu.RLock()
	keys := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		keys = append(keys, r)
	}
	h.mu.RUnlock()

	rooms = len(keys)
	for _, r := range keys {
		done := make(chan int, 1)
		if err := r.enqueue(func() { done <- len(r.members) }); err == nil {
			members += <-done
		}
	}
	return rooms, members
}

// PublishFullState replaces the room's scene wholesale and broadcasts a
// (throttled) full_state event. The scene is updated before the broadcast
// so a concurrent join always observes a consistent state.
func (h *Hub) PublishFullState(roomKey string, s core.SceneState) error {
	return h.dispatch(roomKey, func(r *room) {
		if s.Config == (core.MapConfig{}) {
			s.Config = r.scene.Config
		}
		r.scene = s.Clone()
		r.persist()
		r.broadcastFull()
	})
}

// PublishGroups runs raw group inputs through normalization and
// projection validation, replaces the room's group list, and broadcasts
// the diff between old and new state. Per-node validation errors are
// returned to the producer; invalid nodes are skipped, never fatal.
func (h *Hub) PublishGroups(roomKey string, inputs []scene.GroupInput) ([]scene.NodeError, error) {
	var errs []scene.NodeError
	done := make(chan struct{})
	err := h.dispatch(roomKey, func(r *room) {
		defer close(done)
		old := r.scene
		next, nodeErrs := h.builder.ApplyGroups(old, inputs)
		errs = nodeErrs
		r.scene = next
		r.persist()
		for _, ev := range scene.Diff(old, next) {
			if ev.Type == streaming.TypeFullState {
				r.broadcastFull()
				continue
			}
			r.broadcast(ev)
		}
	})
	if err != nil {
		return nil, err
	}
	<-done
	return errs, nil
}

// PublishGroupUpdate replaces one group's markers (creating the group on
// clients that lack it).
func (h *Hub) PublishGroupUpdate(roomKey, groupID string, markers []core.Node) error {
	// Always a non-nil slice: an emptied group must serialize its nodes
	// as [] so client-side state validation still accepts it.
	nodes := append(make([]core.Node, 0, len(markers)), markers...)
	return h.dispatch(roomKey, func(r *room) {
		if i := r.scene.GroupIndex(groupID); i >= 0 {
			r.scene.Groups[i].Nodes = nodes
		} else {
			r.scene.Groups = append(r.scene.Groups, core.MarkerGroup{
				ID:      groupID,
				Nodes:   nodes,
				Visible: true,
			})
		}
		r.persist()
		r.broadcast(streaming.Event{
			Type:    streaming.TypeGroupUpdate,
			Payload: streaming.GroupUpdatePayload{GroupID: groupID, Markers: nodes},
		})
	})
}

// PublishMarkerAdd adds (or replaces, by marker ID) a single marker.
func (h *Hub) PublishMarkerAdd(roomKey, groupID string, marker core.Node) error {
	return h.dispatch(roomKey, func(r *room) {
		i := r.scene.GroupIndex(groupID)
		if i < 0 {
			r.scene.Groups = append(r.scene.Groups, core.MarkerGroup{
				ID:      groupID,
				Nodes:   []core.Node{marker},
				Visible: true,
			})
		} else {
			g := &r.scene.Groups[i]
			if j := g.NodeIndex(marker.ID); j >= 0 {
				g.Nodes[j] = marker
			} else {
				g.Nodes = append(g.Nodes, marker)
			}
		}
		r.persist()
		r.broadcast(streaming.Event{
			Type:    streaming.TypeMarkerAdd,
			Payload: streaming.MarkerAddPayload{GroupID: groupID, Marker: marker},
		})
	})
}

// PublishMarkerRemove removes a single marker; removing a marker that is
// not there is a no-op (the event still broadcasts so mirrors converge).
func (h *Hub) PublishMarkerRemove(roomKey, groupID, markerID string) error {
	return h.dispatch(roomKey, func(r *room) {
		if i := r.scene.GroupIndex(groupID); i >= 0 {
			g := &r.scene.Groups[i]
			if j := g.NodeIndex(markerID); j >= 0 {
				g.Nodes = append(g.Nodes[:j], g.Nodes[j+1:]...)
			}
		}
		r.persist()
		r.broadcast(streaming.Event{
			Type:    streaming.TypeMarkerRemove,
			Payload: streaming.MarkerRemovePayload{GroupID: groupID, MarkerID: markerID},
		})
	})
}

// PublishThemeChange merges the given keys into the room theme.
func (h *Hub) PublishThemeChange(roomKey string, theme core.Theme) error {
	return h.dispatch(roomKey, func(r *room) {
		r.scene.Theme = r.scene.Theme.Merge(theme)
		r.persist()
		r.broadcast(streaming.Event{
			Type:    streaming.TypeThemeChange,
			Payload: streaming.ThemeChangePayload{Theme: theme},
		})
	})
}

// PublishVisibilityToggle flags a group hidden or visible. Hidden groups
// stay in the scene.
func (h *Hub) PublishVisibilityToggle(roomKey, groupID string, visible bool) error {
	return h.dispatch(roomKey, func(r *room) {
		if i := r.scene.GroupIndex(groupID); i >= 0 {
			r.scene.Groups[i].Visible = visible
		}
		r.persist()
		r.broadcast(streaming.Event{
			Type:    streaming.TypeVisibilityToggle,
			Payload: streaming.VisibilityTogglePayload{GroupID: groupID, Visible: visible},
		})
	})
}

// Close tears down every room. Members see their event channels close.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, r := range rooms {
		_ = r.enqueue(func() {
			for id, m := range r.members {
				delete(r.members, id)
				m.outbox.Close()
			}
		})
		r.shutdown()
	}
}
