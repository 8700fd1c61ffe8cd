package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clutterstack/flymap/internal/queue"
	"github.com/clutterstack/flymap/pkg/streaming"
)

// State is the reconciler lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
	StateRecovering
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateRecovering:
		return "recovering"
	case StateFallback:
		return "fallback"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config wires a reconciler to one room on one server. Everything a
// hosting page needs to pass is explicit here; there is no process-wide
// registry to consult.
type Config struct {
	// URL is the ws:// or wss:// sync endpoint.
	URL string
	// Room is the room key to subscribe to. Events carrying a different
	// room key are discarded as stale.
	Room string
	// Backoff bounds the reconnect policy.
	Backoff BackoffConfig
	// Support is the pre-flight check result. A failed check sends the
	// reconciler straight to fallback without a connect attempt.
	Support Support
	// SyncInterval, when positive, re-verifies the mirror against the
	// server on a timer while joined.
	SyncInterval time.Duration
}

// Reconciler subscribes to one room, keeps a local mirror of its Scene
// State, and drives a Surface. Inbound events are staged on a queue and
// applied strictly one at a time, so a render pass is never interleaved
// with the next event's mutation.
type Reconciler struct {
	cfg     Config
	log     *slog.Logger
	surface Surface
	conn    *connection

	// mirrorMu guards mirror: the run goroutine applies events to it
	// while Mirror() snapshots it from any goroutine.
	mirrorMu sync.Mutex
	mirror   Mirror

	mu    sync.Mutex
	state State

	pending *queue.Queue[streaming.Envelope]
	notify  chan struct{}
	resume  chan struct{}
	done    chan struct{}
	stop    sync.Once
}

func New(cfg Config, surface Surface, log *slog.Logger) *Reconciler {
	return &Reconciler{
		cfg:     cfg,
		log:     log.With("room", cfg.Room),
		surface: surface,
		pending: queue.New[streaming.Envelope](),
		notify:  make(chan struct{}, 1),
		resume:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	prev := r.state
	if prev == StateFallback {
		// Fallback is terminal.
		r.mu.Unlock()
		return
	}
	r.state = s
	r.mu.Unlock()
	if prev != s {
		r.log.Debug("Reconciler state change", "from", prev.String(), "to", s.String())
	}
}

// Mirror returns a deep copy of the local mirror.
func (r *Reconciler) Mirror() Mirror {
	r.mirrorMu.Lock()
	defer r.mirrorMu.Unlock()
	return Mirror{state: r.mirror.State()}
}

// Mount seeds the mirror from the embedded bootstrap document (nil skips
// seeding), runs the pre-flight support check, and starts the join. The
// first paint happens from the bootstrap, before any round trip.
func (r *Reconciler) Mount(bootstrapDoc []byte) error {
	if bootstrapDoc != nil {
		b, err := streaming.ParseBootstrap(bootstrapDoc)
		if err != nil {
			return err
		}
		if b.Room != r.cfg.Room {
			return fmt.Errorf("bootstrap is for room %q, reconciler wants %q", b.Room, r.cfg.Room)
		}
		if err := ValidateServerState(b.State); err != nil {
			return fmt.Errorf("bootstrap state: %w", err)
		}
		r.mirrorMu.Lock()
		r.mirror.Seed(b.State)
		snap := r.mirror.State()
		r.mirrorMu.Unlock()
		r.surface.RenderFull(snap)
	}

	if !r.cfg.Support.OK() {
		r.log.Warn("Client runtime unsupported, falling back to static rendering",
			"transport", r.cfg.Support.Transport,
			"surface", r.cfg.Support.Surface,
			"runtime", r.cfg.Support.Runtime)
		r.enterFallback()
		return nil
	}

	r.setState(StateConnecting)
	r.conn = newConnection(r.cfg.Backoff, r.log)
	r.conn.onMessage = r.enqueue
	r.conn.onReconnect = func() { r.setState(StateRecovering) }
	r.conn.onRestored = func() {
		select {
		case r.resume <- struct{}{}:
		default:
		}
	}
	r.conn.onExhausted = r.enterFallback

	go r.run()

	if err := r.conn.dial(r.cfg.URL); err != nil {
		r.log.Warn("Initial dial failed, entering recovery", "error", err)
		r.setState(StateRecovering)
		go r.conn.reconnect()
		return nil
	}
	r.sendJoin()
	r.setState(StateJoined)
	return nil
}

// Unmount stops the reconciler and closes the connection. Safe to call
// twice; a fallback surface stays in fallback.
func (r *Reconciler) Unmount() {
	r.stop.Do(func() {
		if r.conn != nil {
			_ = r.conn.close()
		}
		close(r.done)
		r.setState(StateDisconnected)
	})
}

// NotifyTransportAvailable hints that the network came back. When in
// fallback the hint is ignored; fallback never reconnects.
func (r *Reconciler) NotifyTransportAvailable() {
	if r.State() == StateFallback {
		r.log.Debug("Transport-available signal ignored in fallback")
		return
	}
	// Recovery already retries on its own schedule; nothing to force.
	r.log.Debug("Transport available")
}

func (r *Reconciler) sendJoin() {
	data, err := (streaming.Event{Type: streaming.TypeJoin, Room: r.cfg.Room}).Marshal()
	if err != nil {
		r.log.Error("Failed to marshal join", "error", err)
		return
	}
	r.conn.setJoinMessage(data)
	r.conn.send(data)
}

func (r *Reconciler) sendSyncRequest() {
	r.mirrorMu.Lock()
	fp, err := r.mirror.Fingerprint()
	r.mirrorMu.Unlock()
	if err != nil {
		r.log.Warn("Failed to fingerprint mirror", "error", err)
		return
	}
	ev := streaming.Event{
		Type:    streaming.TypeSyncRequest,
		Room:    r.cfg.Room,
		Payload: streaming.SyncRequestPayload{Fingerprint: fp},
	}
	data, err := ev.Marshal()
	if err != nil {
		r.log.Error("Failed to marshal sync_request", "error", err)
		return
	}
	r.conn.send(data)
}

// enqueue stages an inbound frame for the apply loop. Runs on the
// connection's read goroutine.
func (r *Reconciler) enqueue(data []byte) {
	var env streaming.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.log.Debug("Malformed envelope dropped", "error", err)
		return
	}
	r.pending.Push(env)
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// run is the apply loop: one event at a time, render completing before
// the next apply begins.
func (r *Reconciler) run() {
	var syncTick <-chan time.Time
	if r.cfg.SyncInterval > 0 {
		t := time.NewTicker(r.cfg.SyncInterval)
		defer t.Stop()
		syncTick = t.C
	}

	for {
		select {
		case <-r.done:
			return
		case <-r.resume:
			r.setState(StateJoined)
			// Verify the mirror survived the outage.
			r.sendSyncRequest()
		case <-syncTick:
			if r.State() == StateJoined {
				r.sendSyncRequest()
			}
		case <-r.notify:
			for _, env := range r.pending.PopAll() {
				r.handleEvent(env)
			}
		}
	}
}

func (r *Reconciler) handleEvent(env streaming.Envelope) {
	// Events forwarded from a room this client has since left carry the
	// old room key; discard them.
	if env.Room != "" && env.Room != r.cfg.Room {
		r.log.Debug("Stale-room event discarded", "eventRoom", env.Room)
		return
	}

	switch env.Type {
	case streaming.TypeSyncReply:
		var p streaming.SyncReplyPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.log.Debug("Malformed sync_reply dropped", "error", err)
			return
		}
		r.log.Debug("Sync reply", "result", p.Result)
		return
	case streaming.TypeHealthReply:
		return
	}

	r.mirrorMu.Lock()
	err := r.mirror.Apply(env)
	r.mirrorMu.Unlock()
	if err != nil {
		// Invalid events are dropped whole, never applied partially.
		r.log.Warn("Event failed validation, dropped", "type", env.Type, "error", err)
		return
	}
	r.render(env)
}

// render pushes the already-applied event's effect to the surface.
func (r *Reconciler) render(env streaming.Envelope) {
	switch env.Type {
	case streaming.TypeFullState:
		r.mirrorMu.Lock()
		snap := r.mirror.State()
		r.mirrorMu.Unlock()
		r.surface.RenderFull(snap)

	case streaming.TypeGroupUpdate:
		var p streaming.GroupUpdatePayload
		_ = json.Unmarshal(env.Payload, &p)
		r.mirrorMu.Lock()
		g, ok := r.mirror.state.Group(p.GroupID)
		r.mirrorMu.Unlock()
		if ok {
			r.surface.RenderGroup(g)
		}

	case streaming.TypeMarkerAdd:
		var p streaming.MarkerAddPayload
		_ = json.Unmarshal(env.Payload, &p)
		r.surface.RenderMarkerAdd(p.GroupID, p.Marker)

	case streaming.TypeMarkerRemove:
		var p streaming.MarkerRemovePayload
		_ = json.Unmarshal(env.Payload, &p)
		r.surface.RenderMarkerRemove(p.GroupID, p.MarkerID)

	case streaming.TypeThemeChange:
		r.mirrorMu.Lock()
		theme := r.mirror.state.Theme.Clone()
		r.mirrorMu.Unlock()
		r.surface.RenderTheme(theme)

	case streaming.TypeVisibilityToggle:
		var p streaming.VisibilityTogglePayload
		_ = json.Unmarshal(env.Payload, &p)
		r.surface.RenderVisibility(p.GroupID, p.Visible)
	}
}

// enterFallback abandons live updates for good: client-rendered elements
// are discarded and the surface is marked server-rendered-only. No
// reconnect ever follows.
func (r *Reconciler) enterFallback() {
	r.mu.Lock()
	if r.state == StateFallback {
		r.mu.Unlock()
		return
	}
	r.state = StateFallback
	r.mu.Unlock()

	r.log.Warn("Entering fallback mode, live updates abandoned")
	if r.conn != nil {
		_ = r.conn.close()
	}
	r.surface.Clear()
	r.surface.MarkStatic()
}
