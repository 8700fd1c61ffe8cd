package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clutterstack/flymap/internal/channel"
	"github.com/clutterstack/flymap/pkg/core"
	"github.com/clutterstack/flymap/pkg/streaming"
)

// Room lifecycle states.
type roomState int

const (
	stateActive roomState = iota
	stateDraining
)

var (
	// ErrRoomClosed is returned when a message targets a room that has
	// finished draining. Callers retry once; the room is recreated lazily.
	ErrRoomClosed = errors.New("room closed")
	// ErrRoomBusy is returned when a room's mailbox is full.
	ErrRoomBusy = errors.New("room mailbox full")
)

const mailboxSize = 1024

// room owns one Scene State. All mutation happens on the room's goroutine,
// which drains the mailbox serially; rooms are independent and run fully
// in parallel.
type room struct {
	key     string
	hub     *Hub
	mailbox channel.Channel[func()]
	done    chan struct{}

	stopMu  sync.Mutex
	stopped bool

	// Owned by the room goroutine; never touched from outside it.
	state       roomState
	scene       core.SceneState
	members     map[uuid.UUID]*Member
	graceTimer  *time.Timer
	lastFull    time.Time
	pendingFull bool
}

func newRoom(h *Hub, key string, seed core.SceneState) *room {
	r := &room{
		key:     key,
		hub:     h,
		mailbox: channel.New[func()](mailboxSize),
		done:    make(chan struct{}),
		scene:   seed,
		members: make(map[uuid.UUID]*Member),
	}
	go r.loop()
	return r
}

// shutdown stops the room loop. Safe to call from both the reaper and
// hub Close.
func (r *room) shutdown() {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.done)
}

// enqueue hands a closure to the room goroutine. It holds stopMu across
// the send so that a nil return means the closure was buffered before
// done closed; the loop's final drain then always runs it, and callers
// blocking on a reply from the closure cannot hang.
func (r *room) enqueue(fn func()) error {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	if r.stopped {
		return ErrRoomClosed
	}
	if !r.mailbox.TrySend(fn) {
		return ErrRoomBusy
	}
	return nil
}

func (r *room) loop() {
	for {
		select {
		case <-r.done:
			// Run whatever was already queued, then stop.
			for {
				select {
				case fn := <-r.mailbox.Receive():
					fn()
				default:
					return
				}
			}
		case fn := <-r.mailbox.Receive():
			fn()
		}
	}
}

// join registers a member and, when the room already holds state, seeds
// the newcomer with a full_state event so no prior events are needed.
func (r *room) join(m *Member) {
	r.members[m.ID] = m
	if r.state == stateDraining {
		r.state = stateActive
		if r.graceTimer != nil {
			r.graceTimer.Stop()
			r.graceTimer = nil
		}
	}
	if len(r.scene.Groups) > 0 || len(r.scene.Theme) > 0 {
		r.sendTo(m, r.fullStateEvent())
	}
}

// leave is idempotent; removing an unknown member is a no-op.
func (r *room) leave(id uuid.UUID) {
	m, ok := r.members[id]
	if !ok {
		return
	}
	delete(r.members, id)
	m.outbox.Close()

	if len(r.members) == 0 && r.state == stateActive {
		r.state = stateDraining
		grace := r.hub.cfg.GracePeriod
		r.graceTimer = time.AfterFunc(grace, func() {
			r.hub.reap(r.key)
		})
	}
}

// broadcast fans an event out to every member in mailbox order. Delivery
// per member is fire-and-forget; a full outbox drops the event for that
// member only.
func (r *room) broadcast(ev streaming.Event) {
	ev.Room = r.key
	data, err := ev.Marshal()
	if err != nil {
		r.hub.log.Error("Failed to marshal event", "room", r.key, "type", ev.Type, "error", err)
		return
	}
	for _, m := range r.members {
		if !m.push(data) {
			r.hub.recordDrop(r.key)
			r.hub.log.Warn("Member outbox full, dropping event",
				"room", r.key, "member", m.ID.String(), "type", ev.Type)
		}
	}
	r.hub.recordBroadcast(r.key, ev.Type, len(r.members))
}

// sendTo targets a single member, used for join seeding and sync catch-up.
func (r *room) sendTo(m *Member, ev streaming.Event) {
	ev.Room = r.key
	data, err := ev.Marshal()
	if err != nil {
		r.hub.log.Error("Failed to marshal event", "room", r.key, "type", ev.Type, "error", err)
		return
	}
	if !m.push(data) {
		r.hub.recordDrop(r.key)
	}
}

func (r *room) fullStateEvent() streaming.Event {
	return streaming.Event{
		Type: streaming.TypeFullState,
		Payload: streaming.FullStatePayload{
			Groups: r.scene.Groups,
			Theme:  r.scene.Theme,
			Config: r.scene.Config,
		},
	}
}

// broadcastFull applies the room's update throttle: full-state broadcasts
// arriving faster than the throttle interval coalesce into one deferred
// broadcast of the latest scene. Incremental events are never throttled.
func (r *room) broadcastFull() {
	throttle := time.Duration(r.scene.Config.ThrottleMillis) * time.Millisecond
	now := time.Now()
	if throttle <= 0 || now.Sub(r.lastFull) >= throttle {
		r.lastFull = now
		r.broadcast(r.fullStateEvent())
		return
	}
	if r.pendingFull {
		return
	}
	r.pendingFull = true
	wait := throttle - now.Sub(r.lastFull)
	time.AfterFunc(wait, func() {
		_ = r.enqueue(func() {
			r.pendingFull = false
			r.lastFull = time.Now()
			r.broadcast(r.fullStateEvent())
		})
	})
}

// handleSync answers a sync_request for one member. Fingerprint match is
// in_sync; a clean full-state push to the requester is state_updated; any
// ambiguous case acknowledges and lets the broadcast stream catch the
// client up.
func (r *room) handleSync(m *Member, clientFingerprint string) string {
	serverFingerprint, err := streaming.Fingerprint(r.scene)
	if err != nil {
		return streaming.SyncAcknowledged
	}
	if clientFingerprint != "" && clientFingerprint == serverFingerprint {
		return streaming.SyncInSync
	}
	if clientFingerprint == "" {
		return streaming.SyncAcknowledged
	}
	r.sendTo(m, r.fullStateEvent())
	return streaming.SyncStateUpdated
}

// persist snapshots the scene to the store off the room goroutine.
// Failures are logged, never surfaced; persistence is best-effort.
func (r *room) persist() {
	if r.hub.store == nil {
		return
	}
	snapshot := r.scene.Clone()
	go func() {
		if err := r.hub.store.SaveScene(r.hub.baseCtx, r.key, &snapshot); err != nil {
			r.hub.log.Warn("Snapshot save failed", "room", r.key, "error", err)
		}
	}()
}
