package hub

import (
	"github.com/google/uuid"

	"github.com/clutterstack/flymap/internal/channel"
)

// Member is one subscriber of a room. Events arrive on a buffered outbox;
// a member that stops draining it loses messages rather than stalling the
// room.
type Member struct {
	ID   uuid.UUID
	Room string

	outbox channel.Channel[[]byte]
}

func newMember(room string, outboxSize int) *Member {
	return &Member{
		ID:     uuid.New(),
		Room:   room,
		outbox: channel.New[[]byte](outboxSize),
	}
}

// Events returns the member's event stream. The channel closes when the
// member leaves or the room shuts down.
func (m *Member) Events() <-chan []byte {
	return m.outbox.Receive()
}

// push delivers fire-and-forget; reports whether the outbox accepted it.
func (m *Member) push(data []byte) bool {
	return m.outbox.TrySend(data)
}
