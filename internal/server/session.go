package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/clutterstack/flymap/internal/hub"
	"github.com/clutterstack/flymap/pkg/streaming"
)

const (
	sessionSendSize = 256
	writeWait       = 10 * time.Second
)

// session owns one WebSocket connection. A single write goroutine drains
// sendCh; the read loop and the member-event forwarder both feed it, so
// the socket is never written from two goroutines.
type session struct {
	conn *ws.Conn
	hub  *hub.Hub
	log  *slog.Logger

	sendCh chan []byte
	done   chan struct{}

	// Read-loop state; one membership at a time.
	room    string
	member  *hub.Member
	forward chan struct{} // closed when the forwarder exits
}

func newSession(conn *ws.Conn, h *hub.Hub, log *slog.Logger) *session {
	return &session{
		conn:   conn,
		hub:    h,
		log:    log,
		sendCh: make(chan []byte, sessionSendSize),
		done:   make(chan struct{}),
	}
}

func (s *session) run() {
	go s.writeLoop()
	s.readLoop()

	s.detach()
	close(s.done)
	_ = s.conn.Close()
}

func (s *session) readLoop() {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				s.log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.log.Debug("Malformed envelope, ignoring", "raw", string(message))
			continue
		}

		switch env.Type {
		case streaming.TypeJoin:
			s.handleJoin(env)
		case streaming.TypeLeave:
			s.detach()
		case streaming.TypeSyncRequest:
			s.handleSyncRequest(env)
		case streaming.TypeHealthCheck:
			s.reply(s.hub.HandleHealth())
		default:
			s.log.Debug("Unknown message type, ignoring", "type", env.Type)
		}
	}
}

func (s *session) handleJoin(env streaming.Envelope) {
	key := env.Room
	if key == "" && env.Payload != nil {
		var p streaming.JoinPayload
		if err := json.Unmarshal(env.Payload, &p); err == nil {
			key = p.Room
		}
	}
	if key == "" {
		s.log.Debug("Join without room key, ignoring")
		return
	}

	// One membership per socket; a new join supersedes the old room.
	s.detach()

	m, err := s.hub.Join(context.Background(), key)
	if err != nil {
		s.log.Warn("Join failed", "room", key, "error", err)
		return
	}
	s.room = key
	s.member = m
	s.forward = make(chan struct{})

	go func(m *hub.Member, stopped chan struct{}) {
		defer close(stopped)
		for data := range m.Events() {
			select {
			case s.sendCh <- data:
			case <-s.done:
				return
			}
		}
	}(m, s.forward)

	s.log.Debug("Session joined room", "room", key)
}

// detach leaves the current room, if any, and waits for the forwarder to
// stop so no stale-room event lands on the socket after a rejoin.
func (s *session) detach() {
	if s.member == nil {
		return
	}
	s.hub.Leave(s.room, s.member)
	select {
	case <-s.forward:
	case <-time.After(writeWait):
		s.log.Warn("Forwarder slow to stop", "room", s.room)
	}
	s.room = ""
	s.member = nil
	s.forward = nil
}

func (s *session) handleSyncRequest(env streaming.Envelope) {
	if s.member == nil {
		s.log.Debug("Sync request before join, ignoring")
		return
	}
	var p streaming.SyncRequestPayload
	if env.Payload != nil {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.log.Debug("Malformed sync_request payload", "error", err)
			return
		}
	}
	result := s.hub.HandleSync(s.room, s.member, p.Fingerprint)
	s.reply(streaming.Event{
		Type:    streaming.TypeSyncReply,
		Room:    s.room,
		Payload: streaming.SyncReplyPayload{Result: result},
	})
}

func (s *session) reply(ev streaming.Event) {
	data, err := ev.Marshal()
	if err != nil {
		s.log.Error("Failed to marshal reply", "type", ev.Type, "error", err)
		return
	}
	select {
	case s.sendCh <- data:
	case <-s.done:
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.sendCh:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.log.Warn("WebSocket SetWriteDeadline error", "error", err)
				return
			}
			if err := s.conn.WriteMessage(ws.TextMessage, data); err != nil {
				s.log.Warn("WebSocket write error", "error", err)
				return
			}
		}
	}
}
