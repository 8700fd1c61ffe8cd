// Package server exposes the hub over HTTP: a WebSocket endpoint for the
// room sync protocol, a bootstrap document endpoint for first paint, and
// a liveness probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"

	"github.com/clutterstack/flymap/internal/hub"
	"github.com/clutterstack/flymap/internal/util"
	"github.com/clutterstack/flymap/pkg/streaming"
)

// Config carries HTTP server settings.
type Config struct {
	Addr string
}

// Server routes HTTP traffic to the hub.
type Server struct {
	cfg      Config
	hub      *hub.Hub
	log      *slog.Logger
	upgrader ws.Upgrader
	http     *http.Server
}

func New(cfg Config, h *hub.Hub, log *slog.Logger) *Server {
	s := &Server{
		cfg: cfg,
		hub: h,
		log: log,
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The hosting page may live on a different origin than the
			// sync endpoint.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{key}/bootstrap", s.handleBootstrap).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWS)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests driving the server through
// httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleHealthz is a liveness probe. It goes through the hub's health
// path, which never touches room state.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ev := s.hub.HandleHealth()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "type": ev.Type})
}

// handleBootstrap serves the embed document for a room: the room key, a
// fresh surface id, and the current scene snapshot. A room that does not
// exist yet bootstraps empty; it is created lazily on the first join.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	key := util.NormalizeKey(mux.Vars(r)["key"])
	if key == "" {
		http.Error(w, "missing room key", http.StatusBadRequest)
		return
	}

	b := streaming.Bootstrap{
		Room:      key,
		SurfaceID: "flymap-" + uuid.NewString(),
	}
	if snap, ok := s.hub.Snapshot(key); ok {
		b.State = streaming.FullStatePayload{
			Groups: snap.Groups,
			Theme:  snap.Theme,
			Config: snap.Config,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b); err != nil {
		s.log.Warn("Failed to write bootstrap response", "room", key, "error", err)
	}
}

// handleWS upgrades the request and hands the socket to a session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	sess := newSession(conn, s.hub, s.log.With("remote", r.RemoteAddr))
	go sess.run()
}
