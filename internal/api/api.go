// Package api serves the inbound slash-command endpoint.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/antigravity-dev/taskrelay/internal/config"
	"github.com/antigravity-dev/taskrelay/internal/relay"
)

// Server is the HTTP API server.
type Server struct {
	cfgMgr         config.ConfigManager
	spawner        relay.Spawner
	logger         *slog.Logger
	startTime      time.Time
	httpServer     *http.Server
	authMiddleware *AuthMiddleware

	newID func() string
	now   func() time.Time
}

// NewServer creates a new API server that hands accepted commands to spawner.
func NewServer(cfgMgr config.ConfigManager, spawner relay.Spawner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfgMgr:         cfgMgr,
		spawner:        spawner,
		logger:         logger,
		startTime:      time.Now(),
		authMiddleware: NewAuthMiddleware(cfgMgr, logger),
		newID:          func() string { return uuid.NewString() },
		now:            time.Now,
	}
}

// Handler returns the routed handler. Start uses it; tests call it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/slack/command", s.authMiddleware.RequireSignature(s.handleSlackCommand))

	return mux
}

// Start begins listening on the configured address. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfgMgr.Get().ListenAddr()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "bind", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// POST /slack/command
func (s *Server) handleSlackCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("slash command handler panicked", "panic", rec)
			writeJSON(w, internalError(fmt.Errorf("%v", rec)))
		}
	}()

	if err := r.ParseForm(); err != nil {
		s.logger.Warn("unreadable slash command form", "error", err)
		writeJSON(w, internalError(err))
		return
	}

	cmd, err := ParseCommand(r.PostForm)
	if err != nil {
		if resp, ok := validationResponse(err); ok {
			s.logger.Info("slash command rejected", "reason", err.Error(), "user", cmd.UserName)
			writeJSON(w, resp)
			return
		}
		writeJSON(w, internalError(err))
		return
	}

	job := relay.Job{
		ID:          s.newID(),
		Text:        cmd.Text,
		CallbackURL: cmd.ResponseURL,
		Requester:   cmd.UserName,
		ReceivedAt:  s.now(),
	}
	if err := s.spawner.Spawn(r.Context(), job); err != nil {
		s.logger.Error("failed to spawn relay", "job_id", job.ID, "error", err)
		writeJSON(w, internalError(err))
		return
	}

	s.logger.Info("slash command accepted", "job_id", job.ID, "user", job.Requester, "text", relay.Preview(job.Text))
	writeJSON(w, Acknowledgment(job.Requester))
}
