// ABOUTME: Ops HTTP API for operators: health, session inspection and reset, sweeps, hand-offs
// ABOUTME: chi router with JWT bearer auth; mutating routes require the admin role

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/intake-gateway/internal/auth"
	"github.com/2389/intake-gateway/internal/session"
	"github.com/2389/intake-gateway/internal/store"
)

// SessionSummary is one row of GET /api/sessions.
type SessionSummary struct {
	ID                string    `json:"id"`
	State             string    `json:"state"`
	WaitingHuman      bool      `json:"waiting_human"`
	Fields            int       `json:"fields"`
	CreatedAt         time.Time `json:"created_at"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
}

// SessionDetail is the response for GET /api/sessions/{id}.
type SessionDetail struct {
	SessionSummary
	Data    map[string]any         `json:"data"`
	History []session.HistoryEntry `json:"history"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Open   bool   `json:"open"`
}

func summarize(s *session.Session) SessionSummary {
	return SessionSummary{
		ID:                s.ID,
		State:             s.State.Name(),
		WaitingHuman:      s.State.Terminal(),
		Fields:            len(s.Data.Entries()),
		CreatedAt:         s.CreatedAt,
		LastInteractionAt: s.LastInteractionAt,
	}
}

func detail(s *session.Session) SessionDetail {
	history := s.History
	if history == nil {
		history = []session.HistoryEntry{}
	}
	return SessionDetail{SessionSummary: summarize(s), Data: s.Data.Map(), History: history}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Handler returns the ops API. Only /health is served when the API has no
// token verifier.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(g.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	if g.verifier == nil {
		return r
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.HTTPAuthMiddleware(g.verifier, g.logger))

		api.Get("/sessions", g.handleListSessions)
		api.Get("/sessions/{id}", g.handleGetSession)
		api.Get("/handoffs", g.handleListHandoffs)

		api.Group(func(admin chi.Router) {
			admin.Use(auth.RequireAdminHTTP())
			admin.Delete("/sessions/{id}", g.handleResetSession)
			admin.Post("/sweep", g.handleSweep)
		})
	})
	return r
}

// requestLogger logs each request at debug level through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "ops-api")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Open: g.schedule.IsOpen(g.now())})
}

// sessionID returns the unescaped {id} path parameter. Matrix room IDs
// contain characters clients may percent-encode.
func sessionID(r *http.Request) (string, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := g.store.List(r.Context())
	if err != nil {
		g.logger.Error("listing sessions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (g *Gateway) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	s, err := g.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		g.logger.Error("loading session", "chat", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	respondJSON(w, http.StatusOK, detail(s))
}

func (g *Gateway) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if _, err := g.store.Get(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	s, err := g.store.Reset(r.Context(), id, g.now())
	if err != nil {
		g.logger.Error("resetting session", "chat", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}

	operator := ""
	if a := auth.FromContext(r.Context()); a != nil {
		operator = a.Subject
	}
	g.logger.Info("session reset by operator", "chat", id, "operator", operator)
	respondJSON(w, http.StatusOK, detail(s))
}

func (g *Gateway) handleSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := g.sweeper.SweepOnce(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (g *Gateway) handleListHandoffs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	handoffs, err := g.store.ListHandoffs(r.Context(), limit)
	if err != nil {
		g.logger.Error("listing handoffs", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list handoffs")
		return
	}
	if handoffs == nil {
		handoffs = []*store.Handoff{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"handoffs": handoffs})
}
