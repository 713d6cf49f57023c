// internal/httpserver/server.go
//
// HTTP wiring for the game backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     per-IP rate limiting).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): mounted under /games.
//   - Auth endpoints: /auth/*; ranked endpoints under /ranked.
//   - Mapping engine errors onto HTTP statuses.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token
//     is present; guests can still play unranked games.

package httpserver

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/wordclash/server/internal/engine"
	"github.com/wordclash/server/internal/game"
	"github.com/wordclash/server/internal/ranked"
	"github.com/wordclash/server/internal/similarity"
	"github.com/wordclash/server/internal/themes"
)

// Server bundles router, game engine, ranked ladder, and DB handle.
type Server struct {
	r       *chi.Mux
	machine *engine.Machine
	ladder  *ranked.Store
	db      *sql.DB
}

// New constructs a Server, installs middleware, and registers routes.
func New(machine *engine.Machine, ladder *ranked.Store, db *sql.DB) *Server {
	s := &Server{r: chi.NewRouter(), machine: machine, ladder: ladder, db: db}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(corsFromEnv)                     // credentials-friendly CORS
	s.r.Use(newIPRateLimiter().middleware)   // per-IP request cap

	// Settle ranked ladders whenever a ranked game finishes.
	machine.SetFinishHook(s.settleRanked)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"wordclash","endpoints":["/health","POST /games","/games/{code}/*","/auth/*","/ranked/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Game endpoints — OPTIONAL AUTH (guests can play unranked)
	s.r.Route("/games", func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		s.mountGameRoutes(r)
	})

	// Auth + ranked
	s.mountAuthRoutes()
	s.mountRankedRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	// Debug: theme inventory
	s.r.Get("/debug/themes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"themes": themes.Categories()})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// settleRanked records placements for a finished ranked game.
func (s *Server) settleRanked(sess *game.Session) {
	if !sess.IsRanked {
		return
	}
	placements := ranked.Placements(sess)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ladder.RecordMatch(ctx, sess.Code, placements); err != nil {
		log.Error().Err(err).Str("code", sess.Code).Msg("record ranked match")
	}
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------------------------- error mapping ---------------------------------

// writeGameError translates engine errors into HTTP statuses with a
// stable JSON error code.
func writeGameError(w http.ResponseWriter, err error) {
	code, status := "internal_error", http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrNotFound):
		code, status = "game_not_found", http.StatusNotFound
	case errors.Is(err, game.ErrPlayerNotFound):
		code, status = "player_not_found", http.StatusNotFound
	case errors.Is(err, game.ErrUnauthorized):
		code, status = "unauthorized", http.StatusUnauthorized
	case errors.Is(err, game.ErrNotHost):
		code, status = "not_host", http.StatusForbidden
	case errors.Is(err, game.ErrInvalidTransition):
		code, status = "invalid_phase", http.StatusConflict
	case errors.Is(err, game.ErrConflict):
		code, status = "conflict", http.StatusConflict
	case errors.Is(err, game.ErrIllegalAction):
		code, status = "illegal_action", http.StatusConflict
	case errors.Is(err, game.ErrSessionFull):
		code, status = "game_full", http.StatusBadRequest
	case errors.Is(err, game.ErrNotEnoughPlayers):
		code, status = "not_enough_players", http.StatusBadRequest
	case errors.Is(err, game.ErrInvalidName):
		code, status = "invalid_name", http.StatusBadRequest
	case errors.Is(err, game.ErrNameTaken):
		code, status = "name_taken", http.StatusBadRequest
	case errors.Is(err, game.ErrAlreadyVoted):
		code, status = "already_voted", http.StatusBadRequest
	case errors.Is(err, game.ErrUnknownTheme):
		code, status = "unknown_theme", http.StatusBadRequest
	case errors.Is(err, game.ErrInvalidWord):
		code, status = "invalid_word", http.StatusBadRequest
	case errors.Is(err, game.ErrWordNotInPool):
		code, status = "word_not_in_pool", http.StatusBadRequest
	case errors.Is(err, game.ErrWordTaken):
		code, status = "word_taken", http.StatusBadRequest
	case errors.Is(err, game.ErrNoChangeCredit):
		code, status = "no_change_credit", http.StatusBadRequest
	case errors.Is(err, themes.ErrInsufficientVocabulary):
		code, status = "insufficient_vocabulary", http.StatusConflict
	case errors.Is(err, similarity.ErrProviderUnavailable), errors.Is(err, similarity.ErrProvider):
		code, status = "similarity_unavailable", http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("unhandled game error")
	}
	http.Error(w, `{"error":"`+code+`"}`, status)
}
