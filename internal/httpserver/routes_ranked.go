// internal/httpserver/routes_ranked.go

package httpserver

import (
	"net/http"
	"strconv"
)

// mountRankedRoutes registers the ladder endpoints: the public
// leaderboard and the caller's own rating.
func (s *Server) mountRankedRoutes() {
	s.r.Get("/ranked/leaderboard", s.handleLeaderboard)
	s.r.With(s.requireAuth()).Get("/ranked/me", s.handleMyRating)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	rows, err := s.ladder.Leaderboard(r.Context(), limit)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}

func (s *Server) handleMyRating(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	if me == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	rating, err := s.ladder.GetRating(r.Context(), me.ID)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}
