// internal/httpserver/routes_game.go
//
// JSON endpoints for the game action surface. Every mutating action
// takes the caller's player ID and per-player session token in the
// request body; the engine does the authorization. Reads are polled
// via GET /games/{code}/state.

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wordclash/server/internal/engine"
)

// actionReq is the common body for player actions; Word/Theme are only
// read by the endpoints that need them.
type actionReq struct {
	PlayerID     string `json:"playerId"`
	SessionToken string `json:"sessionToken"`
	Word         string `json:"word,omitempty"`
	Theme        string `json:"theme,omitempty"`
}

func (s *Server) mountGameRoutes(r chi.Router) {
	r.Post("/", s.handleCreateGame)
	r.Post("/{code}/join", s.handleJoin)
	r.Get("/{code}/state", s.handleState)
	r.Post("/{code}/start", s.handleStart)
	r.Post("/{code}/vote", s.handleVote)
	r.Post("/{code}/word", s.handleSetWord)
	r.Post("/{code}/begin", s.handleBegin)
	r.Post("/{code}/guess", s.handleGuess)
	r.Post("/{code}/change-word", s.handleChangeWord)
	r.Post("/{code}/skip-change", s.handleSkipChange)
	r.Post("/{code}/leave", s.handleLeave)
}

type createGameReq struct {
	Visibility   string `json:"visibility"`
	Ranked       bool   `json:"ranked"`
	Singleplayer bool   `json:"singleplayer"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Ranked && currentUser(r) == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	sess, err := s.machine.Create(r.Context(), engine.CreateOptions{
		Visibility:     req.Visibility,
		IsRanked:       req.Ranked,
		IsSingleplayer: req.Singleplayer,
	})
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"code": sess.Code})
}

type joinReq struct {
	Name string `json:"name"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	userID := ""
	if me := currentUser(r); me != nil {
		userID = me.ID
	}
	playerID, token, err := s.machine.Join(r.Context(), chi.URLParam(r, "code"), req.Name, userID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playerId": playerID, "sessionToken": token})
}

// handleState returns the redacted view for the polling player.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	view, err := s.machine.StateFor(r.Context(), chi.URLParam(r, "code"), r.URL.Query().Get("playerId"))
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r)
	if !ok {
		return
	}
	if err := s.machine.Start(r.Context(), chi.URLParam(r, "code"), req.PlayerID, req.SessionToken); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r)
	if !ok {
		return
	}
	if err := s.machine.Vote(r.Context(), chi.URLParam(r, "code"), req.PlayerID, req.SessionToken, req.Theme); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleSetWord(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r)
	if !ok {
		return
	}
	if err := s.machine.SetWord(r.Context(), chi.URLParam(r, "code"), req.PlayerID, req.SessionToken, req.Word); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r)
	if !ok {
		return
	}
	if err := s.machine.Begin(r.Context(), chi.URLParam(r, "code"), req.PlayerID, req.SessionToken); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r)
	if !ok {
		return
	}
	out, err := s.machine.Guess(r.Context(), chi.URLParam(r, "code"), req.PlayerID, req.SessionToken, req.Word)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChangeWord(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r)
	if !ok {
		return
	}
	if err := s.machine.ChangeWord(r.Context(), chi.URLParam(r, "code"), req.PlayerID, req.SessionToken, req.Word); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleSkipChange(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r)
	if !ok {
		return
	}
	if err := s.machine.SkipWordChange(r.Context(), chi.URLParam(r, "code"), req.PlayerID, req.SessionToken); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r)
	if !ok {
		return
	}
	if err := s.machine.Leave(r.Context(), chi.URLParam(r, "code"), req.PlayerID, req.SessionToken); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

// ------------------------------ helpers ------------------------------------

var okBody = map[string]bool{"ok": true}

func decodeAction(w http.ResponseWriter, r *http.Request) (actionReq, bool) {
	var req actionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}
