// internal/game/types.go
//
// Core type definitions for the session engine.
// Defines:
//   - Status: lifecycle phase of a session.
//   - Session: the aggregate holding roster, turn pointer, and history.
//   - Player: one seat, including its secret word and session token.
//   - HistoryEntry: append-only record of guesses, eliminations, word changes.

package game

import (
	"time"

	"github.com/samber/lo"
)

// Status represents the lifecycle phase of a session.
// Transitions only move forward:
//
//	lobby → theme_voting → word_selection → playing → finished
type Status string

const (
	StatusLobby         Status = "lobby"
	StatusThemeVoting   Status = "theme_voting"
	StatusWordSelection Status = "word_selection"
	StatusPlaying       Status = "playing"
	StatusFinished      Status = "finished"
)

// EntryType tags a HistoryEntry.
type EntryType string

const (
	EntryGuess       EntryType = "guess"
	EntryElimination EntryType = "elimination"
	EntryWordChange  EntryType = "word_change"
)

// Theme is a named vocabulary used to build word pools.
// Immutable once attached to a session.
type Theme struct {
	Name  string   `json:"name"`
	Words []string `json:"words"`
}

// Player is one participant in a session.
type Player struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	UserID        string    `json:"userId,omitempty"` // set when joined with an account
	SecretWord    string    `json:"secretWord"`
	WordPool      []string  `json:"wordPool"`
	ChangeOptions []string  `json:"changeOptions"`
	IsAlive       bool      `json:"isAlive"`
	IsReady       bool      `json:"isReady"`
	CanChangeWord bool      `json:"canChangeWord"`
	SessionToken  string    `json:"sessionToken"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// HasWord reports whether the player has chosen a secret word.
func (p *Player) HasWord() bool { return p.SecretWord != "" }

// HistoryEntry records one event in a session. Entries are append-only and
// never reordered. Eliminations always refer to players that were alive
// immediately before the entry was applied.
type HistoryEntry struct {
	Type         EntryType          `json:"type"`
	GuesserID    string             `json:"guesserId"`
	GuesserName  string             `json:"guesserName"`
	Word         string             `json:"word,omitempty"`
	Similarities map[string]float64 `json:"similarities,omitempty"`
	Eliminations []string           `json:"eliminations,omitempty"`
}

// Session is the aggregate root for one game, identified by a short
// shareable code. It is always read-modify-written as a whole; the engine
// never mutates a stored snapshot in place.
type Session struct {
	Code           string            `json:"code"`
	Status         Status            `json:"status"`
	Visibility     string            `json:"visibility"` // "public" | "private"
	IsRanked       bool              `json:"isRanked"`
	IsSingleplayer bool              `json:"isSingleplayer"`
	HostID         string            `json:"hostId"`
	Players        []*Player         `json:"players"` // insertion order = turn order
	CurrentTurn    int               `json:"currentTurn"`
	Theme          *Theme            `json:"theme,omitempty"`
	ThemeOptions   []string          `json:"themeOptions,omitempty"`
	ThemeVotes     map[string]string `json:"themeVotes,omitempty"` // playerID → theme
	VoteOrder      []string          `json:"voteOrder,omitempty"`  // player IDs in cast order
	History        []HistoryEntry    `json:"history"`
	WinnerID       string            `json:"winnerId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// PlayerByID returns the player with the given ID, or nil.
func (s *Session) PlayerByID(id string) *Player {
	p, _ := lo.Find(s.Players, func(p *Player) bool { return p.ID == id })
	return p
}

// AlivePlayers returns the living players in turn order.
func (s *Session) AlivePlayers() []*Player {
	return lo.Filter(s.Players, func(p *Player, _ int) bool { return p.IsAlive })
}

// CurrentPlayer returns the player whose turn it is, or nil outside of play.
func (s *Session) CurrentPlayer() *Player {
	if s.Status != StatusPlaying || len(s.Players) == 0 {
		return nil
	}
	if s.CurrentTurn < 0 || s.CurrentTurn >= len(s.Players) {
		return nil
	}
	return s.Players[s.CurrentTurn]
}

// AllWordsSet reports whether every player has chosen a secret word.
func (s *Session) AllWordsSet() bool {
	return lo.EveryBy(s.Players, func(p *Player) bool { return p.HasWord() })
}

// AdvanceTurn moves the turn pointer to the next living player after the
// current one, wrapping in join order. Callers must ensure at least one
// player is alive.
func (s *Session) AdvanceTurn() {
	n := len(s.Players)
	for i := 1; i <= n; i++ {
		next := (s.CurrentTurn + i) % n
		if s.Players[next].IsAlive {
			s.CurrentTurn = next
			return
		}
	}
}

// Clone returns a deep copy of the session. Stores hand out clones so a
// failed action can never leak partial mutations into a shared snapshot.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		pc := *p
		pc.WordPool = append([]string(nil), p.WordPool...)
		pc.ChangeOptions = append([]string(nil), p.ChangeOptions...)
		cp.Players[i] = &pc
	}
	if s.Theme != nil {
		t := *s.Theme
		t.Words = append([]string(nil), s.Theme.Words...)
		cp.Theme = &t
	}
	cp.ThemeOptions = append([]string(nil), s.ThemeOptions...)
	cp.VoteOrder = append([]string(nil), s.VoteOrder...)
	if s.ThemeVotes != nil {
		cp.ThemeVotes = make(map[string]string, len(s.ThemeVotes))
		for k, v := range s.ThemeVotes {
			cp.ThemeVotes[k] = v
		}
	}
	cp.History = make([]HistoryEntry, len(s.History))
	for i, h := range s.History {
		hc := h
		hc.Eliminations = append([]string(nil), h.Eliminations...)
		if h.Similarities != nil {
			hc.Similarities = make(map[string]float64, len(h.Similarities))
			for k, v := range h.Similarities {
				hc.Similarities[k] = v
			}
		}
		cp.History[i] = hc
	}
	return &cp
}
