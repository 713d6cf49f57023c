// internal/game/view.go
//
// Viewer-specific projections of a session. Everything a client sees goes
// through ViewFor, which hides other players' secret words, pools, and
// tokens. A secret word becomes public only once its owner is eliminated
// or the game is finished.

package game

import "github.com/samber/lo"

// PlayerView is the redacted form of a Player.
type PlayerView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	IsAlive       bool     `json:"isAlive"`
	IsReady       bool     `json:"isReady"`
	HasWord       bool     `json:"hasWord"`
	SecretWord    string   `json:"secretWord,omitempty"`
	CanChangeWord bool     `json:"canChangeWord,omitempty"`
	WordPool      []string `json:"wordPool,omitempty"`
	ChangeOptions []string `json:"changeOptions,omitempty"`
}

// View is the externally visible session state for one viewer.
type View struct {
	Code            string         `json:"code"`
	Status          Status         `json:"status"`
	Players         []PlayerView   `json:"players"`
	HostID          string         `json:"hostId"`
	IsHost          bool           `json:"isHost"`
	Theme           string         `json:"theme,omitempty"`
	ThemeOptions    []string       `json:"themeOptions,omitempty"`
	ThemeVotes      map[string]int `json:"themeVotes,omitempty"` // theme → vote count
	CurrentTurn     int            `json:"currentTurn"`
	CurrentPlayerID string         `json:"currentPlayerId,omitempty"`
	AllWordsSet     bool           `json:"allWordsSet"`
	History         []HistoryEntry `json:"history"`
	WinnerID        string         `json:"winnerId,omitempty"`
	IsRanked        bool           `json:"isRanked"`
	IsSingleplayer  bool           `json:"isSingleplayer"`
	Version         uint64         `json:"version"`
}

// ViewFor builds the session view for viewerID. version is the store
// version of the snapshot, echoed so clients can cheaply detect change
// between polls.
func (s *Session) ViewFor(viewerID string, version uint64) View {
	finished := s.Status == StatusFinished

	players := lo.Map(s.Players, func(p *Player, _ int) PlayerView {
		pv := PlayerView{
			ID:      p.ID,
			Name:    p.Name,
			IsAlive: p.IsAlive,
			IsReady: p.IsReady,
			HasWord: p.HasWord(),
		}
		if p.ID == viewerID {
			pv.SecretWord = p.SecretWord
			pv.CanChangeWord = p.CanChangeWord
			pv.WordPool = append([]string(nil), p.WordPool...)
			pv.ChangeOptions = append([]string(nil), p.ChangeOptions...)
		}
		// Eliminated players' words are public knowledge.
		if !p.IsAlive || finished {
			pv.SecretWord = p.SecretWord
		}
		return pv
	})

	var votes map[string]int
	if len(s.ThemeVotes) > 0 {
		votes = make(map[string]int, len(s.ThemeVotes))
		for _, theme := range s.ThemeVotes {
			votes[theme]++
		}
	}

	v := View{
		Code:           s.Code,
		Status:         s.Status,
		Players:        players,
		HostID:         s.HostID,
		IsHost:         s.HostID == viewerID,
		ThemeOptions:   append([]string(nil), s.ThemeOptions...),
		ThemeVotes:     votes,
		CurrentTurn:    s.CurrentTurn,
		AllWordsSet:    s.AllWordsSet(),
		History:        append([]HistoryEntry(nil), s.History...),
		WinnerID:       s.WinnerID,
		IsRanked:       s.IsRanked,
		IsSingleplayer: s.IsSingleplayer,
		Version:        version,
	}
	if s.Theme != nil {
		v.Theme = s.Theme.Name
	}
	if cur := s.CurrentPlayer(); cur != nil {
		v.CurrentPlayerID = cur.ID
	}
	return v
}
