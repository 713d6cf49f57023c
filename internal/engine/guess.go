// internal/engine/guess.go
//
// Guess evaluation: the core transition of the game.
//
// A guess is scored against every living player's secret word, including
// the guesser's own: the score on the own word is exposed in the results
// on purpose, as a cross-referencing mechanic. Players whose
// score crosses the threshold are eliminated simultaneously; the guesser
// can never eliminate themself. Eliminating at least one opponent grants
// the guesser a single word-change credit (the credit does not stack).
//
// Scoring happens against a snapshot and nothing is persisted until the
// whole entry is computed, so a provider failure aborts the guess with no
// state change and without consuming the turn.

package engine

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wordclash/server/internal/game"
	"github.com/wordclash/server/internal/similarity"
	"github.com/wordclash/server/internal/themes"
)

// GuessOutcome is what the guesser learns from one guess.
type GuessOutcome struct {
	Similarities map[string]float64 `json:"similarities"`
	Eliminations []string           `json:"eliminations"`
	GameOver     bool               `json:"gameOver"`
	WinnerID     string             `json:"winnerId,omitempty"`
}

// Guess processes one guess by the current player.
func (m *Machine) Guess(ctx context.Context, code, playerID, token, word string) (*GuessOutcome, error) {
	var out *GuessOutcome
	_, _, err := m.update(ctx, code, func(s *game.Session) error {
		p, err := authorize(s, playerID, token)
		if err != nil {
			return err
		}
		if s.Status != game.StatusPlaying {
			return game.ErrIllegalAction
		}
		if !p.IsAlive {
			return game.ErrIllegalAction
		}
		if cur := s.CurrentPlayer(); cur == nil || cur.ID != playerID {
			return game.ErrIllegalAction
		}
		if !wordRe.MatchString(strings.TrimSpace(word)) {
			return game.ErrInvalidWord
		}
		guess := similarity.Normalize(word)

		// Score against every living player, the guesser included.
		alive := s.AlivePlayers()
		sims := make(map[string]float64, len(alive))
		for _, q := range alive {
			score, err := m.gw.Score(ctx, guess, q.SecretWord)
			if err != nil {
				return err // no mutation committed; turn not consumed
			}
			sims[q.ID] = round2(score)
		}

		// Mark first, then apply in one step: eliminations within a
		// single guess are simultaneous, not cascading.
		var eliminated []string
		for _, q := range alive {
			if q.ID != p.ID && sims[q.ID] >= m.cfg.Threshold {
				eliminated = append(eliminated, q.ID)
			}
		}
		for _, id := range eliminated {
			q := s.PlayerByID(id)
			q.IsAlive = false
			q.CanChangeWord = false
		}

		if len(eliminated) > 0 {
			// One credit total, however many fell to this guess.
			p.CanChangeWord = true
			if s.Theme != nil {
				p.ChangeOptions = themes.ChangeOptions(s.Theme.Words, p.SecretWord, guessedWords(s, guess), m.cfg.ChangeOptions)
			}
		}

		s.History = append(s.History, game.HistoryEntry{
			Type:         game.EntryGuess,
			GuesserID:    p.ID,
			GuesserName:  p.Name,
			Word:         guess,
			Similarities: sims,
			Eliminations: eliminated,
		})

		if !settleIfOver(s) {
			s.AdvanceTurn()
		}

		out = &GuessOutcome{
			Similarities: sims,
			Eliminations: eliminated,
			GameOver:     s.Status == game.StatusFinished,
			WinnerID:     s.WinnerID,
		}
		log.Debug().
			Str("code", s.Code).
			Str("guesser", p.ID).
			Int("eliminated", len(eliminated)).
			Msg("guess applied")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// guessedWords collects every word guessed so far (plus the one being
// applied), for excluding from word-change options.
func guessedWords(s *game.Session, current string) map[string]struct{} {
	seen := map[string]struct{}{current: {}}
	for _, h := range s.History {
		if h.Type == game.EntryGuess && h.Word != "" {
			seen[h.Word] = struct{}{}
		}
	}
	return seen
}

// round2 rounds to two decimals, matching what clients display.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
