// internal/engine/machine.go
//
// The session state machine. Every client action is processed the same
// way: load the current snapshot from the store, authorize the caller,
// apply the transition to the in-memory copy, and write it back
// conditionally on the version being unchanged. A failed action never
// commits partial state; a conflicting concurrent write is retried a
// bounded number of times before surfacing game.ErrConflict.
//
// Lifecycle:
//
//	lobby → theme_voting → word_selection → playing → finished
//
// The host drives phase changes (Start, Begin); everything else is a
// per-player action gated on phase, liveness, and turn order.

package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/wordclash/server/internal/game"
	"github.com/wordclash/server/internal/similarity"
	"github.com/wordclash/server/internal/store"
	"github.com/wordclash/server/internal/themes"
)

// Config holds the engine's tunables.
type Config struct {
	MinPlayers      int     // inclusive lower bound to start a game
	MaxPlayers      int     // inclusive upper bound to join
	PoolSize        int     // words offered to each player at selection
	ThemeOptions    int     // themes offered for voting
	ChangeOptions   int     // replacement words offered on a change credit
	Threshold       float64 // similarity at or above which a player is eliminated
	ConflictRetries int     // internal retries on optimistic-write conflicts
}

// DefaultConfig mirrors the production tuning.
func DefaultConfig() Config {
	return Config{
		MinPlayers:      2,
		MaxPlayers:      6,
		PoolSize:        18,
		ThemeOptions:    3,
		ChangeOptions:   16,
		Threshold:       0.95,
		ConflictRetries: 3,
	}
}

var (
	nameRe = regexp.MustCompile(`^[a-zA-Z0-9_ ]{1,20}$`)
	wordRe = regexp.MustCompile(`^[a-zA-Z]{2,30}$`)
)

// Machine orchestrates session state transitions.
type Machine struct {
	store    store.Store
	gw       similarity.Gateway
	cfg      Config
	onFinish func(*game.Session)
}

// NewMachine constructs a Machine over a snapshot store and a similarity
// gateway.
func NewMachine(st store.Store, gw similarity.Gateway, cfg Config) *Machine {
	return &Machine{store: st, gw: gw, cfg: cfg}
}

// SetFinishHook registers fn to run once per session, right after the
// transition to finished commits. The hook receives the committed
// snapshot and must not mutate it.
func (m *Machine) SetFinishHook(fn func(*game.Session)) { m.onFinish = fn }

// update runs apply against the freshest snapshot and writes the result
// back conditionally, retrying on version conflicts. apply must be a pure
// function of the snapshot: it is re-invoked from scratch on every retry.
func (m *Machine) update(ctx context.Context, code string, apply func(s *game.Session) error) (*game.Session, uint64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var lastErr error
	for attempt := 0; attempt <= m.cfg.ConflictRetries; attempt++ {
		s, ver, err := m.store.Get(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, 0, game.ErrNotFound
			}
			return nil, 0, err
		}
		before := s.Status
		if err := apply(s); err != nil {
			return nil, 0, err
		}
		s.UpdatedAt = time.Now().UTC()
		newVer, err := m.store.Put(ctx, code, s, ver)
		if err != nil {
			if errors.Is(err, store.ErrVersionConflict) || errors.Is(err, store.ErrNotFound) {
				lastErr = err
				continue
			}
			return nil, 0, err
		}
		if m.onFinish != nil && before != game.StatusFinished && s.Status == game.StatusFinished {
			m.onFinish(s)
		}
		return s, newVer, nil
	}
	return nil, 0, fmt.Errorf("%w: %v", game.ErrConflict, lastErr)
}

// CreateOptions are the mode flags fixed at session creation.
type CreateOptions struct {
	Visibility     string
	IsRanked       bool
	IsSingleplayer bool
}

// Create allocates a fresh session in the lobby phase and persists it
// under a new unique code.
func (m *Machine) Create(ctx context.Context, opts CreateOptions) (*game.Session, error) {
	visibility := opts.Visibility
	if visibility != "public" {
		visibility = "private"
	}
	for attempt := 0; attempt < 5; attempt++ {
		now := time.Now().UTC()
		s := &game.Session{
			Code:           newGameCode(),
			Status:         game.StatusLobby,
			Visibility:     visibility,
			IsRanked:       opts.IsRanked,
			IsSingleplayer: opts.IsSingleplayer,
			Players:        []*game.Player{},
			History:        []game.HistoryEntry{},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := m.store.Put(ctx, s.Code, s, 0); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				continue // code collision, roll again
			}
			return nil, err
		}
		log.Info().Str("code", s.Code).Bool("ranked", s.IsRanked).Msg("session created")
		return s, nil
	}
	return nil, game.ErrConflict
}

// Join adds a player to a lobby and returns the new player ID and its
// session token. userID may be empty for guest players.
func (m *Machine) Join(ctx context.Context, code, name, userID string) (playerID, token string, err error) {
	name = strings.TrimSpace(name)
	_, _, err = m.update(ctx, code, func(s *game.Session) error {
		if s.Status != game.StatusLobby {
			return game.ErrInvalidTransition
		}
		if len(s.Players) >= m.cfg.MaxPlayers {
			return game.ErrSessionFull
		}
		if s.IsRanked && userID == "" {
			return game.ErrUnauthorized
		}
		if !nameRe.MatchString(name) {
			return game.ErrInvalidName
		}
		taken := lo.SomeBy(s.Players, func(p *game.Player) bool {
			return strings.EqualFold(p.Name, name)
		})
		if taken {
			return game.ErrNameTaken
		}

		p := &game.Player{
			ID:           newPlayerID(),
			Name:         name,
			UserID:       userID,
			IsAlive:      true,
			SessionToken: newSessionToken(),
			JoinedAt:     time.Now().UTC(),
		}
		s.Players = append(s.Players, p)
		if len(s.Players) == 1 {
			s.HostID = p.ID
		}
		playerID, token = p.ID, p.SessionToken
		return nil
	})
	return playerID, token, err
}

// Start moves the lobby into theme voting. Host only.
func (m *Machine) Start(ctx context.Context, code, playerID, token string) error {
	_, _, err := m.update(ctx, code, func(s *game.Session) error {
		if _, err := authorize(s, playerID, token); err != nil {
			return err
		}
		if s.HostID != playerID {
			return game.ErrNotHost
		}
		if s.Status != game.StatusLobby {
			return game.ErrInvalidTransition
		}
		min := m.cfg.MinPlayers
		if s.IsSingleplayer {
			min = 1
		}
		if len(s.Players) < min {
			return game.ErrNotEnoughPlayers
		}
		s.Status = game.StatusThemeVoting
		s.ThemeOptions = themes.RandomOptions(m.cfg.ThemeOptions)
		s.ThemeVotes = make(map[string]string)
		s.VoteOrder = nil
		return nil
	})
	return err
}

// Vote records a player's theme vote. Once every player has voted the
// theme is finalized and word pools are dealt.
func (m *Machine) Vote(ctx context.Context, code, playerID, token, theme string) error {
	_, _, err := m.update(ctx, code, func(s *game.Session) error {
		if _, err := authorize(s, playerID, token); err != nil {
			return err
		}
		if s.Status != game.StatusThemeVoting {
			return game.ErrInvalidTransition
		}
		if !lo.Contains(s.ThemeOptions, theme) {
			return game.ErrUnknownTheme
		}
		if _, voted := s.ThemeVotes[playerID]; voted {
			return game.ErrAlreadyVoted
		}
		s.ThemeVotes[playerID] = theme
		s.VoteOrder = append(s.VoteOrder, playerID)

		if len(s.ThemeVotes) == len(s.Players) {
			return m.finalizeTheme(s)
		}
		return nil
	})
	return err
}

// finalizeTheme resolves the vote, deals disjoint pools, and moves the
// session into word selection.
func (m *Machine) finalizeTheme(s *game.Session) error {
	// Replay votes in cast order; ties go to the theme that reached the
	// winning count first.
	cast := lo.Map(s.VoteOrder, func(pid string, _ int) string { return s.ThemeVotes[pid] })
	winner := themes.ResolveVotes(cast)
	if winner == "" && len(s.ThemeOptions) > 0 {
		winner = s.ThemeOptions[0]
	}
	words := themes.Words(winner)
	if words == nil {
		return game.ErrUnknownTheme
	}

	pools, err := themes.AllocatePools(words, len(s.Players), m.cfg.PoolSize)
	if err != nil {
		return err
	}
	for i, p := range s.Players {
		p.WordPool = pools[i]
	}
	s.Theme = &game.Theme{Name: winner, Words: words}
	s.Status = game.StatusWordSelection
	log.Info().Str("code", s.Code).Str("theme", winner).Msg("theme selected")
	return nil
}

// SetWord sets a player's secret word from their pool and marks them
// ready. Play begins automatically once every player has a word.
func (m *Machine) SetWord(ctx context.Context, code, playerID, token, word string) error {
	_, _, err := m.update(ctx, code, func(s *game.Session) error {
		p, err := authorize(s, playerID, token)
		if err != nil {
			return err
		}
		if s.Status != game.StatusWordSelection {
			return game.ErrInvalidTransition
		}
		if !wordRe.MatchString(strings.TrimSpace(word)) {
			return game.ErrInvalidWord
		}
		w := similarity.Normalize(word)
		if !lo.Contains(p.WordPool, w) {
			return game.ErrWordNotInPool
		}
		p.SecretWord = w
		p.IsReady = true

		if s.AllWordsSet() {
			beginPlay(s)
		}
		return nil
	})
	return err
}

// Begin is the host's phase-force action: during theme voting it closes
// the vote with the ballots cast so far; during word selection it deals
// a default word to anyone still undecided and starts play.
func (m *Machine) Begin(ctx context.Context, code, playerID, token string) error {
	_, _, err := m.update(ctx, code, func(s *game.Session) error {
		if _, err := authorize(s, playerID, token); err != nil {
			return err
		}
		if s.HostID != playerID {
			return game.ErrNotHost
		}
		switch s.Status {
		case game.StatusThemeVoting:
			return m.finalizeTheme(s)
		case game.StatusWordSelection:
			for _, p := range s.Players {
				if !p.HasWord() && len(p.WordPool) > 0 {
					p.SecretWord = p.WordPool[0]
					p.IsReady = true
				}
			}
			if !s.AllWordsSet() {
				return game.ErrInvalidTransition
			}
			beginPlay(s)
			return nil
		default:
			return game.ErrInvalidTransition
		}
	})
	return err
}

// beginPlay flips the session into the playing phase with the turn
// pointer on the first joined living player.
func beginPlay(s *game.Session) {
	s.Status = game.StatusPlaying
	s.CurrentTurn = 0
	if len(s.Players) > 0 && !s.Players[0].IsAlive {
		s.AdvanceTurn()
	}
	log.Info().Str("code", s.Code).Int("players", len(s.Players)).Msg("game started")
}

// ChangeWord spends a word-change credit on a new secret word drawn from
// the theme. The new word may not already belong to a living player and
// may not have been guessed.
func (m *Machine) ChangeWord(ctx context.Context, code, playerID, token, newWord string) error {
	_, _, err := m.update(ctx, code, func(s *game.Session) error {
		p, err := authorize(s, playerID, token)
		if err != nil {
			return err
		}
		if s.Status != game.StatusPlaying {
			return game.ErrInvalidTransition
		}
		if !p.IsAlive {
			return game.ErrIllegalAction
		}
		if !p.CanChangeWord {
			return game.ErrNoChangeCredit
		}
		if !wordRe.MatchString(strings.TrimSpace(newWord)) {
			return game.ErrInvalidWord
		}
		w := similarity.Normalize(newWord)
		if s.Theme != nil && !lo.Contains(s.Theme.Words, w) {
			return game.ErrInvalidWord
		}
		for _, other := range s.Players {
			if other.ID != p.ID && other.IsAlive && other.SecretWord == w {
				return game.ErrWordTaken
			}
		}

		p.SecretWord = w
		p.CanChangeWord = false
		p.ChangeOptions = nil
		// The event is public; the new word is not.
		s.History = append(s.History, game.HistoryEntry{
			Type:        game.EntryWordChange,
			GuesserID:   p.ID,
			GuesserName: p.Name,
		})
		return nil
	})
	return err
}

// SkipWordChange discards an unspent word-change credit.
func (m *Machine) SkipWordChange(ctx context.Context, code, playerID, token string) error {
	_, _, err := m.update(ctx, code, func(s *game.Session) error {
		p, err := authorize(s, playerID, token)
		if err != nil {
			return err
		}
		if s.Status != game.StatusPlaying {
			return game.ErrInvalidTransition
		}
		if !p.CanChangeWord {
			return game.ErrNoChangeCredit
		}
		p.CanChangeWord = false
		p.ChangeOptions = nil
		return nil
	})
	return err
}

// Leave removes a player. Before play it shrinks the roster (the host
// seat migrates to the earliest remaining player); during play it is a
// forfeit: the player is eliminated and the game may end immediately.
func (m *Machine) Leave(ctx context.Context, code, playerID, token string) error {
	s, _, err := m.update(ctx, code, func(s *game.Session) error {
		p, err := authorize(s, playerID, token)
		if err != nil {
			return err
		}
		switch s.Status {
		case game.StatusFinished:
			return nil // nothing left to forfeit
		case game.StatusPlaying:
			return forfeit(s, p)
		default:
			removeFromRoster(s, p)
			// The departure may have satisfied a pending transition.
			if s.Status == game.StatusThemeVoting && len(s.Players) > 0 && len(s.ThemeVotes) == len(s.Players) {
				return m.finalizeTheme(s)
			}
			if s.Status == game.StatusWordSelection && len(s.Players) > 0 && s.AllWordsSet() {
				beginPlay(s)
			}
			return nil
		}
	})
	if err != nil {
		return err
	}
	if len(s.Players) == 0 {
		return m.store.Delete(ctx, s.Code)
	}
	return nil
}

// forfeit eliminates a player mid-game and settles the consequences.
func forfeit(s *game.Session, p *game.Player) error {
	if !p.IsAlive {
		return game.ErrIllegalAction
	}
	// Pointer moves off the leaver before the elimination is applied.
	if cur := s.CurrentPlayer(); cur != nil && cur.ID == p.ID {
		s.AdvanceTurn()
	}
	p.IsAlive = false
	p.CanChangeWord = false
	s.History = append(s.History, game.HistoryEntry{
		Type:         game.EntryElimination,
		GuesserID:    p.ID,
		GuesserName:  p.Name,
		Eliminations: []string{p.ID},
	})
	settleIfOver(s)
	return nil
}

// removeFromRoster drops a pre-game player and repairs host and votes.
func removeFromRoster(s *game.Session, p *game.Player) {
	s.Players = lo.Filter(s.Players, func(q *game.Player, _ int) bool { return q.ID != p.ID })
	delete(s.ThemeVotes, p.ID)
	s.VoteOrder = lo.Filter(s.VoteOrder, func(pid string, _ int) bool { return pid != p.ID })
	if s.HostID == p.ID && len(s.Players) > 0 {
		s.HostID = s.Players[0].ID
	}
}

// settleIfOver finishes the game when at most one player remains alive.
func settleIfOver(s *game.Session) bool {
	alive := s.AlivePlayers()
	if len(alive) > 1 {
		return false
	}
	s.Status = game.StatusFinished
	if len(alive) == 1 {
		s.WinnerID = alive[0].ID
	}
	log.Info().Str("code", s.Code).Str("winner", s.WinnerID).Msg("game finished")
	return true
}

// StateFor returns the redacted session view for a viewer. A viewer ID
// that matches no seat gets the spectator view: everything a member sees
// except the own-word/pool fields. Reading never mutates the snapshot or
// bumps its version.
func (m *Machine) StateFor(ctx context.Context, code, viewerID string) (game.View, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	s, ver, err := m.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return game.View{}, game.ErrNotFound
		}
		return game.View{}, err
	}
	return s.ViewFor(viewerID, ver), nil
}
