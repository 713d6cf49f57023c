// internal/ranked/store.go
//
// SQLite persistence for ladder ratings and per-match results.
// Schema lives in sql/001_init.sql (ranked_ratings, ranked_results).

package ranked

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
)

// Store reads and writes ladder state.
type Store struct {
	db  *sql.DB
	cfg Config
}

// NewStore wraps a database handle with the given rating config.
func NewStore(db *sql.DB, cfg Config) *Store {
	return &Store{db: db, cfg: cfg}
}

// Rating is one user's ladder standing.
type Rating struct {
	UserID string `json:"userId"`
	MMR    int    `json:"mmr"`
	Games  int    `json:"games"`
	Tier   string `json:"tier"`
}

// GetRating returns the user's standing, or the initial standing for a
// user who has never finished a ranked game.
func (s *Store) GetRating(ctx context.Context, userID string) (Rating, error) {
	r := Rating{UserID: userID, MMR: s.cfg.InitialMMR}
	err := s.db.QueryRowContext(ctx,
		`SELECT mmr, games FROM ranked_ratings WHERE user_id=?`, userID,
	).Scan(&r.MMR, &r.Games)
	if err != nil && err != sql.ErrNoRows {
		return r, err
	}
	r.Tier = s.cfg.Tier(r.MMR)
	return r, nil
}

// RecordMatch applies a finished ranked game: computes deltas for every
// account-linked entrant, updates ratings, and stores result rows, all
// in one transaction.
func (s *Store) RecordMatch(ctx context.Context, code string, placements map[string]int) error {
	if len(placements) < 2 {
		return nil // nothing to rate
	}

	entrants := make([]Entrant, 0, len(placements))
	for userID, place := range placements {
		r, err := s.GetRating(ctx, userID)
		if err != nil {
			return err
		}
		entrants = append(entrants, Entrant{UserID: userID, MMR: r.MMR, Games: r.Games, Placement: place})
	}
	deltas := s.cfg.Deltas(entrants)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range entrants {
		delta := deltas[e.UserID]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ranked_ratings (user_id, mmr, games, updated_at)
			VALUES (?,?,1,?)
			ON CONFLICT(user_id) DO UPDATE SET
				mmr = excluded.mmr,
				games = ranked_ratings.games + 1,
				updated_at = excluded.updated_at`,
			e.UserID, e.MMR+delta, now,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ranked_results (code, user_id, placement, mmr_delta, created_at)
			VALUES (?,?,?,?,?)`,
			code, e.UserID, e.Placement, delta, now,
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info().Str("code", code).Int("entrants", len(entrants)).Msg("ranked match recorded")
	return nil
}

// LeaderboardRow is one line of the ladder.
type LeaderboardRow struct {
	UserID string `json:"userId"`
	MMR    int    `json:"mmr"`
	Games  int    `json:"games"`
	Tier   string `json:"tier"`
}

// Leaderboard returns the top rated users.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, mmr, games
		FROM ranked_ratings
		ORDER BY mmr DESC, games DESC, user_id ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LeaderboardRow, 0, limit)
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.MMR, &r.Games); err != nil {
			return nil, err
		}
		r.Tier = s.cfg.Tier(r.MMR)
		out = append(out, r)
	}
	return out, rows.Err()
}
