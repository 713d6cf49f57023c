// internal/ranked/ranked.go
//
// ELO-style rating math for ranked games.
//
// Multiplayer games are scored as round-robins of pairwise comparisons:
// beating a player (finishing with a better placement) counts as a win
// against them, and each pairwise result moves the rating by K times the
// surprise, averaged over opponents. New accounts move fast (placement
// then provisional K-factors) and settle toward a floor as games pile up.

package ranked

import (
	"math"
	"sort"

	"github.com/wordclash/server/internal/game"
)

// Config holds the rating tunables.
type Config struct {
	InitialMMR         int
	KFactor            int
	PlacementGames     int // games with the placement K-factor
	PlacementKFactor   int
	ProvisionalGames   int // games until the decay curve applies
	ProvisionalKFactor int
	KFactorMin         int
	KFactorDecayRate   float64
	ParticipationBonus int // flat MMR for finishing a ranked game
}

// DefaultConfig mirrors the production ladder tuning.
func DefaultConfig() Config {
	return Config{
		InitialMMR:         1000,
		KFactor:            32,
		PlacementGames:     5,
		PlacementKFactor:   64,
		ProvisionalGames:   15,
		ProvisionalKFactor: 48,
		KFactorMin:         20,
		KFactorDecayRate:   0.3,
		ParticipationBonus: 2,
	}
}

// Tier names an MMR bracket for display.
func (c Config) Tier(mmr int) string {
	switch {
	case mmr >= 2000:
		return "master"
	case mmr >= 1700:
		return "diamond"
	case mmr >= 1400:
		return "platinum"
	case mmr >= 1200:
		return "gold"
	case mmr >= 1000:
		return "silver"
	default:
		return "bronze"
	}
}

// KFor returns the K-factor for a player with the given finished-game
// count: placement games move fastest, provisional games fast, then the
// K decays toward the floor.
func (c Config) KFor(games int) int {
	switch {
	case games < c.PlacementGames:
		return c.PlacementKFactor
	case games < c.ProvisionalGames:
		return c.ProvisionalKFactor
	}
	decayed := float64(c.KFactor) * math.Pow(1-c.KFactorDecayRate, float64(games-c.ProvisionalGames)/10)
	if decayed < float64(c.KFactorMin) {
		return c.KFactorMin
	}
	return int(decayed)
}

// ExpectedScore is the standard ELO win expectancy of a against b.
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Entrant is one rated player entering a match.
type Entrant struct {
	UserID    string
	MMR       int
	Games     int
	Placement int // 1 = winner
}

// Deltas computes the MMR change for every entrant from the pairwise
// round-robin. The input order does not matter.
func (c Config) Deltas(entrants []Entrant) map[string]int {
	out := make(map[string]int, len(entrants))
	if len(entrants) < 2 {
		for _, e := range entrants {
			out[e.UserID] = 0
		}
		return out
	}
	n := len(entrants)
	for _, e := range entrants {
		var sum float64
		for _, o := range entrants {
			if o.UserID == e.UserID {
				continue
			}
			expected := ExpectedScore(e.MMR, o.MMR)
			actual := 0.5
			if e.Placement < o.Placement {
				actual = 1
			} else if e.Placement > o.Placement {
				actual = 0
			}
			sum += actual - expected
		}
		delta := float64(c.KFor(e.Games)) * sum / float64(n-1)
		out[e.UserID] = int(math.Round(delta)) + c.ParticipationBonus
	}
	return out
}

// Placements derives final placements from a finished session: the winner
// is first, everyone else ranks by how late they were eliminated. Only
// players joined with an account are returned.
func Placements(s *game.Session) map[string]int {
	order := make(map[string]int, len(s.Players)) // playerID → elimination sequence
	seq := 0
	for _, h := range s.History {
		if len(h.Eliminations) == 0 {
			continue
		}
		// Players felled by the same guess tie in placement.
		seq++
		for _, id := range h.Eliminations {
			if _, seen := order[id]; !seen {
				order[id] = seq
			}
		}
	}

	type row struct {
		playerID string
		rank     int // higher = better
	}
	rows := make([]row, 0, len(s.Players))
	for _, p := range s.Players {
		switch {
		case p.ID == s.WinnerID:
			rows = append(rows, row{p.ID, math.MaxInt32})
		case p.IsAlive:
			// Draw with no winner: unbeaten players share the top.
			rows = append(rows, row{p.ID, math.MaxInt32 - 1})
		default:
			rows = append(rows, row{p.ID, order[p.ID]})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].rank > rows[j].rank })

	out := make(map[string]int, len(rows))
	place := 0
	prevRank := math.MinInt32
	for i, r := range rows {
		if r.rank != prevRank {
			place = i + 1
			prevRank = r.rank
		}
		p := s.PlayerByID(r.playerID)
		if p != nil && p.UserID != "" {
			out[p.UserID] = place
		}
	}
	return out
}
