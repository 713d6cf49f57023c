// internal/themes/pool.go
//
// Word pool allocation for the word-selection phase.
// Each player receives a pool of candidate words; pools for the same
// session never overlap, so two players can never be offered the same
// secret word.

package themes

import (
	"errors"
	"math/rand"
)

// ErrInsufficientVocabulary means the theme cannot supply disjoint pools
// of the requested size for the player count.
var ErrInsufficientVocabulary = errors.New("themes: not enough words for disjoint pools")

// AllocatePools splits a theme's word list into players disjoint pools of
// poolSize words each. The split is a random shuffle followed by slicing,
// so no seat is systematically favored.
func AllocatePools(words []string, players, poolSize int) ([][]string, error) {
	if players <= 0 || poolSize <= 0 {
		return nil, ErrInsufficientVocabulary
	}
	if players*poolSize > len(words) {
		return nil, ErrInsufficientVocabulary
	}

	shuffled := append([]string(nil), words...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	pools := make([][]string, players)
	for i := 0; i < players; i++ {
		pools[i] = shuffled[i*poolSize : (i+1)*poolSize]
	}
	return pools, nil
}

// ChangeOptions picks up to n replacement words for a player spending a
// word-change credit. The player's current word and every word that has
// already been guessed are excluded, so the new word starts unknown.
func ChangeOptions(words []string, current string, guessed map[string]struct{}, n int) []string {
	available := make([]string, 0, len(words))
	for _, w := range words {
		if w == current {
			continue
		}
		if _, ok := guessed[w]; ok {
			continue
		}
		available = append(available, w)
	}
	if len(available) <= n {
		return available
	}
	rand.Shuffle(len(available), func(i, j int) {
		available[i], available[j] = available[j], available[i]
	})
	return available[:n]
}
