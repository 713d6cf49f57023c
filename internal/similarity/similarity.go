// internal/similarity/similarity.go
//
// Similarity scoring for guesses. The session engine only consumes the
// Gateway interface; how a score is produced (embeddings, exact match)
// is a per-deployment choice made in main.

package similarity

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrProvider is a transient scoring failure. The action that needed
	// the score is aborted with no state change; the caller may retry.
	ErrProvider = errors.New("similarity: provider error")

	// ErrProviderUnavailable means the provider kept failing after
	// retries. Not retryable without operator intervention.
	ErrProviderUnavailable = errors.New("similarity: provider unavailable")
)

// Gateway scores a guess against a secret word, returning a value in
// [0, 1]. Implementations may block on network I/O and must honor ctx.
type Gateway interface {
	Score(ctx context.Context, guess, secret string) (float64, error)
}

// Normalize lowercases, trims, and strips diacritics from a word so that
// "Café" and "cafe" compare equal.
func Normalize(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, word)
	if err != nil {
		return word
	}
	return out
}

// ExactMatcher is the exact-match game variant: a guess scores 1 against
// a secret word only when the normalized forms are equal.
type ExactMatcher struct{}

func (ExactMatcher) Score(ctx context.Context, guess, secret string) (float64, error) {
	if Normalize(guess) == Normalize(secret) {
		return 1, nil
	}
	return 0, nil
}
