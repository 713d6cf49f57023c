// internal/themes/themes.go
//
// Theme registry for the session engine.
//
// Responsibilities:
//   - Load themes (name → word list) from an environment-provided JSON file
//     or fall back to the embedded defaults.
//   - Supply lookups: Categories, Words, IsTheme.
//   - Pick random theme options for the voting phase.
//
// Registry format:
//
//	{"themes": [{"name": "animals", "words": ["aardvark", ...]}, ...]}
//
// Environment variables:
//   THEMES_FILE=/path/to/themes.json
//
// Constraints:
//   • Words are normalized to lowercase; duplicates within a theme dropped.
//   • Initialization runs once (sync.Once).

package themes

import (
	_ "embed"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"strings"
	"sync"
)

//go:embed default_themes.json
var embeddedRegistry []byte

type registry struct {
	Themes []struct {
		Name  string   `json:"name"`
		Words []string `json:"words"`
	} `json:"themes"`
}

var (
	initOnce   sync.Once
	themes     map[string][]string // name → lowercase word list
	categories []string            // names in registry order
	initialErr error
)

// Init loads the theme registry exactly once.
// Returns an error if no usable theme is found.
func Init() error {
	initOnce.Do(func() {
		data := embeddedRegistry
		if path := os.Getenv("THEMES_FILE"); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				initialErr = err
				return
			}
			data = b
		}

		var reg registry
		if err := json.Unmarshal(data, &reg); err != nil {
			initialErr = err
			return
		}

		themes = make(map[string][]string, len(reg.Themes))
		categories = categories[:0]
		for _, t := range reg.Themes {
			words := normalizeWords(t.Words)
			if t.Name == "" || len(words) == 0 {
				continue
			}
			if _, dup := themes[t.Name]; dup {
				continue
			}
			themes[t.Name] = words
			categories = append(categories, t.Name)
		}

		if len(themes) == 0 {
			initialErr = errors.New("themes: registry is empty")
		}
	})
	return initialErr
}

// normalizeWords lowercases, trims, and de-duplicates a word list,
// preserving first-seen order.
func normalizeWords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Categories returns the available theme names in registry order.
func Categories() []string {
	return append([]string(nil), categories...)
}

// Words returns a copy of the word list for a theme, or nil if unknown.
func Words(name string) []string {
	w, ok := themes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), w...)
}

// IsTheme reports whether name is a registered theme.
func IsTheme(name string) bool {
	_, ok := themes[name]
	return ok
}

// RandomOptions picks up to n distinct theme names for a vote.
func RandomOptions(n int) []string {
	if n > len(categories) {
		n = len(categories)
	}
	perm := rand.Perm(len(categories))
	out := make([]string, 0, n)
	for _, i := range perm[:n] {
		out = append(out, categories[i])
	}
	return out
}
