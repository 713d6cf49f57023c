package themes

import (
	"errors"
	"testing"
)

func TestInitLoadsEmbeddedRegistry(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	cats := Categories()
	if len(cats) < 3 {
		t.Fatalf("categories = %v, want at least 3", cats)
	}
	for _, c := range cats {
		if !IsTheme(c) {
			t.Fatalf("IsTheme(%q) = false", c)
		}
		// Each theme must cover a full table of disjoint pools.
		if got := len(Words(c)); got < 108 {
			t.Fatalf("theme %q has %d words", c, got)
		}
	}
	if Words("no-such-theme") != nil {
		t.Fatal("unknown theme returned words")
	}
}

func TestWordsReturnsCopy(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	name := Categories()[0]
	a := Words(name)
	a[0] = "mutated"
	if Words(name)[0] == "mutated" {
		t.Fatal("Words leaked the backing slice")
	}
}

func TestRandomOptions(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	opts := RandomOptions(3)
	if len(opts) != 3 {
		t.Fatalf("got %d options, want 3", len(opts))
	}
	seen := map[string]bool{}
	for _, o := range opts {
		if !IsTheme(o) {
			t.Fatalf("option %q is not a theme", o)
		}
		if seen[o] {
			t.Fatalf("duplicate option %q", o)
		}
		seen[o] = true
	}
	// Asking for more than exist caps at the registry size.
	if got := len(RandomOptions(1000)); got != len(Categories()) {
		t.Fatalf("oversized request returned %d options", got)
	}
}

func TestNormalizeWords(t *testing.T) {
	got := normalizeWords([]string{" Cat ", "dog", "CAT", "", "dog"})
	want := []string{"cat", "dog"}
	if len(got) != len(want) {
		t.Fatalf("normalizeWords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("normalizeWords = %v, want %v", got, want)
		}
	}
}

func TestAllocatePools(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = string(rune('a'+i/26)) + string(rune('a'+i%26))
	}

	pools, err := AllocatePools(words, 3, 10)
	if err != nil {
		t.Fatalf("AllocatePools: %v", err)
	}
	if len(pools) != 3 {
		t.Fatalf("got %d pools, want 3", len(pools))
	}
	seen := map[string]bool{}
	for _, pool := range pools {
		if len(pool) != 10 {
			t.Fatalf("pool size = %d, want 10", len(pool))
		}
		for _, w := range pool {
			if seen[w] {
				t.Fatalf("word %q dealt twice", w)
			}
			seen[w] = true
		}
	}
}

func TestAllocatePoolsInsufficientVocabulary(t *testing.T) {
	words := []string{"ant", "bee", "cat"}
	if _, err := AllocatePools(words, 2, 2); !errors.Is(err, ErrInsufficientVocabulary) {
		t.Fatalf("err = %v, want ErrInsufficientVocabulary", err)
	}
	if _, err := AllocatePools(words, 0, 2); !errors.Is(err, ErrInsufficientVocabulary) {
		t.Fatalf("zero players err = %v", err)
	}
}

func TestChangeOptionsExclusions(t *testing.T) {
	words := []string{"ant", "bee", "cat", "dog", "elk"}
	guessed := map[string]struct{}{"bee": {}, "dog": {}}

	opts := ChangeOptions(words, "ant", guessed, 10)
	want := map[string]bool{"cat": true, "elk": true}
	if len(opts) != 2 {
		t.Fatalf("options = %v, want cat and elk", opts)
	}
	for _, o := range opts {
		if !want[o] {
			t.Fatalf("unexpected option %q", o)
		}
	}

	// n caps the sample.
	if got := len(ChangeOptions(words, "", nil, 3)); got != 3 {
		t.Fatalf("capped sample size = %d, want 3", got)
	}
}

func TestResolveVotes(t *testing.T) {
	cases := []struct {
		name string
		cast []string
		want string
	}{
		{"empty", nil, ""},
		{"majority", []string{"food", "animals", "food"}, "food"},
		{"tie goes to first to reach count", []string{"animals", "food"}, "animals"},
		{"late surge wins outright", []string{"animals", "food", "food"}, "food"},
	}
	for _, tc := range cases {
		if got := ResolveVotes(tc.cast); got != tc.want {
			t.Errorf("%s: ResolveVotes(%v) = %q, want %q", tc.name, tc.cast, got, tc.want)
		}
	}
}
