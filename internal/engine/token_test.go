package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/wordclash/server/internal/game"
)

func TestNewGameCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := newGameCode()
		if len(code) != 6 {
			t.Fatalf("code %q length = %d, want 6", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 90 {
		t.Fatalf("only %d distinct codes in 100 draws", len(seen))
	}
}

func TestNewPlayerIDShape(t *testing.T) {
	id := newPlayerID()
	if len(id) != 32 {
		t.Fatalf("player ID %q length = %d, want 32", id, len(id))
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("player ID %q contains %q", id, r)
		}
	}
	if newPlayerID() == id {
		t.Fatal("player IDs collide")
	}
}

func TestAuthorize(t *testing.T) {
	p := &game.Player{ID: "p1", SessionToken: "secret-token"}
	s := &game.Session{Players: []*game.Player{p}}

	if got, err := authorize(s, "p1", "secret-token"); err != nil || got != p {
		t.Fatalf("authorize = %v, %v", got, err)
	}
	if _, err := authorize(s, "p1", "wrong"); !errors.Is(err, game.ErrUnauthorized) {
		t.Fatalf("bad token err = %v", err)
	}
	if _, err := authorize(s, "nobody", "secret-token"); !errors.Is(err, game.ErrPlayerNotFound) {
		t.Fatalf("unknown player err = %v", err)
	}
}
