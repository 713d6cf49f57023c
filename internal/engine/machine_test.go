package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/wordclash/server/internal/game"
	"github.com/wordclash/server/internal/similarity"
	"github.com/wordclash/server/internal/store"
	"github.com/wordclash/server/internal/themes"
)

type seat struct {
	id    string
	token string
}

func newTestMachine(t *testing.T) (*Machine, *store.Memory) {
	t.Helper()
	if err := themes.Init(); err != nil {
		t.Fatalf("themes.Init: %v", err)
	}
	mem := store.NewMemoryStore(0)
	return NewMachine(mem, similarity.ExactMatcher{}, DefaultConfig()), mem
}

// snapshot reads the raw stored session, bypassing redaction.
func snapshot(t *testing.T, mem *store.Memory, code string) *game.Session {
	t.Helper()
	s, _, err := mem.Get(context.Background(), code)
	if err != nil {
		t.Fatalf("snapshot %s: %v", code, err)
	}
	return s
}

// setupPlaying drives a session from creation into the playing phase.
// Every player votes for the first offered theme and picks the first
// word of their pool.
func setupPlaying(t *testing.T, m *Machine, mem *store.Memory, names ...string) (string, []seat) {
	t.Helper()
	ctx := context.Background()

	sess, err := m.Create(ctx, CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	code := sess.Code

	seats := make([]seat, 0, len(names))
	for _, n := range names {
		id, tok, err := m.Join(ctx, code, n, "")
		if err != nil {
			t.Fatalf("Join %s: %v", n, err)
		}
		seats = append(seats, seat{id, tok})
	}

	if err := m.Start(ctx, code, seats[0].id, seats[0].token); err != nil {
		t.Fatalf("Start: %v", err)
	}

	theme := snapshot(t, mem, code).ThemeOptions[0]
	for _, p := range seats {
		if err := m.Vote(ctx, code, p.id, p.token, theme); err != nil {
			t.Fatalf("Vote: %v", err)
		}
	}

	snap := snapshot(t, mem, code)
	if snap.Status != game.StatusWordSelection {
		t.Fatalf("status after votes = %s, want %s", snap.Status, game.StatusWordSelection)
	}
	for _, p := range seats {
		word := snap.PlayerByID(p.id).WordPool[0]
		if err := m.SetWord(context.Background(), code, p.id, p.token, word); err != nil {
			t.Fatalf("SetWord: %v", err)
		}
	}

	snap = snapshot(t, mem, code)
	if snap.Status != game.StatusPlaying {
		t.Fatalf("status after words = %s, want %s", snap.Status, game.StatusPlaying)
	}
	return code, seats
}

func secretOf(t *testing.T, mem *store.Memory, code, playerID string) string {
	t.Helper()
	p := snapshot(t, mem, code).PlayerByID(playerID)
	if p == nil {
		t.Fatalf("player %s not in session", playerID)
	}
	return p.SecretWord
}

func TestFullGame(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob", "carol")
	a, b, c := seats[0], seats[1], seats[2]

	// Alice guesses Bob's word: Bob falls, Alice earns a change credit.
	out, err := m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, b.id))
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if len(out.Eliminations) != 1 || out.Eliminations[0] != b.id {
		t.Fatalf("eliminations = %v, want [%s]", out.Eliminations, b.id)
	}
	if out.GameOver {
		t.Fatal("game over with two players still alive")
	}
	if out.Similarities[b.id] != 1 {
		t.Fatalf("similarity for hit = %v, want 1", out.Similarities[b.id])
	}

	snap := snapshot(t, mem, code)
	if snap.PlayerByID(b.id).IsAlive {
		t.Fatal("bob still alive after elimination")
	}
	if !snap.PlayerByID(a.id).CanChangeWord {
		t.Fatal("alice did not receive a change credit")
	}
	// Turn skips the eliminated seat and lands on Carol.
	if cur := snap.CurrentPlayer(); cur == nil || cur.ID != c.id {
		t.Fatalf("current player = %v, want carol", cur)
	}

	// Bob is out: his actions are rejected.
	if _, err := m.Guess(ctx, code, b.id, b.token, "xyzzyx"); !errors.Is(err, game.ErrIllegalAction) {
		t.Fatalf("dead player guess err = %v, want ErrIllegalAction", err)
	}

	// Carol misses; everyone survives and the turn wraps to Alice.
	out, err = m.Guess(ctx, code, c.id, c.token, "xyzzyx")
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if len(out.Eliminations) != 0 {
		t.Fatalf("miss eliminated %v", out.Eliminations)
	}
	snap = snapshot(t, mem, code)
	if cur := snap.CurrentPlayer(); cur == nil || cur.ID != a.id {
		t.Fatalf("current player = %v, want alice", cur)
	}

	// Alice takes Carol down: game over, Alice wins.
	out, err = m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, c.id))
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if !out.GameOver || out.WinnerID != a.id {
		t.Fatalf("outcome = %+v, want alice as winner", out)
	}
	snap = snapshot(t, mem, code)
	if snap.Status != game.StatusFinished || snap.WinnerID != a.id {
		t.Fatalf("final status=%s winner=%s", snap.Status, snap.WinnerID)
	}
	if len(snap.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(snap.History))
	}
}

func TestGuessSelfNeverEliminates(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")
	a := seats[0]

	out, err := m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, a.id))
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if out.Similarities[a.id] != 1 {
		t.Fatalf("own similarity = %v, want 1", out.Similarities[a.id])
	}
	if len(out.Eliminations) != 0 {
		t.Fatalf("self-guess eliminated %v", out.Eliminations)
	}
	if !snapshot(t, mem, code).PlayerByID(a.id).IsAlive {
		t.Fatal("guesser eliminated by own word")
	}
}

func TestGuessOutOfTurn(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")
	b := seats[1]

	before := len(snapshot(t, mem, code).History)
	if _, err := m.Guess(ctx, code, b.id, b.token, "xyzzyx"); !errors.Is(err, game.ErrIllegalAction) {
		t.Fatalf("out-of-turn guess err = %v, want ErrIllegalAction", err)
	}
	if after := len(snapshot(t, mem, code).History); after != before {
		t.Fatalf("rejected guess appended history: %d -> %d", before, after)
	}
}

func TestConcurrentGuessesOneSucceeds(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")
	a := seats[0]

	// The current player fires the same guess twice concurrently. The
	// conditional write linearizes them: the second observes a state
	// where it is no longer alice's turn.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Guess(ctx, code, a.id, a.token, "xyzzyx")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, game.ErrIllegalAction), errors.Is(err, game.ErrConflict):
		default:
			t.Fatalf("unexpected race outcome: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1 (errs: %v)", successes, errs)
	}

	snap := snapshot(t, mem, code)
	if len(snap.History) != 1 {
		t.Fatalf("history = %d entries, want 1", len(snap.History))
	}
	if cur := snap.CurrentPlayer(); cur == nil || cur.ID != seats[1].id {
		t.Fatalf("turn pointer = %v, want bob", cur)
	}
}

func TestGuessBadToken(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")

	if _, err := m.Guess(ctx, code, seats[0].id, "wrong-token", "xyzzyx"); !errors.Is(err, game.ErrUnauthorized) {
		t.Fatalf("bad token err = %v, want ErrUnauthorized", err)
	}
}

type failingGateway struct{}

func (failingGateway) Score(ctx context.Context, guess, secret string) (float64, error) {
	return 0, similarity.ErrProviderUnavailable
}

func TestGuessProviderFailureConsumesNothing(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")
	a := seats[0]

	m.gw = failingGateway{}
	if _, err := m.Guess(ctx, code, a.id, a.token, "xyzzyx"); !errors.Is(err, similarity.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}

	snap := snapshot(t, mem, code)
	if len(snap.History) != 0 {
		t.Fatal("failed guess landed in history")
	}
	if cur := snap.CurrentPlayer(); cur == nil || cur.ID != a.id {
		t.Fatal("failed guess consumed the turn")
	}
}

func TestJoinValidation(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	sess, err := m.Create(ctx, CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, _, err := m.Join(ctx, sess.Code, "bad!name", ""); !errors.Is(err, game.ErrInvalidName) {
		t.Fatalf("invalid name err = %v", err)
	}
	if _, _, err := m.Join(ctx, sess.Code, "alice", ""); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, _, err := m.Join(ctx, sess.Code, "ALICE", ""); !errors.Is(err, game.ErrNameTaken) {
		t.Fatalf("duplicate name err = %v", err)
	}
	if _, _, err := m.Join(ctx, "ZZZZZZ", "bob", ""); !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("unknown code err = %v", err)
	}
}

func TestJoinClosesAtCapacityAndPhase(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	cfg := DefaultConfig()
	sess, err := m.Create(ctx, CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var host seat
	for i := 0; i < cfg.MaxPlayers; i++ {
		id, tok, err := m.Join(ctx, sess.Code, "player"+string(rune('a'+i)), "")
		if err != nil {
			t.Fatalf("Join %d: %v", i, err)
		}
		if i == 0 {
			host = seat{id, tok}
		}
	}
	if _, _, err := m.Join(ctx, sess.Code, "late", ""); !errors.Is(err, game.ErrSessionFull) {
		t.Fatalf("over-capacity err = %v", err)
	}

	if err := m.Start(ctx, sess.Code, host.id, host.token); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := m.Join(ctx, sess.Code, "late", ""); !errors.Is(err, game.ErrInvalidTransition) {
		t.Fatalf("post-start join err = %v", err)
	}
}

func TestRankedJoinRequiresAccount(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	sess, err := m.Create(ctx, CreateOptions{IsRanked: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := m.Join(ctx, sess.Code, "guest", ""); !errors.Is(err, game.ErrUnauthorized) {
		t.Fatalf("guest ranked join err = %v", err)
	}
	if _, _, err := m.Join(ctx, sess.Code, "member", "user-1"); err != nil {
		t.Fatalf("account ranked join: %v", err)
	}
}

func TestStartRequiresHostAndQuorum(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	sess, err := m.Create(ctx, CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	hostID, hostTok, _ := m.Join(ctx, sess.Code, "alice", "")

	if err := m.Start(ctx, sess.Code, hostID, hostTok); !errors.Is(err, game.ErrNotEnoughPlayers) {
		t.Fatalf("solo start err = %v", err)
	}

	bobID, bobTok, _ := m.Join(ctx, sess.Code, "bob", "")
	if err := m.Start(ctx, sess.Code, bobID, bobTok); !errors.Is(err, game.ErrNotHost) {
		t.Fatalf("non-host start err = %v", err)
	}
	if err := m.Start(ctx, sess.Code, hostID, hostTok); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(ctx, sess.Code, hostID, hostTok); !errors.Is(err, game.ErrInvalidTransition) {
		t.Fatalf("double start err = %v", err)
	}
}

func TestSingleplayerStartsAlone(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	sess, err := m.Create(ctx, CreateOptions{IsSingleplayer: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id, tok, _ := m.Join(ctx, sess.Code, "solo", "")
	if err := m.Start(ctx, sess.Code, id, tok); err != nil {
		t.Fatalf("singleplayer start: %v", err)
	}
}

func TestVoteRules(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	sess, _ := m.Create(ctx, CreateOptions{})
	aID, aTok, _ := m.Join(ctx, sess.Code, "alice", "")
	bID, bTok, _ := m.Join(ctx, sess.Code, "bob", "")
	if err := m.Start(ctx, sess.Code, aID, aTok); err != nil {
		t.Fatalf("Start: %v", err)
	}

	theme := snapshot(t, mem, sess.Code).ThemeOptions[0]
	if err := m.Vote(ctx, sess.Code, aID, aTok, "not-a-theme"); !errors.Is(err, game.ErrUnknownTheme) {
		t.Fatalf("off-ballot vote err = %v", err)
	}
	if err := m.Vote(ctx, sess.Code, aID, aTok, theme); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if err := m.Vote(ctx, sess.Code, aID, aTok, theme); !errors.Is(err, game.ErrAlreadyVoted) {
		t.Fatalf("double vote err = %v", err)
	}
	if err := m.Vote(ctx, sess.Code, bID, bTok, theme); err != nil {
		t.Fatalf("Vote: %v", err)
	}

	snap := snapshot(t, mem, sess.Code)
	if snap.Status != game.StatusWordSelection {
		t.Fatalf("status = %s, want word_selection", snap.Status)
	}
	if snap.Theme == nil || snap.Theme.Name != theme {
		t.Fatalf("theme = %+v, want %s", snap.Theme, theme)
	}
	// Pools are dealt disjoint.
	seen := map[string]string{}
	for _, p := range snap.Players {
		if len(p.WordPool) != m.cfg.PoolSize {
			t.Fatalf("pool size = %d, want %d", len(p.WordPool), m.cfg.PoolSize)
		}
		for _, w := range p.WordPool {
			if owner, dup := seen[w]; dup {
				t.Fatalf("word %q dealt to both %s and %s", w, owner, p.ID)
			}
			seen[w] = p.ID
		}
	}
}

func TestSetWordMustComeFromPool(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	sess, _ := m.Create(ctx, CreateOptions{})
	aID, aTok, _ := m.Join(ctx, sess.Code, "alice", "")
	bID, bTok, _ := m.Join(ctx, sess.Code, "bob", "")
	_ = m.Start(ctx, sess.Code, aID, aTok)
	theme := snapshot(t, mem, sess.Code).ThemeOptions[0]
	_ = m.Vote(ctx, sess.Code, aID, aTok, theme)
	_ = m.Vote(ctx, sess.Code, bID, bTok, theme)

	snap := snapshot(t, mem, sess.Code)
	// A word from Bob's pool is, by disjointness, not in Alice's.
	other := snap.PlayerByID(bID).WordPool[0]
	if err := m.SetWord(ctx, sess.Code, aID, aTok, other); !errors.Is(err, game.ErrWordNotInPool) {
		t.Fatalf("foreign word err = %v", err)
	}
	if err := m.SetWord(ctx, sess.Code, aID, aTok, "not a word!"); !errors.Is(err, game.ErrInvalidWord) {
		t.Fatalf("malformed word err = %v", err)
	}
	if err := m.SetWord(ctx, sess.Code, aID, aTok, snap.PlayerByID(aID).WordPool[1]); err != nil {
		t.Fatalf("SetWord: %v", err)
	}
}

func TestBeginDealsDefaultWords(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	sess, _ := m.Create(ctx, CreateOptions{})
	aID, aTok, _ := m.Join(ctx, sess.Code, "alice", "")
	bID, bTok, _ := m.Join(ctx, sess.Code, "bob", "")
	_ = m.Start(ctx, sess.Code, aID, aTok)
	theme := snapshot(t, mem, sess.Code).ThemeOptions[0]
	_ = m.Vote(ctx, sess.Code, aID, aTok, theme)
	_ = m.Vote(ctx, sess.Code, bID, bTok, theme)

	// Only Alice picks; the host forces the start and Bob gets a default.
	snap := snapshot(t, mem, sess.Code)
	_ = m.SetWord(ctx, sess.Code, aID, aTok, snap.PlayerByID(aID).WordPool[0])
	if err := m.Begin(ctx, sess.Code, aID, aTok); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	snap = snapshot(t, mem, sess.Code)
	if snap.Status != game.StatusPlaying {
		t.Fatalf("status = %s, want playing", snap.Status)
	}
	bob := snap.PlayerByID(bID)
	if bob.SecretWord != bob.WordPool[0] {
		t.Fatalf("bob's default word = %q, want pool head %q", bob.SecretWord, bob.WordPool[0])
	}
}

func TestBeginClosesVoteEarly(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	sess, _ := m.Create(ctx, CreateOptions{})
	aID, aTok, _ := m.Join(ctx, sess.Code, "alice", "")
	_, _, _ = m.Join(ctx, sess.Code, "bob", "")
	_ = m.Start(ctx, sess.Code, aID, aTok)

	theme := snapshot(t, mem, sess.Code).ThemeOptions[1]
	_ = m.Vote(ctx, sess.Code, aID, aTok, theme)
	if err := m.Begin(ctx, sess.Code, aID, aTok); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	snap := snapshot(t, mem, sess.Code)
	if snap.Status != game.StatusWordSelection || snap.Theme.Name != theme {
		t.Fatalf("status=%s theme=%v, want word_selection with %s", snap.Status, snap.Theme, theme)
	}
}

func TestWordChange(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob", "carol")
	a := seats[0]

	// No credit yet.
	if err := m.ChangeWord(ctx, code, a.id, a.token, "xyzzyx"); !errors.Is(err, game.ErrNoChangeCredit) {
		t.Fatalf("creditless change err = %v", err)
	}

	// Earn the credit by eliminating Bob.
	if _, err := m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, seats[1].id)); err != nil {
		t.Fatalf("Guess: %v", err)
	}
	snap := snapshot(t, mem, code)
	alice := snap.PlayerByID(a.id)
	if !alice.CanChangeWord || len(alice.ChangeOptions) == 0 {
		t.Fatalf("credit state: can=%v options=%d", alice.CanChangeWord, len(alice.ChangeOptions))
	}

	// Carol's live word is off-limits.
	carolWord := secretOf(t, mem, code, seats[2].id)
	if err := m.ChangeWord(ctx, code, a.id, a.token, carolWord); !errors.Is(err, game.ErrWordTaken) {
		t.Fatalf("taken word err = %v", err)
	}

	// Spend it on an offered option that is not Carol's live word.
	newWord := ""
	for _, w := range alice.ChangeOptions {
		if w != carolWord {
			newWord = w
			break
		}
	}
	if newWord == "" {
		t.Fatal("no usable change option offered")
	}
	if err := m.ChangeWord(ctx, code, a.id, a.token, newWord); err != nil {
		t.Fatalf("ChangeWord: %v", err)
	}
	snap = snapshot(t, mem, code)
	alice = snap.PlayerByID(a.id)
	if alice.SecretWord != newWord || alice.CanChangeWord || alice.ChangeOptions != nil {
		t.Fatalf("post-change state: word=%q can=%v options=%v", alice.SecretWord, alice.CanChangeWord, alice.ChangeOptions)
	}
	// The change is on the record, the word is not.
	last := snap.History[len(snap.History)-1]
	if last.Type != game.EntryWordChange || last.Word != "" {
		t.Fatalf("history entry = %+v", last)
	}

	// Credit is spent.
	if err := m.ChangeWord(ctx, code, a.id, a.token, "xyzzyx"); !errors.Is(err, game.ErrNoChangeCredit) {
		t.Fatalf("second change err = %v", err)
	}
}

type alwaysHitGateway struct{}

func (alwaysHitGateway) Score(ctx context.Context, guess, secret string) (float64, error) {
	return 1, nil
}

func TestMultiEliminationGrantsOneCredit(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob", "carol")
	a := seats[0]

	// Every score maxes out: one guess fells both opponents at once.
	m.gw = alwaysHitGateway{}
	out, err := m.Guess(ctx, code, a.id, a.token, "xyzzyx")
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if len(out.Eliminations) != 2 {
		t.Fatalf("eliminations = %v, want both opponents", out.Eliminations)
	}
	if !out.GameOver || out.WinnerID != a.id {
		t.Fatalf("outcome = %+v, want alice as winner", out)
	}
	// The credit is a boolean: two kills still grant one.
	if !snapshot(t, mem, code).PlayerByID(a.id).CanChangeWord {
		t.Fatal("no credit granted")
	}
	if len(snapshot(t, mem, code).History) != 1 {
		t.Fatalf("history = %d entries, want the single guess", len(snapshot(t, mem, code).History))
	}
}

func TestStateForSpectator(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")

	// A viewer holding no seat still gets the session, fully redacted:
	// no secret words, pools, or credits for anyone living.
	view, err := m.StateFor(ctx, code, "spectator")
	if err != nil {
		t.Fatalf("spectator StateFor: %v", err)
	}
	if view.Status != game.StatusPlaying || len(view.Players) != 2 {
		t.Fatalf("spectator view = %+v", view)
	}
	if view.IsHost {
		t.Fatal("spectator flagged as host")
	}
	for _, pv := range view.Players {
		if pv.SecretWord != "" || pv.WordPool != nil || pv.ChangeOptions != nil || pv.CanChangeWord {
			t.Fatalf("spectator sees private state: %+v", pv)
		}
	}

	// After an elimination the fallen word is public to spectators too.
	a := seats[0]
	if _, err := m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, seats[1].id)); err != nil {
		t.Fatalf("Guess: %v", err)
	}
	view, _ = m.StateFor(ctx, code, "spectator")
	for _, pv := range view.Players {
		if pv.ID == seats[1].id && pv.SecretWord == "" {
			t.Fatal("eliminated word hidden from spectator")
		}
	}
}

func TestStateForIsReadOnly(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")

	v1, err := m.StateFor(ctx, code, seats[0].id)
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	v2, err := m.StateFor(ctx, code, seats[0].id)
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	if v1.Version != v2.Version {
		t.Fatalf("reads bumped the version: %d -> %d", v1.Version, v2.Version)
	}
}

func TestSkipWordChange(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob", "carol")
	a := seats[0]

	if _, err := m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, seats[1].id)); err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if err := m.SkipWordChange(ctx, code, a.id, a.token); err != nil {
		t.Fatalf("SkipWordChange: %v", err)
	}
	alice := snapshot(t, mem, code).PlayerByID(a.id)
	if alice.CanChangeWord || alice.ChangeOptions != nil {
		t.Fatal("skip did not clear the credit")
	}
	if err := m.SkipWordChange(ctx, code, a.id, a.token); !errors.Is(err, game.ErrNoChangeCredit) {
		t.Fatalf("double skip err = %v", err)
	}
}

func TestWordChangeActionsGatedOnPlaying(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")
	a := seats[0]

	// The winning guess grants a credit, but the game is over: neither
	// spending nor skipping it is a valid move anymore.
	if _, err := m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, seats[1].id)); err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if !snapshot(t, mem, code).PlayerByID(a.id).CanChangeWord {
		t.Fatal("no credit granted on the winning guess")
	}
	if err := m.SkipWordChange(ctx, code, a.id, a.token); !errors.Is(err, game.ErrInvalidTransition) {
		t.Fatalf("post-game skip err = %v", err)
	}
	if err := m.ChangeWord(ctx, code, a.id, a.token, "xyzzyx"); !errors.Is(err, game.ErrInvalidTransition) {
		t.Fatalf("post-game change err = %v", err)
	}
}

func TestLeaveForfeitsMidGame(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")
	a, b := seats[0], seats[1]

	if err := m.Leave(ctx, code, a.id, a.token); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	snap := snapshot(t, mem, code)
	if snap.Status != game.StatusFinished || snap.WinnerID != b.id {
		t.Fatalf("status=%s winner=%s, want finished with bob", snap.Status, snap.WinnerID)
	}
	if snap.PlayerByID(a.id) == nil {
		t.Fatal("forfeiting player removed from roster")
	}
	if snap.PlayerByID(a.id).IsAlive {
		t.Fatal("forfeiting player still alive")
	}
}

func TestLeaveLobbyMigratesHost(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	sess, _ := m.Create(ctx, CreateOptions{})
	aID, aTok, _ := m.Join(ctx, sess.Code, "alice", "")
	bID, _, _ := m.Join(ctx, sess.Code, "bob", "")

	if err := m.Leave(ctx, sess.Code, aID, aTok); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	snap := snapshot(t, mem, sess.Code)
	if snap.HostID != bID {
		t.Fatalf("host = %s, want %s", snap.HostID, bID)
	}
	if snap.PlayerByID(aID) != nil {
		t.Fatal("lobby leaver still on roster")
	}
}

func TestLastLeaveDeletesSession(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	sess, _ := m.Create(ctx, CreateOptions{})
	aID, aTok, _ := m.Join(ctx, sess.Code, "alice", "")

	if err := m.Leave(ctx, sess.Code, aID, aTok); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if _, _, err := mem.Get(ctx, sess.Code); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("empty session still stored: %v", err)
	}
}

func TestLeaveCompletesPendingVote(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	sess, _ := m.Create(ctx, CreateOptions{})
	aID, aTok, _ := m.Join(ctx, sess.Code, "alice", "")
	bID, bTok, _ := m.Join(ctx, sess.Code, "bob", "")
	cID, cTok, _ := m.Join(ctx, sess.Code, "carol", "")
	_ = m.Start(ctx, sess.Code, aID, aTok)

	theme := snapshot(t, mem, sess.Code).ThemeOptions[0]
	_ = m.Vote(ctx, sess.Code, aID, aTok, theme)
	_ = m.Vote(ctx, sess.Code, bID, bTok, theme)

	// Carol never votes; her leaving closes the ballot.
	if err := m.Leave(ctx, sess.Code, cID, cTok); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	snap := snapshot(t, mem, sess.Code)
	if snap.Status != game.StatusWordSelection {
		t.Fatalf("status = %s, want word_selection", snap.Status)
	}
}

func TestStateForRedaction(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	code, seats := setupPlaying(t, m, mem, "alice", "bob")
	a, b := seats[0], seats[1]

	view, err := m.StateFor(ctx, code, a.id)
	if err != nil {
		t.Fatalf("StateFor: %v", err)
	}
	for _, pv := range view.Players {
		switch pv.ID {
		case a.id:
			if pv.SecretWord == "" || len(pv.WordPool) == 0 {
				t.Fatal("own word and pool must be visible")
			}
		case b.id:
			if pv.SecretWord != "" || pv.WordPool != nil {
				t.Fatal("opponent word or pool leaked")
			}
			if !pv.HasWord {
				t.Fatal("opponent readiness hidden")
			}
		}
	}

	// Eliminated words become public.
	if _, err := m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, b.id)); err != nil {
		t.Fatalf("Guess: %v", err)
	}
	view, _ = m.StateFor(ctx, code, a.id)
	for _, pv := range view.Players {
		if pv.ID == b.id && pv.SecretWord == "" {
			t.Fatal("eliminated player's word still hidden")
		}
	}
}

func TestFinishHookFiresOnce(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	var fired []string
	m.SetFinishHook(func(s *game.Session) { fired = append(fired, s.Code) })

	code, seats := setupPlaying(t, m, mem, "alice", "bob")
	a := seats[0]
	if _, err := m.Guess(ctx, code, a.id, a.token, secretOf(t, mem, code, seats[1].id)); err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if len(fired) != 1 || fired[0] != code {
		t.Fatalf("finish hook fired %v, want once for %s", fired, code)
	}
	// Post-game leave must not re-fire.
	if err := m.Leave(ctx, code, a.id, a.token); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("finish hook re-fired: %v", fired)
	}
}

func TestUpdateRetriesOnConflict(t *testing.T) {
	m, mem := newTestMachine(t)
	ctx := context.Background()
	sess, _ := m.Create(ctx, CreateOptions{})

	// Another writer bumps the version between the engine's read and
	// write; the retry loop must absorb it.
	interfered := false
	_, _, err := m.update(ctx, sess.Code, func(s *game.Session) error {
		if !interfered {
			interfered = true
			raw, ver, _ := mem.Get(ctx, sess.Code)
			if _, err := mem.Put(ctx, sess.Code, raw, ver); err != nil {
				t.Fatalf("interfering put: %v", err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update with one conflict: %v", err)
	}
}
