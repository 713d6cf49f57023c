// internal/engine/token.go
//
// Identifier generation and session-token authorization.
//
// Three kinds of identifiers exist:
//   - game code: 6 uppercase alphanumerics, shareable, not secret.
//   - player ID: 32-char hex, public within a session.
//   - session token: secret credential held only by the owning client;
//     required for every mutating action. Generated once at join and
//     never reissued: a rejoining player gets a new seat, not a refresh.

package engine

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"math/big"

	"github.com/google/uuid"

	"github.com/wordclash/server/internal/game"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newGameCode returns a 6-character uppercase alphanumeric code.
func newGameCode() string {
	b := make([]byte, 6)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b)
}

// newPlayerID returns a 32-char lowercase hex identifier (128 bits).
func newPlayerID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// newSessionToken returns a fresh secret token for a player seat.
func newSessionToken() string {
	return uuid.NewString()
}

// authorize resolves playerID in the session and checks its token.
// The comparison is constant-time so a token cannot be probed
// byte-by-byte through response timing.
func authorize(s *game.Session, playerID, token string) (*game.Player, error) {
	p := s.PlayerByID(playerID)
	if p == nil {
		return nil, game.ErrPlayerNotFound
	}
	if subtle.ConstantTimeCompare([]byte(p.SessionToken), []byte(token)) != 1 {
		return nil, game.ErrUnauthorized
	}
	return p, nil
}
