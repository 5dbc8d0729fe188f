package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultResetTTL is how long a password reset credential stays redeemable.
const DefaultResetTTL = 10 * time.Minute

// resetTokenBytes is the entropy of a reset credential (256 bits).
const resetTokenBytes = 32

// ResetCredential is a freshly generated reset token. Cleartext goes to the
// user exactly once; only Hash is stored.
type ResetCredential struct {
	Cleartext string
	Hash      string
	ExpiresAt time.Time
}

// GenerateResetToken creates a random reset credential valid until now+ttl.
func GenerateResetToken(now time.Time, ttl time.Duration) (ResetCredential, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return ResetCredential{}, fmt.Errorf("generating reset token: %w", err)
	}
	raw := hex.EncodeToString(b)

	return ResetCredential{
		Cleartext: raw,
		Hash:      HashToken(raw),
		ExpiresAt: now.Add(ttl).UTC(),
	}, nil
}

// HashToken computes the SHA-256 hex digest of a raw token for storage and lookup.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
