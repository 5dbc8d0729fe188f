package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hashing algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

const (
	argonKeyLen  = 32
	argonSaltLen = 16

	// bcryptMaxBytes is the longest input bcrypt accepts.
	bcryptMaxBytes = 72
)

// HashParams selects the algorithm and work factor for new digests.
type HashParams struct {
	Algorithm string

	// Argon2id cost.
	Time      uint32
	MemoryKiB uint32
	Threads   uint8

	BcryptCost int
}

// DefaultHashParams returns Argon2id at the OWASP recommended cost, with
// bcrypt cost 10 for deployments that select bcrypt.
func DefaultHashParams() HashParams {
	return HashParams{
		Algorithm:  AlgorithmArgon2id,
		Time:       3,
		MemoryKiB:  64 * 1024,
		Threads:    1,
		BcryptCost: bcrypt.DefaultCost,
	}
}

// PasswordHasher produces salted one-way digests and verifies plaintexts
// against digests of either supported family.
type PasswordHasher struct {
	params HashParams
}

// NewPasswordHasher validates p and returns a hasher.
func NewPasswordHasher(p HashParams) (*PasswordHasher, error) {
	switch p.Algorithm {
	case AlgorithmArgon2id:
		if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
			return nil, fmt.Errorf("argon2id parameters must be positive")
		}
	case AlgorithmBcrypt:
		if p.BcryptCost < bcrypt.MinCost || p.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", p.BcryptCost)
		}
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", p.Algorithm)
	}
	return &PasswordHasher{params: p}, nil
}

// Hash returns a digest of plaintext with a fresh random salt embedded.
// Argon2id digests use the PHC string format:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if h.params.Algorithm == AlgorithmBcrypt {
		if len(plaintext) > bcryptMaxBytes {
			return "", fmt.Errorf("hashing password: longer than %d bytes", bcryptMaxBytes)
		}
		digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.params.BcryptCost)
		if err != nil {
			return "", fmt.Errorf("hashing password: %w", err)
		}
		return string(digest), nil
	}

	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	p := h.params
	key := argon2.IDKey([]byte(plaintext), salt, p.Time, p.MemoryKiB, p.Threads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches digest. It dispatches on the
// digest prefix, so bcrypt digests imported from an older store keep
// working under an Argon2id hasher. A malformed digest verifies as false.
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
	}

	salt, key, params, err := decodePHC(digest)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(plaintext), salt, params.time, params.memory, params.threads, uint32(len(key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(key, candidate) == 1
}

// NeedsRehash reports whether digest was produced by another algorithm or
// with different cost parameters than the hasher's current settings.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	if isBcrypt(digest) {
		if h.params.Algorithm != AlgorithmBcrypt {
			return true
		}
		cost, err := bcrypt.Cost([]byte(digest))
		return err != nil || cost != h.params.BcryptCost
	}

	if h.params.Algorithm != AlgorithmArgon2id {
		return true
	}
	_, _, params, err := decodePHC(digest)
	if err != nil {
		return true
	}
	return params.time != h.params.Time ||
		params.memory != h.params.MemoryKiB ||
		params.threads != h.params.Threads
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// decodePHC parses an Argon2id PHC string into its components.
func decodePHC(encoded string) (salt, key []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}
	if params.time == 0 || params.memory == 0 || params.threads == 0 {
		return nil, nil, params, fmt.Errorf("invalid argon2 parameters")
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}
	if len(key) == 0 {
		return nil, nil, params, fmt.Errorf("empty hash")
	}

	return salt, key, params, nil
}
