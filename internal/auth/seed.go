package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the first admin account when the store is empty and an
// email is configured. The generated password is logged once at warn level
// and must be changed through updateMyPassword.
// Returns the generated password (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, users UserRepository, hasher *PasswordHasher, email string, logger *slog.Logger) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		logger.Debug("no seed admin email configured, skipping admin seed")
		return "", nil
	}

	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Name:         "Administrator",
		Email:        email,
		Photo:        DefaultPhoto,
		Role:         RoleAdmin,
		PasswordHash: hash,
		Active:       true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"email", email,
		"initial_password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
