package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/urielparavi/natours-auth/internal/infrastructure/database"
	_ "github.com/urielparavi/natours-auth/migrations"
)

const testSecret = "test-secret-key-that-is-32-bytes-long!!"

// testDB creates a temporary SQLite database with the embedded schema
// applied. The file is removed when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// testHasher returns an Argon2id hasher with the smallest sensible cost
// so tests stay fast.
func testHasher(t testing.TB) *PasswordHasher {
	t.Helper()

	h, err := NewPasswordHasher(HashParams{
		Algorithm:  AlgorithmArgon2id,
		Time:       1,
		MemoryKiB:  1024,
		Threads:    1,
		BcryptCost: 4,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}
	return h
}

// seedTestUser inserts an active user with the given role whose password
// is "password123".
func seedTestUser(t *testing.T, repo UserRepository, email string, role Role) *User {
	t.Helper()

	hash, err := testHasher(t).Hash("password123")
	if err != nil {
		t.Fatalf("hashing test password: %v", err)
	}

	u := &User{
		Name:         "Test " + string(role),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", email, err)
	}
	return u
}
