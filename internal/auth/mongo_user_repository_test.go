package auth

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/urielparavi/natours-auth/internal/infrastructure/config"
	"github.com/urielparavi/natours-auth/internal/infrastructure/mongodb"
)

// testMongoRepo connects to NATOURS_TEST_MONGO_URI and returns a repository
// on a throwaway database, or skips the test.
func testMongoRepo(t *testing.T) *MongoUserRepository {
	t.Helper()

	uri := os.Getenv("NATOURS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("NATOURS_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := mongodb.Connect(ctx, config.MongoConfig{URI: uri, Database: "natours_test_" + uuid.NewString()[:8]})
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Database().Drop(context.Background()) //nolint:errcheck // test cleanup
		_ = client.Close()                               //nolint:errcheck // test cleanup
	})

	repo, err := NewMongoUserRepository(ctx, client.Database())
	if err != nil {
		t.Fatalf("NewMongoUserRepository() error = %v", err)
	}
	return repo
}

func TestMongoUserRepository_Lifecycle(t *testing.T) {
	repo := testMongoRepo(t)
	ctx := context.Background()

	u := seedTestUser(t, repo, "Mongo@Example.com", RoleUser)
	if len(u.ID) != 24 {
		t.Errorf("ID = %q, want ObjectID hex", u.ID)
	}

	dup := &User{Name: "Dup", Email: "mongo@example.com", PasswordHash: "h", Active: true}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Errorf("duplicate Create() error = %v, want ErrEmailExists", err)
	}

	got, err := repo.FindByEmail(ctx, "mongo@example.com", ReadOptions{})
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got.PasswordHash != "" {
		t.Error("default read must not load the password hash")
	}

	// Saving the projected record keeps the stored hash.
	got.Name = "Renamed"
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	withPw, err := repo.FindByID(ctx, u.ID, ReadOptions{WithPassword: true})
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if withPw.Name != "Renamed" || !testHasher(t).Verify("password123", withPw.PasswordHash) {
		t.Error("Save should update name and keep the hash")
	}

	now := time.Now().UTC()
	withPw.SetPasswordReset(HashToken("clear"), now.Add(10*time.Minute))
	if err := repo.Save(ctx, withPw); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := repo.FindByResetToken(ctx, HashToken("clear"), now); err != nil {
		t.Errorf("FindByResetToken() error = %v", err)
	}
	if _, err := repo.FindByResetToken(ctx, HashToken("clear"), now.Add(11*time.Minute)); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expired FindByResetToken() error = %v, want ErrUserNotFound", err)
	}

	withPw.Active = false
	if err := repo.Save(ctx, withPw); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := repo.FindByID(ctx, u.ID, ReadOptions{}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("inactive read error = %v, want ErrUserNotFound", err)
	}
	if n, err := repo.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}
	if _, err := repo.FindByID(ctx, "not-hex", ReadOptions{}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("malformed id error = %v, want ErrUserNotFound", err)
	}
}
