package auth

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestChangedPasswordAfter(t *testing.T) {
	iat := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := iat.Add(d); return &v }

	tests := []struct {
		name    string
		changed *time.Time
		want    bool
	}{
		{"never changed", nil, false},
		{"changed before issue", at(-time.Hour), false},
		{"changed same second", at(500 * time.Millisecond), false},
		{"changed next second", at(time.Second), true},
		{"changed long after", at(24 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{PasswordChangedAt: tt.changed}
			if got := u.ChangedPasswordAfter(iat); got != tt.want {
				t.Errorf("ChangedPasswordAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

// A token issued right after a password change must not be considered stale.
func TestSetPassword_BackdatesChange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &User{}
	u.SetPasswordReset("digest", now.Add(time.Minute))

	u.SetPassword("new-hash", now)

	if u.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q", u.PasswordHash)
	}
	if u.PasswordChangedAt == nil || !u.PasswordChangedAt.Equal(now.Add(-time.Second)) {
		t.Errorf("PasswordChangedAt = %v, want now-1s", u.PasswordChangedAt)
	}
	if u.ChangedPasswordAfter(now) {
		t.Error("token issued at change time should remain valid")
	}
	if u.PasswordResetTokenHash != "" || u.PasswordResetExpiresAt != nil {
		t.Error("SetPassword should clear the reset pair")
	}
}

func TestPasswordReset_Pair(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &User{}

	if u.HasPendingReset(now) {
		t.Error("fresh user should have no pending reset")
	}

	u.SetPasswordReset("digest", now.Add(10*time.Minute))
	if !u.HasPendingReset(now) {
		t.Error("reset should be pending before expiry")
	}
	if u.HasPendingReset(now.Add(10 * time.Minute)) {
		t.Error("reset should not be pending at expiry")
	}

	u.ClearPasswordReset()
	if u.PasswordResetTokenHash != "" || u.PasswordResetExpiresAt != nil {
		t.Error("ClearPasswordReset should clear both fields")
	}
}

func TestUser_JSONHidesSecrets(t *testing.T) {
	exp := time.Now()
	u := User{
		ID:                     "usr-1",
		Name:                   "Jonas",
		Email:                  "jonas@example.com",
		Role:                   RoleUser,
		PasswordHash:           "$argon2id$secret",
		PasswordResetTokenHash: "reset-digest",
		PasswordResetExpiresAt: &exp,
		Active:                 true,
	}

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out := string(data)
	for _, secret := range []string{"argon2id", "reset-digest", "active", "passwordResetExpires"} {
		if strings.Contains(out, secret) {
			t.Errorf("JSON should not contain %q: %s", secret, out)
		}
	}
	if !strings.Contains(out, `"email":"jonas@example.com"`) {
		t.Errorf("JSON missing email: %s", out)
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range []string{"user", "guide", "lead-guide", "admin"} {
		if _, err := ParseRole(r); err != nil {
			t.Errorf("ParseRole(%q) error = %v", r, err)
		}
	}
	for _, r := range []string{"", "owner", "Admin", "lead_guide"} {
		if _, err := ParseRole(r); !errors.Is(err, ErrInvalidRole) {
			t.Errorf("ParseRole(%q) error = %v, want ErrInvalidRole", r, err)
		}
	}
}
