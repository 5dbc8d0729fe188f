package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/urielparavi/natours-auth/internal/auth"
)

func TestTokenFromRequest(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name   string
		mutate func(*http.Request)
		want   string
	}{
		{"none", func(*http.Request) {}, ""},
		{"bearer", bearer("abc"), "abc"},
		{"cookie", withCookie("jwt", "def"), "def"},
		{"bearer wins over cookie", func(r *http.Request) {
			bearer("abc")(r)
			withCookie("jwt", "def")(r)
		}, "abc"},
		{"loggedout cookie", withCookie("jwt", "loggedout"), ""},
		{"other cookie name", withCookie("session", "def"), ""},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, ""},
		{"empty bearer falls back to cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer ")
			withCookie("jwt", "def")(r)
		}, "def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.mutate(req)
			if got := env.srv.tokenFromRequest(req); got != tt.want {
				t.Errorf("tokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProtect_Rejections(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name    string
		mutate  func(*http.Request)
		message string
	}{
		{"no token", nil, "You are not logged in! please log in to get access."},
		{"garbage token", bearer("not-a-jwt"), "Invalid token. Please log in again!"},
		{"loggedout cookie", withCookie("jwt", "loggedout"), "You are not logged in! please log in to get access."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/users/me", nil, tt.mutate)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			got := decodeEnvelope(t, rec)
			if got.Status != "fail" || got.Message != tt.message {
				t.Errorf("envelope = %+v, want fail %q", got, tt.message)
			}
		})
	}
}

func TestProtect_ExpiredToken(t *testing.T) {
	env := testServer(t)
	u := env.seedUser(t, "expired@natours.io", auth.RoleUser)

	codec, err := auth.NewTokenCodec(testSecret, time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	codec.SetClock(func() time.Time { return time.Now().Add(-time.Hour) })
	token, _, err := codec.Issue(u.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(token))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if msg := decodeEnvelope(t, rec).Message; msg != "Your token has expired! Please log in again." {
		t.Errorf("message = %q", msg)
	}
}

func TestProtect_UserGone(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "gone@natours.io", auth.RoleUser)
	token := env.login(t, "gone@natours.io")

	rec := env.do(t, http.MethodDelete, "/api/v1/users/deleteMe", nil, bearer(token))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deleteMe status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(token))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if msg := decodeEnvelope(t, rec).Message; msg != "The user belonging to this token does no longer exist." {
		t.Errorf("message = %q", msg)
	}
}

// A token issued before the password change timestamp is rejected; one
// issued after it is accepted.
func TestProtect_PasswordFreshness(t *testing.T) {
	env := testServer(t)
	u := env.seedUser(t, "fresh@natours.io", auth.RoleUser)
	token := env.login(t, "fresh@natours.io")

	setChangedAt := func(at time.Time) {
		t.Helper()
		stored, err := env.users.FindByID(context.Background(), u.ID, auth.ReadOptions{})
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		at = at.UTC()
		stored.PasswordChangedAt = &at
		if err := env.users.Save(context.Background(), stored); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	setChangedAt(time.Now().Add(-time.Hour))
	rec := env.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("token issued after change: status = %d, want 200", rec.Code)
	}

	setChangedAt(time.Now().Add(time.Hour))
	rec = env.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(token))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token issued before change: status = %d, want 401", rec.Code)
	}
	if msg := decodeEnvelope(t, rec).Message; msg != "User recently changed password! Please log in again." {
		t.Errorf("message = %q", msg)
	}
}

func TestUpdatePassword_IssuesWorkingToken(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "skew@natours.io", auth.RoleUser)
	token := env.login(t, "skew@natours.io")

	rec := env.do(t, http.MethodPatch, "/api/v1/users/updateMyPassword", map[string]string{
		"passwordCurrent": testPassword,
		"password":        "newpassword1",
		"passwordConfirm": "newpassword1",
	}, bearer(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("updateMyPassword status = %d, body = %s", rec.Code, rec.Body.String())
	}

	fresh := decodeEnvelope(t, rec).Token
	if fresh == "" {
		t.Fatal("no token after password update")
	}
	rec = env.do(t, http.MethodGet, "/api/v1/users/me", nil, bearer(fresh))
	if rec.Code != http.StatusOK {
		t.Errorf("fresh token rejected: status = %d", rec.Code)
	}
}

func TestIsLoggedIn_SessionCheck(t *testing.T) {
	env := testServer(t)
	u := env.seedUser(t, "guide@natours.io", auth.RoleGuide)
	token := env.login(t, "guide@natours.io")

	tests := []struct {
		name   string
		mutate func(*http.Request)
		wantID string
	}{
		{"anonymous", nil, ""},
		{"garbage cookie", withCookie("jwt", "garbage"), ""},
		{"loggedout cookie", withCookie("jwt", "loggedout"), ""},
		{"valid cookie", withCookie("jwt", token), u.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/users/session", nil, tt.mutate)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			user := decodeUser(t, rec)
			if tt.wantID == "" {
				if user != nil {
					t.Errorf("user = %v, want null", user)
				}
				return
			}
			if user == nil || user["id"] != tt.wantID {
				t.Errorf("user = %v, want id %s", user, tt.wantID)
			}
		})
	}
}

func TestRestrictTo_WithoutProtect(t *testing.T) {
	env := testServer(t)

	h := env.srv.restrictTo(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
