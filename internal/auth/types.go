package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Role represents an authorisation tier.
type Role string

const (
	// RoleUser is the default for every signup.
	RoleUser Role = "user"

	// RoleGuide leads tours.
	RoleGuide Role = "guide"

	// RoleLeadGuide manages guides.
	RoleLeadGuide Role = "lead-guide"

	// RoleAdmin manages accounts and roles and reads the audit log.
	RoleAdmin Role = "admin"
)

// ValidRoles is the closed set of roles an account may hold.
var ValidRoles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

// ParseRole converts a string to a Role, rejecting anything outside ValidRoles.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !IsValidRole(r) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// DefaultPhoto is assigned when a user has not uploaded one.
const DefaultPhoto = "default.jpg"

// passwordChangeSkew backdates passwordChangedAt so a token issued in the
// same second as the change is not rejected as stale.
const passwordChangeSkew = time.Second

// User represents an account. Secrets and the soft-delete flag never leave
// the process: they carry json:"-".
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
	Role  Role   `json:"role"`

	PasswordHash      string     `json:"-"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`

	// The reset pair is set and cleared together; see SetPasswordReset.
	PasswordResetTokenHash string     `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`

	Active bool `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat. Comparison is at whole-second granularity because JWT
// timestamps carry no fraction.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat.Unix()
}

// SetPassword replaces the hash and stamps passwordChangedAt one second in
// the past. It also clears any outstanding reset credential.
func (u *User) SetPassword(hash string, now time.Time) {
	changed := now.Add(-passwordChangeSkew).UTC()
	u.PasswordHash = hash
	u.PasswordChangedAt = &changed
	u.ClearPasswordReset()
}

// SetPasswordReset stores a reset credential digest with its expiry.
func (u *User) SetPasswordReset(hash string, expiresAt time.Time) {
	exp := expiresAt.UTC()
	u.PasswordResetTokenHash = hash
	u.PasswordResetExpiresAt = &exp
}

// ClearPasswordReset removes the reset credential.
func (u *User) ClearPasswordReset() {
	u.PasswordResetTokenHash = ""
	u.PasswordResetExpiresAt = nil
}

// HasPendingReset reports whether an unexpired reset credential exists.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.PasswordResetTokenHash != "" &&
		u.PasswordResetExpiresAt != nil &&
		u.PasswordResetExpiresAt.After(now)
}

// Sentinel errors for auth operations.
var (
	ErrMissingCredentials   = errors.New("email and password are required")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailExists          = errors.New("email already registered")
	ErrNotLoggedIn          = errors.New("not logged in")
	ErrTokenInvalid         = errors.New("invalid token")
	ErrUserGone             = errors.New("token subject no longer exists")
	ErrPasswordChanged      = errors.New("password changed after token was issued")
	ErrForbidden            = errors.New("insufficient permissions")
	ErrSelfModification     = errors.New("cannot modify own account in this way")
	ErrResetTokenInvalid    = errors.New("reset token is invalid or has expired")
	ErrCurrentPasswordWrong = errors.New("current password is wrong")
	ErrEmailDelivery        = errors.New("sending email failed")
	ErrInvalidRole          = errors.New("invalid role")
	ErrPasswordRouteMisuse  = errors.New("password fields are not accepted on this route")
	ErrValidation           = errors.New("validation failed")
)

// Token failure reasons. Each wraps ErrTokenInvalid so callers that do not
// care about the reason can test for that alone.
var (
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrTokenInvalid)
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	ErrTokenSignature = fmt.Errorf("%w: bad signature", ErrTokenInvalid)
)
