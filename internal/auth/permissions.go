package auth

import "slices"

// RequireRole returns nil when user holds one of the allowed roles and
// ErrForbidden otherwise. A nil user or an empty allow-list never passes.
// It reads nothing but its arguments.
func RequireRole(user *User, allowed ...Role) error {
	if user == nil || !slices.Contains(allowed, user.Role) {
		return ErrForbidden
	}
	return nil
}
