// Package auth provides authentication and authorisation for the Natours API.
//
// It implements a 4-role model (user, guide, lead-guide, admin) with:
//   - Argon2id password hashing, with bcrypt digests still verified and
//     upgraded on login
//   - Stateless HS256 session tokens carrying sub, iat, exp and jti
//   - Single-use password reset credentials stored only as SHA-256 digests
//   - A credential store behind UserRepository, backed by SQLite or MongoDB
//
// A token is rejected once the account's password changes after the token
// was issued. Logout only clears the cookie: there is no revocation list,
// so a bearer token held elsewhere stays valid until it expires.
package auth
