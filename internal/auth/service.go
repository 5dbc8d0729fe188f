package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// ResetEmailSubject returns the subject line of the password reset email
// for a credential that lives for ttl.
func ResetEmailSubject(ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Your password reset token (valid for %d min)", minutes)
}

// rollbackTimeout bounds the write that withdraws a reset credential after
// a failed delivery. It runs detached from the request context.
const rollbackTimeout = 5 * time.Second

// timingPassword is hashed once so that logins for unknown emails spend
// the same time in Verify as logins with a wrong password.
const timingPassword = "natours-timing-equaliser"

// SignupInput is the signup request body.
type SignupInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,maxbytes=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// PasswordInput is a new password with its confirmation.
type PasswordInput struct {
	Password        string `json:"password" validate:"required,min=8,maxbytes=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// ProfileInput is the self-service profile update. Empty fields are left
// unchanged. The password fields exist only to be rejected.
type ProfileInput struct {
	Name            string `json:"name" validate:"omitempty,max=100"`
	Email           string `json:"email" validate:"omitempty,email"`
	Photo           string `json:"photo" validate:"omitempty,max=255"`
	Password        string `json:"password" validate:"-"`
	PasswordConfirm string `json:"passwordConfirm" validate:"-"`
}

// emailInput validates a forgot-password address.
type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

// AuthResult is returned by every operation that issues a session.
type AuthResult struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// ServiceDeps holds the collaborators of Service. Events and Now are
// optional.
type ServiceDeps struct {
	Users    UserRepository
	Hasher   *PasswordHasher
	Tokens   *TokenCodec
	Mailer   Mailer
	Events   EventRecorder
	Logger   *slog.Logger
	ResetTTL time.Duration
	Now      func() time.Time
}

// Service orchestrates signup, login, session resolution and the password
// lifecycle.
type Service struct {
	users    UserRepository
	hasher   *PasswordHasher
	tokens   *TokenCodec
	mailer   Mailer
	events   EventRecorder
	logger   *slog.Logger
	resetTTL time.Duration
	now      func() time.Time
	validate *Validator

	timingOnce sync.Once
	timingHash string
}

// NewService validates deps and builds a Service.
//
// Parameters:
//   - deps: Users, Hasher, Tokens and Mailer are required. Events may be
//     nil (no events are recorded), Logger defaults to slog.Default(),
//     ResetTTL defaults to DefaultResetTTL and Now to time.Now.
//
// Returns:
//   - *Service: Ready for use from multiple goroutines
//   - error: If a required collaborator is missing or the validator fails to build
func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("auth service: user repository is required")
	case deps.Hasher == nil:
		return nil, errors.New("auth service: password hasher is required")
	case deps.Tokens == nil:
		return nil, errors.New("auth service: token codec is required")
	case deps.Mailer == nil:
		return nil, errors.New("auth service: mailer is required")
	}

	v, err := NewValidator()
	if err != nil {
		return nil, err
	}

	s := &Service{
		users:    deps.Users,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		mailer:   deps.Mailer,
		events:   deps.Events,
		logger:   deps.Logger,
		resetTTL: deps.ResetTTL,
		now:      deps.Now,
		validate: v,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Validator exposes the record validator so the HTTP layer can reuse its
// messages.
func (s *Service) Validator() *Validator {
	return s.validate
}

// Signup creates a user with the default role and issues a session.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	if err := s.validate.Struct(in); err != nil {
		s.record(ctx, Event{Type: EventSignup, Email: in.Email, Outcome: OutcomeFailure,
			Details: map[string]any{"reason": "validation"}})
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Name:         in.Name,
		Email:        in.Email,
		Photo:        DefaultPhoto,
		Role:         RoleUser,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			s.record(ctx, Event{Type: EventSignup, Email: in.Email, Outcome: OutcomeFailure,
				Details: map[string]any{"reason": "email_exists"}})
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	s.record(ctx, userEvent(EventSignup, user, OutcomeSuccess))
	return s.issue(user)
}

// Login verifies email and password. Unknown emails, inactive accounts and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.FindByEmail(ctx, email, ReadOptions{WithPassword: true})
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("finding user: %w", err)
		}
		s.hasher.Verify(password, s.timingDigest())
		s.record(ctx, Event{Type: EventLogin, Email: email, Outcome: OutcomeFailure,
			Details: map[string]any{"reason": "unknown_email"}})
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.record(ctx, Event{Type: EventLogin, UserID: user.ID, Email: email, Role: user.Role,
			Outcome: OutcomeFailure, Details: map[string]any{"reason": "wrong_password"}})
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	s.record(ctx, userEvent(EventLogin, user, OutcomeSuccess))
	return s.issue(user)
}

// rehash upgrades a digest made with outdated parameters. Failure is
// logged and does not affect the login.
func (s *Service) rehash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	if err := s.users.Save(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "saving rehashed password failed", "user_id", user.ID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID)
}

// Logout records the event. Sessions are stateless: the caller clears the
// cookie and any copy of the token held elsewhere stays valid until exp.
// user may be nil when no session accompanied the request.
func (s *Service) Logout(ctx context.Context, user *User) {
	if user == nil {
		s.record(ctx, Event{Type: EventLogout, Outcome: OutcomeSuccess})
		return
	}
	s.record(ctx, userEvent(EventLogout, user, OutcomeSuccess))
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, *Session, error) {
	if token == "" {
		return nil, nil, ErrNotLoggedIn
	}

	sess, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindByID(ctx, sess.SubjectID, ReadOptions{})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrUserGone
		}
		return nil, nil, fmt.Errorf("loading session user: %w", err)
	}

	if user.ChangedPasswordAfter(sess.IssuedAt) {
		return nil, nil, ErrPasswordChanged
	}

	return user, sess, nil
}

// ForgotPassword issues a reset credential for email and mails a link
// built from resetURLBase. An unknown address returns nil without sending
// anything, so the response never reveals which emails are registered.
func (s *Service) ForgotPassword(ctx context.Context, email, resetURLBase string) error {
	in := emailInput{Email: NormalizeEmail(email)}
	if err := s.validate.Struct(in); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, in.Email, ReadOptions{})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.record(ctx, Event{Type: EventPasswordForgot, Email: in.Email, Outcome: OutcomeFailure,
				Details: map[string]any{"reason": "unknown_email"}})
			return nil
		}
		return fmt.Errorf("finding user: %w", err)
	}

	cred, err := GenerateResetToken(s.now(), s.resetTTL)
	if err != nil {
		return err
	}
	user.SetPasswordReset(cred.Hash, cred.ExpiresAt)
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving reset token: %w", err)
	}

	msg := Message{
		To:      user.Email,
		Subject: ResetEmailSubject(s.resetTTL),
		Body:    resetEmailBody(strings.TrimRight(resetURLBase, "/") + "/" + cred.Cleartext),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "sending reset email failed", "user_id", user.ID, "error", err)

		// Detached: the request context may be what made the send fail.
		user.ClearPasswordReset()
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		saveErr := s.users.Save(rollbackCtx, user)
		cancel()
		if saveErr != nil {
			s.logger.ErrorContext(ctx, "clearing reset token failed", "user_id", user.ID, "error", saveErr)
		}
		s.record(ctx, Event{Type: EventPasswordForgot, UserID: user.ID, Email: user.Email, Role: user.Role,
			Outcome: OutcomeFailure, Details: map[string]any{"reason": "email_delivery"}})
		return fmt.Errorf("%w: %w", ErrEmailDelivery, err)
	}

	s.record(ctx, userEvent(EventPasswordForgot, user, OutcomeSuccess))
	return nil
}

func resetEmailBody(url string) string {
	return "Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: " +
		url + ".\nIf you didn't forget your password, please ignore this email!"
}

// ResetPassword redeems a reset credential and logs the user in. A
// validation failure leaves the credential usable.
func (s *Service) ResetPassword(ctx context.Context, cleartext string, in PasswordInput) (*AuthResult, error) {
	if cleartext == "" {
		return nil, ErrResetTokenInvalid
	}

	now := s.now()
	user, err := s.users.FindByResetToken(ctx, HashToken(cleartext), now)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.record(ctx, Event{Type: EventPasswordReset, Outcome: OutcomeFailure,
				Details: map[string]any{"reason": "invalid_token"}})
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("finding reset token: %w", err)
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	if err := s.setPassword(ctx, user, in.Password, now); err != nil {
		return nil, err
	}

	s.record(ctx, userEvent(EventPasswordReset, user, OutcomeSuccess))
	return s.issue(user)
}

// UpdatePassword changes the password of a logged-in user after checking
// the current one, and issues a fresh session.
func (s *Service) UpdatePassword(ctx context.Context, userID, current string, in PasswordInput) (*AuthResult, error) {
	user, err := s.users.FindByID(ctx, userID, ReadOptions{WithPassword: true})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserGone
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	if current == "" || !s.hasher.Verify(current, user.PasswordHash) {
		s.record(ctx, Event{Type: EventPasswordUpdated, UserID: user.ID, Email: user.Email, Role: user.Role,
			Outcome: OutcomeFailure, Details: map[string]any{"reason": "wrong_current_password"}})
		return nil, ErrCurrentPasswordWrong
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	if err := s.setPassword(ctx, user, in.Password, s.now()); err != nil {
		return nil, err
	}

	s.record(ctx, userEvent(EventPasswordUpdated, user, OutcomeSuccess))
	return s.issue(user)
}

// setPassword hashes password and writes the hash, passwordChangedAt and
// the cleared reset pair in one Save.
func (s *Service) setPassword(ctx context.Context, user *User, password string, now time.Time) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.SetPassword(hash, now)
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving password: %w", err)
	}
	return nil
}

// Me returns the current user.
func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	user, err := s.users.FindByID(ctx, userID, ReadOptions{})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserGone
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes name, email or photo. Password fields are refused.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return nil, ErrPasswordRouteMisuse
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Photo = strings.TrimSpace(in.Photo)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if in.Name != "" && in.Name != user.Name {
		user.Name = in.Name
		changed = append(changed, "name")
	}
	if in.Email != "" && in.Email != user.Email {
		user.Email = in.Email
		changed = append(changed, "email")
	}
	if in.Photo != "" && in.Photo != user.Photo {
		user.Photo = in.Photo
		changed = append(changed, "photo")
	}

	if len(changed) > 0 {
		if err := s.users.Save(ctx, user); err != nil {
			if errors.Is(err, ErrEmailExists) {
				return nil, ErrEmailExists
			}
			return nil, fmt.Errorf("saving profile: %w", err)
		}
	}

	ev := userEvent(EventProfileUpdated, user, OutcomeSuccess)
	ev.Details = map[string]any{"fields": changed}
	s.record(ctx, ev)
	return user, nil
}

// Deactivate soft-deletes the account. It disappears from default reads,
// so existing sessions stop resolving.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}

	user.Active = false
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}

	s.logger.InfoContext(ctx, "account deactivated", "user_id", user.ID)
	s.record(ctx, userEvent(EventAccountDeactivated, user, OutcomeSuccess))
	return nil
}

// SetRole changes another user's role. Only admins may call it and no one
// may change their own role.
func (s *Service) SetRole(ctx context.Context, actor *User, userID, role string) (*User, error) {
	if err := RequireRole(actor, RoleAdmin); err != nil {
		return nil, err
	}
	if actor.ID == userID {
		return nil, ErrSelfModification
	}

	newRole, err := ParseRole(role)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID, ReadOptions{IncludeInactive: true})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	previous := user.Role
	user.Role = newRole
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("saving role: %w", err)
	}

	s.logger.InfoContext(ctx, "role changed",
		"user_id", user.ID, "from", string(previous), "to", string(newRole), "by", actor.ID)
	ev := userEvent(EventRoleChanged, user, OutcomeSuccess)
	ev.Details = map[string]any{"from": string(previous), "by": actor.ID}
	s.record(ctx, ev)
	return user, nil
}

// ListUsers returns accounts matching filter.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// GetUser returns any account by ID, including deactivated ones.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.users.FindByID(ctx, id, ReadOptions{IncludeInactive: true})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return user, nil
}

func (s *Service) issue(user *User) (*AuthResult, error) {
	token, exp, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	user.PasswordHash = ""
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// timingDigest returns a digest of timingPassword under the current
// parameters, computed on first use.
func (s *Service) timingDigest() string {
	s.timingOnce.Do(func() {
		hash, err := s.hasher.Hash(timingPassword)
		if err != nil {
			s.logger.Warn("computing timing digest failed", "error", err)
			return
		}
		s.timingHash = hash
	})
	return s.timingHash
}

func (s *Service) record(ctx context.Context, ev Event) {
	if s.events == nil {
		return
	}
	info := ClientInfoFrom(ctx)
	ev.ClientIP = info.IP
	ev.UserAgent = info.UserAgent
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	s.events.Record(ev)
}

func userEvent(t EventType, u *User, outcome string) Event {
	return Event{Type: t, UserID: u.ID, Email: u.Email, Role: u.Role, Outcome: outcome}
}
