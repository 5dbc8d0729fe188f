package auth

import (
	"context"
	"time"
)

// EventType names an orchestrator outcome.
type EventType string

// Event types. Each operation emits exactly one per call.
const (
	EventSignup             EventType = "signup"
	EventLogin              EventType = "login"
	EventLogout             EventType = "logout"
	EventPasswordForgot     EventType = "password_forgot"
	EventPasswordReset      EventType = "password_reset"
	EventPasswordUpdated    EventType = "password_updated"
	EventRoleChanged        EventType = "role_changed"
	EventProfileUpdated     EventType = "profile_updated"
	EventAccountDeactivated EventType = "account_deactivated"
)

// Event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event describes one authentication outcome for audit and telemetry.
type Event struct {
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	Role      Role           `json:"role,omitempty"`
	Outcome   string         `json:"outcome"`
	ClientIP  string         `json:"client_ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	At        time.Time      `json:"at"`
	Details   map[string]any `json:"details,omitempty"`
}

// EventRecorder accepts events. Record must not block the caller.
type EventRecorder interface {
	Record(Event)
}

// ClientInfo is request metadata attached to events.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type clientInfoKey struct{}

// WithClientInfo returns a context carrying info for event attribution.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientInfoFrom returns the ClientInfo stored in ctx, or the zero value.
func ClientInfoFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(ClientInfo) //nolint:errcheck // type assertion, not error
	return info
}
