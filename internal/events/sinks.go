package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urielparavi/natours-auth/internal/audit"
	"github.com/urielparavi/natours-auth/internal/auth"
	"github.com/urielparavi/natours-auth/internal/infrastructure/mqtt"
)

// AuditSink persists events to the audit log.
type AuditSink struct {
	repo audit.Repository
}

// NewAuditSink wraps an audit repository.
func NewAuditSink(repo audit.Repository) *AuditSink {
	return &AuditSink{repo: repo}
}

// Name implements Sink.
func (s *AuditSink) Name() string { return "audit" }

// Handle implements Sink.
func (s *AuditSink) Handle(ctx context.Context, ev auth.Event) error {
	details := make(map[string]any, len(ev.Details)+2)
	for k, v := range ev.Details {
		details[k] = v
	}
	if ev.Role != "" {
		details["role"] = string(ev.Role)
	}
	if ev.UserAgent != "" {
		details["user_agent"] = ev.UserAgent
	}

	entry := &audit.AuditLog{
		Action:    string(ev.Type),
		UserID:    ev.UserID,
		Email:     ev.Email,
		ClientIP:  ev.ClientIP,
		Outcome:   ev.Outcome,
		Details:   details,
		CreatedAt: ev.At,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// Publisher is the subset of the MQTT client used by MQTTSink.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes events on natours/auth/event/{type}.
type MQTTSink struct {
	pub Publisher
	qos byte
}

// NewMQTTSink creates a sink publishing at the given QoS.
func NewMQTTSink(pub Publisher, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, qos: qos}
}

// eventMessage is the MQTT payload. Email and user agent stay out of the
// broker.
type eventMessage struct {
	Type      string         `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Role      string         `json:"role,omitempty"`
	Outcome   string         `json:"outcome"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Handle implements Sink.
func (s *MQTTSink) Handle(_ context.Context, ev auth.Event) error {
	payload, err := json.Marshal(eventMessage{
		Type:      string(ev.Type),
		UserID:    ev.UserID,
		Role:      string(ev.Role),
		Outcome:   ev.Outcome,
		Details:   ev.Details,
		Timestamp: ev.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if err := s.pub.Publish(mqtt.Topics{}.AuthEvent(string(ev.Type)), payload, s.qos, false); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// PointWriter is the subset of the InfluxDB client used by MetricsSink.
type PointWriter interface {
	WriteAuthEvent(eventType, outcome, role string, at time.Time)
}

// MetricsSink counts events by type, outcome and role.
type MetricsSink struct {
	w PointWriter
}

// NewMetricsSink wraps a point writer.
func NewMetricsSink(w PointWriter) *MetricsSink {
	return &MetricsSink{w: w}
}

// Name implements Sink.
func (s *MetricsSink) Name() string { return "metrics" }

// Handle implements Sink. Writes are batched by the client and never fail
// synchronously.
func (s *MetricsSink) Handle(_ context.Context, ev auth.Event) error {
	s.w.WriteAuthEvent(string(ev.Type), ev.Outcome, string(ev.Role), ev.At)
	return nil
}
