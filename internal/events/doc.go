// Package events fans authentication events out to their consumers.
//
// The auth service records an event for every operation outcome. The
// Dispatcher queues events on a bounded channel and a single goroutine
// hands each one to every Sink in turn, so a slow broker or database
// never adds latency to a request. When the queue is full the event is
// dropped with a warning: delivery is best-effort.
//
// Sinks:
//   - AuditSink writes the audit_logs table
//   - MQTTSink publishes to natours/auth/event/{type}
//   - MetricsSink counts events in InfluxDB
package events
