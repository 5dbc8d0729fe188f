package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAuthEvents holds one point per authentication outcome.
const MeasurementAuthEvents = "auth_events"

// WriteAuthEvent records one authentication outcome.
//
// Tags stay low-cardinality (event type, outcome, role); the user never
// becomes a tag. The count field lets dashboards sum over any window.
//
// Example:
//
//	client.WriteAuthEvent("login", "failure", "", time.Now())
func (c *Client) WriteAuthEvent(eventType, outcome, role string, at time.Time) {
	if c.writeAPI == nil || c.closed.Load() {
		return
	}
	c.writeAPI.WritePoint(authEventPoint(eventType, outcome, role, at))
}

func authEventPoint(eventType, outcome, role string, at time.Time) *write.Point {
	tags := map[string]string{
		"type":    eventType,
		"outcome": outcome,
	}
	if role != "" {
		tags["role"] = role
	}
	return write.NewPoint(MeasurementAuthEvents, tags, map[string]any{"count": 1}, at)
}
