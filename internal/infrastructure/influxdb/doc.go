// Package influxdb records authentication outcomes as time-series points.
//
// Each signup, login, reset and role change becomes one point in the
// auth_events measurement, tagged by type, outcome and role. Dashboards
// use it to spot credential-stuffing bursts (failed logins) or reset storms
// without querying the audit log.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent("login", "success", "user", time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched; batch failures are delivered through SetOnError.
package influxdb
