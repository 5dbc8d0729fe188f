// Package mqtt publishes authentication events to an MQTT broker.
//
// Every auth outcome (signup, login, password reset, role change) can be
// fanned out to natours/auth/event/{type} so other services react without
// polling the audit log. The client also keeps a retained status message on
// natours/system/status, with a Last Will so subscribers see the service go
// offline on a crash.
//
// # Security Considerations
//
//   - Enable TLS (broker.tls) outside local development
//   - Event payloads never carry passwords, session tokens or reset tokens
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(mqtt.Topics{}.AuthEvent("login"), payload, client.QoS(), false)
package mqtt
