package mqtt

import "fmt"

// Topic prefixes.
const (
	TopicPrefixAuth   = "natours/auth"
	TopicPrefixSystem = "natours/system"
)

// Topics provides builders for the service's MQTT topics.
//
//	topic := mqtt.Topics{}.AuthEvent("login")
//	// Returns: "natours/auth/event/login"
type Topics struct{}

// AuthEvent returns the topic an auth event of the given type is published on.
//
// Example: natours/auth/event/password_reset
func (Topics) AuthEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixAuth, eventType)
}

// AllAuthEvents is the subscription pattern for every auth event.
//
// Pattern: natours/auth/event/+
func (Topics) AllAuthEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixAuth)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: natours/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
