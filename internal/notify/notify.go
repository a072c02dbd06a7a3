// Package notify publishes fire-and-forget events to the chat webhook
// pipeline. Delivery runs in the background worker; publishing never blocks
// or fails the triggering operation.
package notify

import "context"

// Event kinds understood by the delivery worker.
const (
	KindRoleGranted      = "role_granted"
	KindRoleRevoked      = "role_revoked"
	KindLevelUp          = "level_up"
	KindBadgeEarned      = "badge_earned"
	KindUserDeactivated  = "user_deactivated"
	KindProAccessGranted = "pro_access_granted"
)

// Event is a notification-worthy occurrence. Fields carry display payload
// for the webhook embed.
type Event struct {
	Kind   string            `json:"kind"`
	UserID int64             `json:"user_id"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Sink accepts events for asynchronous delivery.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// NopSink discards all events.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(context.Context, Event) {}
