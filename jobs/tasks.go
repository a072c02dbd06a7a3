package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueNotifications is the queue carrying outbound notification events.
	QueueNotifications = "notifications"
	// TaskTypeNotification is the task type for delivering a notification event.
	TaskTypeNotification = "notify:event"
)

// NotificationPayload carries a single domain event to the webhook worker.
type NotificationPayload struct {
	Kind   string            `json:"kind"`
	UserID int64             `json:"user_id"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NewNotificationTask constructs an Asynq task for the payload.
func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotification, data), nil
}
