package notify

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/skillforge/skillforge/jobs"
)

// AsynqSink enqueues events onto the notification queue. Enqueue failures
// are logged and swallowed; the triggering operation never sees them.
type AsynqSink struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewAsynqSink constructs a sink over the given Asynq client.
func NewAsynqSink(client *asynq.Client, logger *slog.Logger) *AsynqSink {
	return &AsynqSink{client: client, logger: logger}
}

// Publish implements Sink.
func (s *AsynqSink) Publish(ctx context.Context, ev Event) {
	if s == nil || s.client == nil {
		return
	}
	task, err := jobs.NewNotificationTask(jobs.NotificationPayload{
		Kind:   ev.Kind,
		UserID: ev.UserID,
		Fields: ev.Fields,
	})
	if err != nil {
		s.logger.Error("build notification task", slog.String("kind", ev.Kind), slog.Any("error", err))
		return
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueNotifications), asynq.MaxRetry(5)); err != nil {
		s.logger.Error("enqueue notification", slog.String("kind", ev.Kind), slog.Any("error", err))
	}
}
