package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestChannelRouting(t *testing.T) {
	cases := map[string]string{
		"level_up":           ChannelGeneral,
		"badge_earned":       ChannelGeneral,
		"role_granted":       ChannelAdmin,
		"role_revoked":       ChannelAdmin,
		"user_deactivated":   ChannelAdmin,
		"pro_access_granted": ChannelPro,
		"something_else":     ChannelGeneral,
	}
	for kind, channel := range cases {
		require.Equal(t, channel, channelFor(kind), "kind %s", kind)
	}
}

func TestBuildMessageDropsEmptyFields(t *testing.T) {
	msg := buildMessage(NotificationPayload{
		Kind:   "badge_earned",
		UserID: 7,
		Fields: map[string]string{"badge": "Quiz Champion"},
	})

	require.Len(t, msg.Embeds, 1)
	embed := msg.Embeds[0]
	require.Equal(t, "Badge Earned", embed.Title)
	for _, f := range embed.Fields {
		require.NotEmpty(t, f.Value)
	}
}

func TestHandleDeliversToWebhook(t *testing.T) {
	var received atomic.Int32
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewNotifier(WebhookURLs{General: server.URL}, server.Client(), slog.Default(), nil)

	task, err := NewNotificationTask(NotificationPayload{
		Kind:   "level_up",
		UserID: 7,
		Fields: map[string]string{"level": "5", "xp": "1600"},
	})
	require.NoError(t, err)

	require.NoError(t, n.Handle(context.Background(), task))
	require.EqualValues(t, 1, received.Load())

	var msg webhookMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	require.Len(t, msg.Embeds, 1)
	require.Equal(t, "Level Up", msg.Embeds[0].Title)
}

func TestHandleReturnsDeliveryErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewNotifier(WebhookURLs{Admin: server.URL}, server.Client(), slog.Default(), nil)

	task, err := NewNotificationTask(NotificationPayload{Kind: "role_granted", UserID: 1})
	require.NoError(t, err)

	require.Error(t, n.Handle(context.Background(), task), "non-2xx responses must surface for retry")
}

func TestHandleSkipsUnconfiguredChannel(t *testing.T) {
	n := NewNotifier(WebhookURLs{}, nil, slog.Default(), nil)

	task, err := NewNotificationTask(NotificationPayload{Kind: "level_up", UserID: 1})
	require.NoError(t, err)

	require.NoError(t, n.Handle(context.Background(), task), "missing webhook config drops the event")
}

func TestHandleDropsMalformedPayload(t *testing.T) {
	n := NewNotifier(WebhookURLs{}, nil, slog.Default(), nil)

	err := n.Handle(context.Background(), asynq.NewTask(TaskTypeNotification, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
