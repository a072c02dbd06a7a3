package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/skillforge/skillforge/internal/jobs"
)

// Webhook channels. Each event kind maps to exactly one channel; a channel
// with no configured URL drops its events after marking them skipped.
const (
	ChannelGeneral = "general"
	ChannelAdmin   = "admin"
	ChannelPro     = "pro"
)

// WebhookURLs holds the per-channel destination endpoints.
type WebhookURLs struct {
	General string
	Admin   string
	Pro     string
}

// Notifier delivers notification events to chat webhooks.
type Notifier struct {
	urls    WebhookURLs
	client  *http.Client
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewNotifier constructs a webhook notifier. A nil httpClient falls back to a
// client with a 10s timeout.
func NewNotifier(urls WebhookURLs, httpClient *http.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Notifier{urls: urls, client: httpClient, logger: logger, metrics: metrics}
}

type webhookEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []webhookEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type webhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []webhookEmbed `json:"embeds,omitempty"`
}

// Handle processes TaskTypeNotification tasks. Malformed payloads are dropped
// without retry; delivery errors are returned so the queue retries them.
func (n *Notifier) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := n.metrics.Track("notification_webhook")
	var payload NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		n.logger.Error("notification payload", slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}
	return tracker.End(n.deliver(ctx, payload))
}

func (n *Notifier) deliver(ctx context.Context, payload NotificationPayload) error {
	channel := channelFor(payload.Kind)
	url := n.urlFor(channel)
	if url == "" {
		n.logger.Warn("webhook channel not configured",
			slog.String("channel", channel),
			slog.String("kind", payload.Kind))
		n.metrics.AddDelivery(channel, "skipped")
		return nil
	}

	body, err := json.Marshal(buildMessage(payload))
	if err != nil {
		return asynq.SkipRetry
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.metrics.AddDelivery(channel, "failure")
		return fmt.Errorf("post webhook %s: %w", channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.metrics.AddDelivery(channel, "failure")
		return fmt.Errorf("post webhook %s: status %d", channel, resp.StatusCode)
	}
	n.metrics.AddDelivery(channel, "success")
	return nil
}

func (n *Notifier) urlFor(channel string) string {
	switch channel {
	case ChannelAdmin:
		return n.urls.Admin
	case ChannelPro:
		return n.urls.Pro
	default:
		return n.urls.General
	}
}

func channelFor(kind string) string {
	switch kind {
	case "role_granted", "role_revoked", "user_deactivated":
		return ChannelAdmin
	case "pro_access_granted":
		return ChannelPro
	default:
		return ChannelGeneral
	}
}

func buildMessage(payload NotificationPayload) webhookMessage {
	embed := webhookEmbed{
		Color:     0x3498db,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	user := strconv.FormatInt(payload.UserID, 10)

	switch payload.Kind {
	case "level_up":
		embed.Title = "Level Up"
		embed.Description = "A user reached a new level"
		embed.Fields = []webhookEmbedField{
			{Name: "User", Value: user, Inline: true},
			{Name: "Level", Value: payload.Fields["level"], Inline: true},
			{Name: "Total XP", Value: payload.Fields["xp"], Inline: true},
		}
	case "badge_earned":
		embed.Title = "Badge Earned"
		embed.Description = "A user unlocked a new badge"
		embed.Color = 0xf39c12
		embed.Fields = []webhookEmbedField{
			{Name: "User", Value: user, Inline: true},
			{Name: "Badge", Value: payload.Fields["badge"], Inline: true},
			{Name: "Rarity", Value: payload.Fields["rarity"], Inline: true},
		}
	case "role_granted":
		embed.Title = "Role Granted"
		embed.Description = "A user's roles were changed"
		embed.Color = 0xffa500
		embed.Fields = []webhookEmbedField{
			{Name: "User", Value: user, Inline: true},
			{Name: "Role", Value: payload.Fields["role"], Inline: true},
			{Name: "Granted By", Value: payload.Fields["granted_by"], Inline: true},
		}
	case "role_revoked":
		embed.Title = "Role Revoked"
		embed.Description = "A user's roles were changed"
		embed.Color = 0x95a5a6
		embed.Fields = []webhookEmbedField{
			{Name: "User", Value: user, Inline: true},
			{Name: "Role", Value: payload.Fields["role"], Inline: true},
			{Name: "Removed By", Value: payload.Fields["removed_by"], Inline: true},
		}
	case "pro_access_granted":
		embed.Title = "PRO Access Activated"
		embed.Description = "A user gained PRO access"
		embed.Color = 0x9b59b6
		embed.Fields = []webhookEmbedField{
			{Name: "User", Value: user, Inline: true},
			{Name: "Role", Value: payload.Fields["role"], Inline: true},
		}
	case "user_deactivated":
		embed.Title = "User Deactivated"
		embed.Description = "A user account was deactivated"
		embed.Color = 0xe74c3c
		embed.Fields = []webhookEmbedField{
			{Name: "User", Value: user, Inline: true},
			{Name: "Deactivated By", Value: payload.Fields["acted_by"], Inline: true},
			{Name: "Reason", Value: payload.Fields["reason"]},
		}
	default:
		embed.Title = "Event"
		embed.Description = payload.Kind
		embed.Fields = append(embed.Fields, webhookEmbedField{Name: "User", Value: user, Inline: true})
		for _, k := range sortedKeys(payload.Fields) {
			embed.Fields = append(embed.Fields, webhookEmbedField{Name: k, Value: payload.Fields[k], Inline: true})
		}
	}

	// Webhook APIs reject embed fields with empty values.
	kept := embed.Fields[:0]
	for _, f := range embed.Fields {
		if f.Value != "" {
			kept = append(kept, f)
		}
	}
	embed.Fields = kept
	return webhookMessage{Embeds: []webhookEmbed{embed}}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
