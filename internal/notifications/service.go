package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"volo/internal/config"
)

const userAgent = "Volo-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventSessionStarted   Event = "session_started"
	EventSessionFinalized Event = "session_finalized"
	EventDeliveryFallback Event = "delivery_fallback"
	EventWorkerCrashed    Event = "worker_crashed"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventSessionStarted:
		return n.toggles.SessionStarted
	case EventSessionFinalized:
		return n.toggles.SessionFinalized
	case EventDeliveryFallback:
		return n.toggles.DeliveryFallback
	case EventWorkerCrashed:
		return n.toggles.WorkerCrashed
	case EventError:
		return n.toggles.Errors
	case EventTest:
		return true
	default:
		return false
	}
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSessionStarted:
		return message{
			title: "Volo - Recording Started",
			body:  fmt.Sprintf("🎙️ Recording session %s in guild %s", payload.str("sessionID"), payload.str("guildID")),
			tags:  []string{"volo", "recording", "started"},
		}, true
	case EventSessionFinalized:
		body := fmt.Sprintf("Session %s finalized with %d speaker tracks", payload.str("sessionID"), payload.num("tracks"))
		if exportErr := payload.str("exportError"); exportErr != "" {
			body += "\nAudio export failed: " + exportErr
		}
		return message{
			title: "Volo - Session Finalized",
			body:  body,
			tags:  []string{"volo", "session", "finalized"},
		}, true
	case EventDeliveryFallback:
		return message{
			title:    "Volo - Delivery Incomplete",
			body:     fmt.Sprintf("Session %s: %d uploads failed (%s)\nFiles remain under %s", payload.str("sessionID"), payload.num("failed"), payload.str("outcome"), payload.str("rootDir")),
			tags:     []string{"volo", "delivery", "warning"},
			priority: "high",
		}, true
	case EventWorkerCrashed:
		return message{
			title:    "Volo - Transcriber Crashed",
			body:     fmt.Sprintf("Transcriber for guild %s crashed (attempt %d): %s", payload.str("guildID"), payload.num("attempt"), payload.str("error")),
			tags:     []string{"volo", "transcriber", "crash"},
			priority: "high",
		}, true
	case EventError:
		ctxLabel := payload.str("context")
		if ctxLabel == "" {
			ctxLabel = "volo"
		}
		return message{
			title:    "Volo - Error",
			body:     fmt.Sprintf("❌ Error with %s: %s", ctxLabel, payload.str("error")),
			tags:     []string{"volo", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Volo - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"volo", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) str(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) num(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
