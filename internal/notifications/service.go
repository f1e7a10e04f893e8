package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"contentpipe/internal/config"
)

const userAgent = "contentpipe/1.0"

// Event names a notification type.
type Event string

const (
	EventPublished  Event = "published"
	EventBudgetHalt Event = "budget_halt"
	EventRunSummary Event = "run_summary"
	EventError      Event = "error"
	EventTest       Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline components.
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
		enabled: map[Event]bool{
			EventPublished:  cfg.Notifications.Publish,
			EventBudgetHalt: cfg.Notifications.BudgetHalt,
			EventRunSummary: cfg.Notifications.RunSummary,
			EventError:      cfg.Notifications.Errors,
			EventTest:       true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	if !n.enabled[event] {
		return nil
	}
	data, ok := format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func format(event Event, fields Payload) (payload, bool) {
	switch event {
	case EventPublished:
		title := str(fields, "title")
		message := fmt.Sprintf("📝 Published: %s", title)
		if kind := str(fields, "contentType"); kind != "" {
			message += fmt.Sprintf(" (%s)", kind)
		}
		if path := str(fields, "path"); path != "" {
			message += "\nFile: " + path
		}
		return payload{
			title:   "Content Pipeline - Published",
			message: message,
			tags:    []string{"contentpipe", "publish", "completed"},
		}, true
	case EventBudgetHalt:
		return payload{
			title:    "Content Pipeline - Budget Halt",
			message:  fmt.Sprintf("💸 Daily budget reached: $%.2f of $%.2f spent. Transform halted.", num(fields, "spent"), num(fields, "budget")),
			tags:     []string{"contentpipe", "budget", "halt"},
			priority: "high",
		}, true
	case EventRunSummary:
		label := "Run"
		if stage := str(fields, "stage"); stage != "" {
			label = stage
		}
		message := fmt.Sprintf("✅ %s complete: %d processed, %d failed", label, int(num(fields, "processed")), int(num(fields, "failed")))
		if d, ok := fields["duration"].(time.Duration); ok && d > 0 {
			message += fmt.Sprintf(" in %s", d.Round(time.Second))
		}
		return payload{
			title:   "Content Pipeline - Run Summary",
			message: message,
			tags:    []string{"contentpipe", "run", "summary"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if ctx := str(fields, "context"); ctx != "" {
			builder.WriteString(" with ")
			builder.WriteString(ctx)
		}
		builder.WriteString(": ")
		builder.WriteString(str(fields, "error"))
		return payload{
			title:    "Content Pipeline - Error",
			message:  builder.String(),
			tags:     []string{"contentpipe", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Content Pipeline - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"contentpipe", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func str(fields Payload, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func num(fields Payload, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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
