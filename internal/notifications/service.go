package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"habla/internal/config"
)

const userAgent = "habla/0.1"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyDownloadStarted(ctx context.Context, title string) error
	NotifyDownloadCompleted(ctx context.Context, title, outputPath string) error
	NotifyDownloadFailed(ctx context.Context, title string, err error) error
	NotifyAdvisory(ctx context.Context, title, advisory string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when
// configured. When no ntfy topic is configured, a noop implementation
// is returned.
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
}

func (n *ntfyService) NotifyDownloadStarted(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Habla - Download Started",
		message: fmt.Sprintf("Started downloading: %s", title),
		tags:    []string{"habla", "download", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadCompleted(ctx context.Context, title, outputPath string) error {
	title = strings.TrimSpace(title)
	outputPath = strings.TrimSpace(outputPath)
	message := fmt.Sprintf("Ready to watch: %s", title)
	if outputPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputPath)
	}
	data := payload{
		title:    "Habla - Complete",
		message:  message,
		tags:     []string{"habla", "download", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadFailed(ctx context.Context, title string, err error) error {
	var builder strings.Builder
	builder.WriteString("Download failed")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(": ")
		builder.WriteString(title)
	}
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}

	data := payload{
		title:    "Habla - Error",
		message:  builder.String(),
		tags:     []string{"habla", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAdvisory(ctx context.Context, title, advisory string) error {
	title = strings.TrimSpace(title)
	advisory = strings.TrimSpace(advisory)
	data := payload{
		title:   "Habla - Notice",
		message: fmt.Sprintf("%s: %s", title, advisory),
		tags:    []string{"habla", "advisory"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Habla - Test",
		message:  "Notification system test",
		tags:     []string{"habla", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyDownloadStarted(context.Context, string) error          { return nil }
func (noopService) NotifyDownloadCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyDownloadFailed(context.Context, string, error) error    { return nil }
func (noopService) NotifyAdvisory(context.Context, string, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
