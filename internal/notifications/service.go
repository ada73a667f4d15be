package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"courier/internal/config"
)

const userAgent = "Courier-Go/0.1.0"

// Service defines the notification surface exposed to the upload pipeline.
type Service interface {
	NotifyUploadCompleted(ctx context.Context, name string, size int64, url string) error
	NotifyUploadFailed(ctx context.Context, name, reason string) error
	NotifyUploadCancelled(ctx context.Context, name string) error
	NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
	NotifyFilesRejected(ctx context.Context, count int, reasons []string) error
	NotifyHistoryCleared(ctx context.Context) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
// Per-event gates in the config silence individual notification kinds.
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
		gates:    cfg.Notifications,
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
	gates    config.Notifications
}

func (n *ntfyService) NotifyUploadCompleted(ctx context.Context, name string, size int64, url string) error {
	if !n.gates.Uploads {
		return nil
	}
	name = strings.TrimSpace(name)
	message := fmt.Sprintf("Uploaded: %s (%s)", name, humanize.IBytes(uint64(max(size, 0))))
	if url = strings.TrimSpace(url); url != "" {
		message = fmt.Sprintf("%s\n%s", message, url)
	}
	data := payload{
		title:   "Courier - Upload Complete",
		message: message,
		tags:    []string{"courier", "upload", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadFailed(ctx context.Context, name, reason string) error {
	if !n.gates.Errors {
		return nil
	}
	name = strings.TrimSpace(name)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	data := payload{
		title:    "Courier - Upload Failed",
		message:  fmt.Sprintf("Failed: %s\n%s", name, reason),
		tags:     []string{"courier", "upload", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadCancelled(ctx context.Context, name string) error {
	if !n.gates.Uploads {
		return nil
	}
	data := payload{
		title:   "Courier - Upload Cancelled",
		message: fmt.Sprintf("Cancelled: %s", strings.TrimSpace(name)),
		tags:    []string{"courier", "upload", "cancelled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	if !n.gates.Batches {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Courier - Batch Complete"
		message = fmt.Sprintf("Batch complete: %d files uploaded in %s", succeeded, durationText)
	} else {
		title = "Courier - Batch Complete (with errors)"
		message = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", succeeded, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"courier", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFilesRejected(ctx context.Context, count int, reasons []string) error {
	if !n.gates.Rejections {
		return nil
	}
	message := fmt.Sprintf("%d file(s) rejected before upload", count)
	if len(reasons) > 0 {
		message = fmt.Sprintf("%s:\n%s", message, strings.Join(reasons, "\n"))
	}
	data := payload{
		title:   "Courier - Files Rejected",
		message: message,
		tags:    []string{"courier", "validation", "rejected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyHistoryCleared(ctx context.Context) error {
	if !n.gates.Uploads {
		return nil
	}
	data := payload{
		title:   "Courier - History Cleared",
		message: "Upload history was cleared",
		tags:    []string{"courier", "history"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Courier - Test",
		message:  "Notification system test",
		tags:     []string{"courier", "test"},
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

func (noopService) NotifyUploadCompleted(context.Context, string, int64, string) error  { return nil }
func (noopService) NotifyUploadFailed(context.Context, string, string) error            { return nil }
func (noopService) NotifyUploadCancelled(context.Context, string) error                 { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyFilesRejected(context.Context, int, []string) error            { return nil }
func (noopService) NotifyHistoryCleared(context.Context) error                          { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
