// Package telemetry posts usage events to an optional analytics endpoint.
// Recording is strictly fire and forget: errors are logged at debug level
// and never surface to callers, so a down endpoint cannot affect uploads.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"courier/internal/config"
	"courier/internal/logging"
)

// Event names emitted by the upload pipeline.
const (
	EventFilesUploaded  = "files_uploaded"
	EventFileDeleted    = "file_deleted"
	EventBatchCompleted = "batch_completed"
	EventFilesRejected  = "files_rejected"
)

// Recorder tracks usage events.
type Recorder interface {
	Track(ctx context.Context, event string, props map[string]any)
}

// NewRecorder builds a recorder from configuration. Without an endpoint the
// returned recorder discards everything.
func NewRecorder(cfg *config.Config, logger *slog.Logger) Recorder {
	endpoint := strings.TrimSpace(cfg.Telemetry.Endpoint)
	if endpoint == "" {
		return Noop{}
	}

	timeout := time.Duration(cfg.Telemetry.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &httpRecorder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "telemetry"),
	}
}

type httpRecorder struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	wg       sync.WaitGroup
}

type eventPayload struct {
	Event      string         `json:"event"`
	Timestamp  time.Time      `json:"timestamp"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Track posts the event without blocking the caller. All failures are
// swallowed.
func (r *httpRecorder) Track(ctx context.Context, event string, props map[string]any) {
	if strings.TrimSpace(event) == "" {
		return
	}

	encoded, err := json.Marshal(eventPayload{
		Event:      event,
		Timestamp:  time.Now().UTC(),
		Properties: props,
	})
	if err != nil {
		r.logger.Debug("telemetry encode failed", logging.Error(err))
		return
	}

	// The post outlives the caller's context; the client timeout bounds it.
	postCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.post(postCtx, event, encoded)
	}()
}

// flush waits for in-flight posts. Tests only.
func (r *httpRecorder) flush() {
	r.wg.Wait()
}

func (r *httpRecorder) post(ctx context.Context, event string, encoded []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(encoded))
	if err != nil {
		r.logger.Debug("telemetry request build failed", logging.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("telemetry post failed", logging.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.logger.Debug("telemetry rejected",
			logging.Int("status", resp.StatusCode),
			logging.String(logging.FieldEventType, event))
	}
}

// Noop discards all events.
type Noop struct{}

// Track implements Recorder.
func (Noop) Track(context.Context, string, map[string]any) {}

// Memory records events in memory for tests.
type Memory struct {
	mu     sync.Mutex
	events []RecordedEvent
}

// RecordedEvent is one tracked event held by a Memory recorder.
type RecordedEvent struct {
	Event      string
	Properties map[string]any
}

// Track implements Recorder.
func (m *Memory) Track(_ context.Context, event string, props map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, RecordedEvent{Event: event, Properties: props})
}

// Events returns a copy of everything tracked so far.
func (m *Memory) Events() []RecordedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]RecordedEvent, len(m.events))
	copy(cp, m.events)
	return cp
}
