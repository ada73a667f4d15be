// Package uploader drives queued files through the upload pipeline. Each
// item walks validating, processing, and uploading stages to a terminal
// state; transfers across the whole manager share a concurrency ceiling
// while enrichment runs unbounded.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"courier/internal/config"
	"courier/internal/enrich"
	"courier/internal/history"
	"courier/internal/logging"
	"courier/internal/metadata"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/telemetry"
	"courier/internal/transport"
)

// Request describes one file to upload.
type Request struct {
	Path         string
	Name         string
	Size         int64
	MimeType     string
	LastModified time.Time
	Privacy      string
	Category     string
	Tags         []string
}

// Result reports the terminal state of one upload.
type Result struct {
	ID        string
	Name      string
	Status    queue.Status
	RemoteID  string
	RemoteURL string
	Err       error
}

// Deps collects the collaborators a Manager needs.
type Deps struct {
	Config    *config.Config
	Store     *queue.Store
	Transport transport.Transport
	Extractor *metadata.Extractor
	Enricher  *enrich.Pipeline
	History   *history.Store
	Notifier  notifications.Service
	Telemetry telemetry.Recorder
	Logger    *slog.Logger
}

type inflightState struct {
	cancel    context.CancelFunc
	cancelled bool
}

// Manager runs the upload pipeline.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	transport transport.Transport
	extractor *metadata.Extractor
	enricher  *enrich.Pipeline
	history   *history.Store
	notifier  notifications.Service
	telemetry telemetry.Recorder
	logger    *slog.Logger

	// slots caps concurrent transfers; enrichment is not gated by it.
	slots chan struct{}

	mu       sync.Mutex
	inflight map[string]*inflightState
}

// New builds a Manager. Config, Store, and Transport are required; the
// remaining collaborators degrade to no-ops when absent.
func New(deps Deps) (*Manager, error) {
	if deps.Config == nil {
		return nil, errors.New("uploader: config required")
	}
	if deps.Store == nil {
		return nil, errors.New("uploader: store required")
	}
	if deps.Transport == nil {
		return nil, errors.New("uploader: transport required")
	}

	ceiling := deps.Config.Uploads.MaxConcurrent
	if ceiling < 1 {
		ceiling = 1
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(deps.Config)
	}
	recorder := deps.Telemetry
	if recorder == nil {
		recorder = telemetry.Noop{}
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = metadata.NewExtractor(nil)
	}
	enricher := deps.Enricher
	if enricher == nil {
		enricher = enrich.NewPipeline(logger, nil, nil, deps.Config.Enrichment.TextLimitKB)
	}

	return &Manager{
		cfg:       deps.Config,
		store:     deps.Store,
		transport: deps.Transport,
		extractor: extractor,
		enricher:  enricher,
		history:   deps.History,
		notifier:  notifier,
		telemetry: recorder,
		logger:    logging.NewComponentLogger(logger, "uploader"),
		slots:     make(chan struct{}, ceiling),
		inflight:  make(map[string]*inflightState),
	}, nil
}

// Enqueue inserts a single file and runs it to a terminal state.
func (m *Manager) Enqueue(ctx context.Context, req Request) Result {
	results := m.EnqueueBatch(ctx, []Request{req})
	return results[0]
}

// Cancel stops an upload. In-flight work is interrupted through its context;
// a pending item is marked cancelled directly. Cancelling an item that is
// already terminal is a no-op.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	if state, ok := m.inflight[id]; ok {
		state.cancelled = true
		state.cancel()
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("uploader cancel: item %s not found", id)
	}
	if queue.IsTerminal(item.Status) {
		return nil
	}

	item.SetCancelled()
	if err := m.store.Update(ctx, item); err != nil {
		return err
	}
	m.logger.Info("upload cancelled",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldFileName, item.Name))
	return nil
}

// Retry re-enqueues a failed upload as a fresh attempt. Declared attributes
// and derived metadata from the earlier attempt are reused.
func (m *Manager) Retry(ctx context.Context, id string) (Result, error) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if item == nil {
		return Result{}, fmt.Errorf("uploader retry: item %s not found", id)
	}
	if item.Status != queue.StatusFailed {
		return Result{}, fmt.Errorf("uploader retry: item %s is %s, only failed uploads can be retried", id, item.Status)
	}

	item.ResetForRetry()
	if err := m.store.Update(ctx, item); err != nil {
		return Result{}, err
	}

	return m.runItem(ctx, item), nil
}

// ProgressOf reports the current progress and status of an item.
func (m *Manager) ProgressOf(ctx context.Context, id string) (int, queue.Status, error) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return 0, "", err
	}
	if item == nil {
		return 0, "", fmt.Errorf("uploader progress: item %s not found", id)
	}
	return item.Progress, item.Status, nil
}

func (m *Manager) register(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight[id] = &inflightState{cancel: cancel}
}

func (m *Manager) unregister(id string) (userCancelled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.inflight[id]
	delete(m.inflight, id)
	return ok && state.cancelled
}

func (m *Manager) acquireSlot(ctx context.Context) error {
	select {
	case m.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) releaseSlot() {
	<-m.slots
}
