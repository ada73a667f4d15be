package uploader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"courier/internal/config"
	"courier/internal/history"
	"courier/internal/queue"
	"courier/internal/services"
	"courier/internal/telemetry"
	"courier/internal/testsupport"
	"courier/internal/transport"
)

type fakeTransport struct {
	mu        sync.Mutex
	active    int
	maxActive int
	sends     []transport.SendRequest
	delay     time.Duration
	gate      chan struct{}
	failFor   map[string]error
}

func (f *fakeTransport) Send(ctx context.Context, req transport.SendRequest) (transport.Receipt, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return transport.Receipt{}, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return transport.Receipt{}, ctx.Err()
		}
	}

	f.mu.Lock()
	err := f.failFor[req.FileName]
	if err == nil {
		f.sends = append(f.sends, req)
	}
	f.mu.Unlock()
	if err != nil {
		return transport.Receipt{}, err
	}

	if req.Progress != nil {
		req.Progress(50, 100)
		req.Progress(100, 100)
	}
	return transport.Receipt{
		ID:  "remote-" + req.FileName,
		URL: "https://files.example/" + req.FileName,
	}, nil
}

func (f *fakeTransport) Delete(ctx context.Context, remoteID string) error { return nil }

func (f *fakeTransport) UpdateMetadata(ctx context.Context, remoteID string, metadata map[string]any) error {
	return nil
}

func (f *fakeTransport) highWater() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func (f *fakeTransport) sent() []transport.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]transport.SendRequest, len(f.sends))
	copy(cp, f.sends)
	return cp
}

type fixture struct {
	cfg       *config.Config
	store     *queue.Store
	transport *fakeTransport
	history   *history.Store
	telemetry *telemetry.Memory
	manager   *Manager
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	ft := &fakeTransport{}
	hist := history.NewStore(cfg.HistoryPath(), cfg.History.Limit, nil)
	mem := &telemetry.Memory{}

	manager, err := New(Deps{
		Config:    cfg,
		Store:     store,
		Transport: ft,
		History:   hist,
		Telemetry: mem,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &fixture{cfg: cfg, store: store, transport: ft, history: hist, telemetry: mem, manager: manager}
}

func (f *fixture) request(t *testing.T, name string, size int64) Request {
	t.Helper()
	path := testsupport.WriteFile(t, testsupport.BaseDir(f.cfg), name, size)
	return Request{
		Path:         path,
		Name:         name,
		Size:         size,
		MimeType:     "application/octet-stream",
		LastModified: time.Now().UTC().Truncate(time.Second),
		Privacy:      "private",
		Category:     "general",
	}
}

func TestEnqueueUploadsFile(t *testing.T) {
	f := newFixture(t)

	result := f.manager.Enqueue(context.Background(), f.request(t, "report.bin", 2048))
	if result.Err != nil {
		t.Fatalf("Enqueue failed: %v", result.Err)
	}
	if result.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if result.RemoteID != "remote-report.bin" {
		t.Fatalf("unexpected receipt: %#v", result)
	}

	item, err := f.store.GetByID(context.Background(), result.ID)
	if err != nil || item == nil {
		t.Fatalf("GetByID failed: item=%v err=%v", item, err)
	}
	if item.Status != queue.StatusCompleted || item.Progress != 100 {
		t.Fatalf("unexpected stored item: %#v", item)
	}

	if f.history.Count() != 1 {
		t.Fatalf("expected one history entry, got %d", f.history.Count())
	}
	entry := f.history.List(1)[0]
	if entry.Name != "report.bin" || entry.URL != "https://files.example/report.bin" {
		t.Fatalf("unexpected history entry: %#v", entry)
	}

	events := f.telemetry.Events()
	if len(events) != 1 || events[0].Event != telemetry.EventFilesUploaded {
		t.Fatalf("unexpected telemetry: %v", events)
	}
}

func TestTransferCeilingHonored(t *testing.T) {
	f := newFixture(t, testsupport.WithMaxConcurrent(2))
	f.transport.delay = 30 * time.Millisecond

	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = f.request(t, fmt.Sprintf("file-%d.bin", i), 256)
	}

	results := f.manager.EnqueueBatch(context.Background(), reqs)
	for _, result := range results {
		if result.Status != queue.StatusCompleted {
			t.Fatalf("expected all completed, got %#v", result)
		}
	}
	if got := f.transport.highWater(); got > 2 {
		t.Fatalf("ceiling exceeded: %d concurrent transfers", got)
	}
}

func TestUploadingStateBoundedByCeiling(t *testing.T) {
	f := newFixture(t, testsupport.WithMaxConcurrent(1))
	gate := make(chan struct{})
	f.transport.gate = gate

	reqA := f.request(t, "gated-0.bin", 128)
	reqB := f.request(t, "gated-1.bin", 128)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i, req := range []Request{reqA, reqB} {
		wg.Add(1)
		go func(idx int, req Request) {
			defer wg.Done()
			results[idx] = f.manager.Enqueue(context.Background(), req)
		}(i, req)
	}

	// Wait until one transfer holds the slot.
	deadline := time.After(2 * time.Second)
	for f.transport.highWater() == 0 {
		select {
		case <-deadline:
			t.Fatal("no transfer started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// While the slot is held, the store must never show a second item as
	// uploading: the waiter stays in processing until it acquires a slot.
	for i := 0; i < 10; i++ {
		items, err := f.store.List(context.Background(), queue.StatusUploading)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(items) > 1 {
			t.Fatalf("%d items uploading with ceiling 1", len(items))
		}
		time.Sleep(10 * time.Millisecond)
	}

	close(gate)
	wg.Wait()
	for i, result := range results {
		if result.Status != queue.StatusCompleted {
			t.Fatalf("result %d: expected completed, got %#v", i, result)
		}
	}
}

func TestBatchFailuresAreIndependent(t *testing.T) {
	f := newFixture(t, testsupport.WithMaxConcurrent(3))
	f.transport.failFor = map[string]error{
		"file-1.bin": services.Wrap(services.ErrTransfer, "uploading", "send", "http 500", nil),
	}

	reqs := make([]Request, 5)
	for i := range reqs {
		reqs[i] = f.request(t, fmt.Sprintf("file-%d.bin", i), 128)
	}

	results := f.manager.EnqueueBatch(context.Background(), reqs)

	for i, result := range results {
		want := queue.StatusCompleted
		if i == 1 {
			want = queue.StatusFailed
		}
		if result.Status != want {
			t.Fatalf("result %d: expected %s, got %s (err=%v)", i, want, result.Status, result.Err)
		}
	}
	if results[1].Err == nil || !errors.Is(results[1].Err, services.ErrTransfer) {
		t.Fatalf("expected transfer error, got %v", results[1].Err)
	}
	if f.history.Count() != 4 {
		t.Fatalf("expected 4 history entries, got %d", f.history.Count())
	}

	// Batch summary is emitted for multi-file runs.
	var sawBatch bool
	for _, event := range f.telemetry.Events() {
		if event.Event == telemetry.EventBatchCompleted {
			sawBatch = true
			if event.Properties["succeeded"] != 4 || event.Properties["failed"] != 1 {
				t.Fatalf("unexpected batch properties: %v", event.Properties)
			}
		}
	}
	if !sawBatch {
		t.Fatal("expected batch telemetry event")
	}
}

func TestCancelPendingItem(t *testing.T) {
	f := newFixture(t)

	item := testsupport.NewItem(t, f.store, "/tmp/pending.bin", "pending.bin", 64)
	if err := f.manager.Cancel(context.Background(), item.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	stored, err := f.store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", stored.Status)
	}

	// Cancelling a terminal item is a no-op.
	if err := f.manager.Cancel(context.Background(), item.ID); err != nil {
		t.Fatalf("second Cancel failed: %v", err)
	}
}

func TestCancelInflightTransfer(t *testing.T) {
	f := newFixture(t)
	f.transport.delay = 5 * time.Second

	done := make(chan Result, 1)
	go func() {
		done <- f.manager.Enqueue(context.Background(), f.request(t, "slow.bin", 1024))
	}()

	// Wait for the item to reach the uploading stage.
	var id string
	deadline := time.After(2 * time.Second)
	for id == "" {
		select {
		case <-deadline:
			t.Fatal("item never reached uploading")
		case <-time.After(10 * time.Millisecond):
		}
		items, err := f.store.List(context.Background(), queue.StatusUploading)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(items) > 0 {
			id = items[0].ID
		}
	}

	if err := f.manager.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	result := <-done
	if result.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled result, got %s (err=%v)", result.Status, result.Err)
	}

	stored, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != queue.StatusCancelled {
		t.Fatalf("expected stored cancellation, got %s", stored.Status)
	}
	if f.history.Count() != 0 {
		t.Fatal("cancelled uploads must not reach history")
	}
}

func TestRetryFailedUpload(t *testing.T) {
	f := newFixture(t)
	f.transport.failFor = map[string]error{
		"flaky.bin": services.Wrap(services.ErrTransfer, "uploading", "send", "connection reset", nil),
	}

	result := f.manager.Enqueue(context.Background(), f.request(t, "flaky.bin", 512))
	if result.Status != queue.StatusFailed {
		t.Fatalf("expected initial failure, got %s", result.Status)
	}

	// The remote recovers.
	f.transport.mu.Lock()
	delete(f.transport.failFor, "flaky.bin")
	f.transport.mu.Unlock()

	retried, err := f.manager.Retry(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried.Status != queue.StatusCompleted {
		t.Fatalf("expected completed retry, got %s (err=%v)", retried.Status, retried.Err)
	}

	item, err := f.store.GetByID(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item.Attempts != 1 {
		t.Fatalf("expected one recorded retry, got %d", item.Attempts)
	}
	if item.ErrorMessage != "" {
		t.Fatalf("expected error cleared, got %q", item.ErrorMessage)
	}
	if f.history.Count() != 1 {
		t.Fatalf("expected one history entry, got %d", f.history.Count())
	}
}

func TestRetryRejectsNonFailedItems(t *testing.T) {
	f := newFixture(t)

	result := f.manager.Enqueue(context.Background(), f.request(t, "done.bin", 64))
	if result.Status != queue.StatusCompleted {
		t.Fatalf("setup upload failed: %#v", result)
	}

	if _, err := f.manager.Retry(context.Background(), result.ID); err == nil {
		t.Fatal("expected retry of completed item to fail")
	}
	if _, err := f.manager.Retry(context.Background(), "no-such-id"); err == nil {
		t.Fatal("expected retry of unknown item to fail")
	}
}

func TestMissingSourceFailsValidation(t *testing.T) {
	f := newFixture(t)

	result := f.manager.Enqueue(context.Background(), Request{
		Path: filepath.Join(testsupport.BaseDir(f.cfg), "ghost.bin"),
		Name: "ghost.bin",
		Size: 64,
	})
	if result.Status != queue.StatusFailed {
		t.Fatalf("expected failure, got %s", result.Status)
	}
	if !errors.Is(result.Err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", result.Err)
	}
}

func TestOversizedFileFailsValidation(t *testing.T) {
	f := newFixture(t, testsupport.WithMaxFileSizeMB(1))

	result := f.manager.Enqueue(context.Background(), f.request(t, "big.bin", 2*1024*1024))
	if result.Status != queue.StatusFailed {
		t.Fatalf("expected failure, got %s", result.Status)
	}
	if !errors.Is(result.Err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", result.Err)
	}
}

func TestImageUploadCarriesThumbnail(t *testing.T) {
	f := newFixture(t)

	path := testsupport.WritePNG(t, testsupport.BaseDir(f.cfg), "photo.png", 640, 480)
	result := f.manager.Enqueue(context.Background(), Request{
		Path:     path,
		Name:     "photo.png",
		MimeType: "image/png",
		Privacy:  "public",
		Category: "images",
		Tags:     []string{"snapshot"},
	})
	if result.Status != queue.StatusCompleted {
		t.Fatalf("upload failed: %#v", result)
	}

	sends := f.transport.sent()
	if len(sends) != 1 {
		t.Fatalf("expected one send, got %d", len(sends))
	}
	meta := sends[0].Metadata
	if meta["width"] != 640 && meta["width"] != float64(640) {
		t.Fatalf("expected probed width in metadata, got %v", meta["width"])
	}
	thumb, _ := meta["thumbnail"].(string)
	if thumb == "" {
		t.Fatal("expected thumbnail in metadata")
	}
	if sends[0].Privacy != "public" || sends[0].Category != "images" {
		t.Fatalf("unexpected send fields: %#v", sends[0])
	}
	if len(sends[0].Tags) != 1 || sends[0].Tags[0] != "snapshot" {
		t.Fatalf("unexpected tags: %v", sends[0].Tags)
	}
}

func TestEnrichmentFailureDoesNotBlockUpload(t *testing.T) {
	f := newFixture(t)

	// A file that claims to be an image but cannot be decoded: the
	// thumbnail stage fails and the upload continues without it.
	path := testsupport.WriteText(t, testsupport.BaseDir(f.cfg), "broken.png", "not an image")
	result := f.manager.Enqueue(context.Background(), Request{
		Path:     path,
		Name:     "broken.png",
		MimeType: "image/png",
	})
	if result.Status != queue.StatusCompleted {
		t.Fatalf("expected completion despite enrichment failure: %#v", result)
	}

	sends := f.transport.sent()
	if _, ok := sends[0].Metadata["thumbnail"]; ok {
		t.Fatal("expected no thumbnail for undecodable image")
	}
}

func TestProgressIsPersistedDuringTransfer(t *testing.T) {
	f := newFixture(t)

	result := f.manager.Enqueue(context.Background(), f.request(t, "tracked.bin", 4096))
	if result.Status != queue.StatusCompleted {
		t.Fatalf("upload failed: %#v", result)
	}

	progress, status, err := f.manager.ProgressOf(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("ProgressOf failed: %v", err)
	}
	if progress != 100 || status != queue.StatusCompleted {
		t.Fatalf("unexpected progress: %d %s", progress, status)
	}
}
