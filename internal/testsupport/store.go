package testsupport

import (
	"context"
	"testing"
	"time"

	"courier/internal/config"
	"courier/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem inserts a pending upload item for tests using the provided store.
func NewItem(t testing.TB, store *queue.Store, path, name string, size int64) *queue.Item {
	t.Helper()

	item := &queue.Item{
		SourcePath:   path,
		Name:         name,
		Size:         size,
		MimeType:     "application/octet-stream",
		LastModified: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Insert(context.Background(), item); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return item
}
