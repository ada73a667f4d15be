// Package history keeps a durable record of completed uploads in a JSON
// file, capped at a configured number of entries. Only successful uploads
// are recorded; failures and cancellations live in the queue until cleared.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"courier/internal/logging"
)

// Entry represents one completed upload.
type Entry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	Category   string    `json:"category"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store provides thread-safe access to the upload history file.
type Store struct {
	path    string
	limit   int
	logger  *slog.Logger
	mu      sync.RWMutex
	entries []Entry
}

// NewStore creates a history store. If path is empty, the store is
// non-functional (all operations become no-ops). The file is created lazily
// on first Record call.
func NewStore(path string, limit int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "history")

	s := &Store{
		path:   path,
		limit:  limit,
		logger: logger,
	}

	if path == "" {
		return s
	}

	if err := s.load(); err != nil {
		logger.Warn("failed to load upload history",
			logging.String(logging.FieldEventType, "history_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "history will start empty"))
	}

	return s
}

// Record appends a completed upload and persists the change. When the store
// is at capacity the oldest entries are evicted first.
func (s *Store) Record(entry Entry) error {
	entry.ID = strings.TrimSpace(entry.ID)
	if entry.ID == "" {
		return errors.New("entry ID cannot be empty")
	}
	if s.path == "" {
		return nil
	}
	if entry.UploadedAt.IsZero() {
		entry.UploadedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if s.limit > 0 && len(s.entries) > s.limit {
		s.entries = s.entries[len(s.entries)-s.limit:]
	}

	if err := s.save(); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}

	s.logger.Debug("recorded upload",
		logging.String(logging.FieldItemID, entry.ID),
		logging.String(logging.FieldFileName, entry.Name))

	return nil
}

// List returns entries newest first, limited to max when max is positive.
func (s *Store) List(max int) []Entry {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		entries = append(entries, s.entries[i])
		if max > 0 && len(entries) == max {
			break
		}
	}
	return entries
}

// Count returns the number of recorded uploads.
func (s *Store) Count() int {
	if s.path == "" {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Clear removes all entries and persists the empty history.
func (s *Store) Clear() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil

	if err := s.save(); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}

	s.logger.Debug("cleared upload history")
	return nil
}

// load reads the history file from disk into memory.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse history file: %w", err)
	}

	if s.limit > 0 && len(entries) > s.limit {
		entries = entries[len(entries)-s.limit:]
	}
	s.entries = entries

	return nil
}

// save writes the history to disk atomically.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
