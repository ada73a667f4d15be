package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of an upload item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusProcessing Status = "processing"
	StatusUploading  Status = "uploading"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusValidating,
	StatusProcessing,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var activeStatuses = map[Status]struct{}{
	StatusValidating: {},
	StatusProcessing: {},
	StatusUploading:  {},
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Pending   int
	Active    int
	Completed int
	Failed    int
	Cancelled int
}

// Item represents an upload persisted in SQLite. Declared attributes come
// from the local file at enqueue time; derived fields accumulate as the
// enrichment stages run.
type Item struct {
	ID           string
	SourcePath   string
	Name         string
	Size         int64
	MimeType     string
	LastModified time.Time
	Status       Status
	Progress     int
	ErrorMessage string
	Privacy      string
	Category     string
	TagsJSON     string
	DerivedJSON  string
	Attempts     int
	RemoteID     string
	RemoteURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends an item's lifecycle.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the status reflects an in-flight operation.
func IsActive(status Status) bool {
	_, ok := activeStatuses[status]
	return ok
}

// IsActive returns true when the item is currently being worked on.
func (i Item) IsActive() bool {
	return IsActive(i.Status)
}

// SetProgress advances transfer progress. Progress only moves forward and
// stays below 100 until the transfer is confirmed; callers mark completion
// through SetCompleted.
func (i *Item) SetProgress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 99 {
		percent = 99
	}
	if percent > i.Progress {
		i.Progress = percent
	}
}

// SetCompleted marks the item as successfully uploaded and records the
// remote receipt.
func (i *Item) SetCompleted(remoteID, remoteURL string) {
	i.Status = StatusCompleted
	i.Progress = 100
	i.ErrorMessage = ""
	i.RemoteID = remoteID
	i.RemoteURL = remoteURL
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// SetCancelled marks the item as cancelled by the user.
func (i *Item) SetCancelled() {
	i.Status = StatusCancelled
	i.ErrorMessage = ""
}

// ResetForRetry returns a failed item to the pending state so it re-enters
// the pipeline as a fresh attempt. Declared attributes and any derived
// metadata from earlier attempts are preserved.
func (i *Item) ResetForRetry() {
	i.Status = StatusPending
	i.Progress = 0
	i.ErrorMessage = ""
	i.RemoteID = ""
	i.RemoteURL = ""
	i.Attempts++
}

// Tags decodes the stored tag list. A missing or malformed value yields nil.
func (i *Item) Tags() []string {
	if strings.TrimSpace(i.TagsJSON) == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(i.TagsJSON), &tags); err != nil {
		return nil
	}
	return tags
}

// SetTags stores the tag list, deduplicated and order-preserving.
func (i *Item) SetTags(tags []string) error {
	if len(tags) == 0 {
		i.TagsJSON = ""
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	unique := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		unique = append(unique, tag)
	}
	data, err := json.Marshal(unique)
	if err != nil {
		return err
	}
	i.TagsJSON = string(data)
	return nil
}

// Derived decodes the accumulated enrichment metadata. A missing or
// malformed value yields an empty map.
func (i *Item) Derived() map[string]any {
	if strings.TrimSpace(i.DerivedJSON) == "" {
		return map[string]any{}
	}
	var derived map[string]any
	if err := json.Unmarshal([]byte(i.DerivedJSON), &derived); err != nil {
		return map[string]any{}
	}
	return derived
}

// MergeDerived folds new enrichment fields into the stored metadata.
// Existing keys are overwritten by the incoming values.
func (i *Item) MergeDerived(fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	derived := i.Derived()
	for key, value := range fields {
		derived[key] = value
	}
	data, err := json.Marshal(derived)
	if err != nil {
		return err
	}
	i.DerivedJSON = string(data)
	return nil
}
