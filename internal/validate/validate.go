// Package validate decides which candidate files may enter the upload queue.
//
// Checks run per file in a fixed order (size cap, MIME allow-list, duplicate
// detection) and stop at the first violation, so a rejection always carries a
// single reason. Validation is pure: it never touches the filesystem or the
// queue, callers supply everything it needs.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Reason identifies why a candidate was rejected.
type Reason string

const (
	ReasonSizeExceeded   Reason = "size_exceeded"
	ReasonTypeNotAllowed Reason = "type_not_allowed"
	ReasonDuplicateFile  Reason = "duplicate_file"
)

// Constraints carries the configured validation limits.
type Constraints struct {
	MaxFileSize  int64
	AllowedTypes []string
}

// FileInfo describes a candidate file as declared at selection time.
type FileInfo struct {
	Path         string
	Name         string
	Size         int64
	MimeType     string
	LastModified time.Time
}

// Rejection pairs a rejected candidate with the reason it was turned away.
type Rejection struct {
	File    FileInfo
	Reason  Reason
	Message string
}

// Result partitions a candidate batch into accepted and rejected files.
type Result struct {
	Accepted []FileInfo
	Rejected []Rejection
}

// Key builds the identity used for duplicate detection. Two files are the
// same upload when name, size, and modification time all match.
func Key(f FileInfo) string {
	return f.Name + "|" + strconv.FormatInt(f.Size, 10) + "|" + strconv.FormatInt(f.LastModified.UnixMilli(), 10)
}

// Validate checks each candidate against the constraints and the set of
// already known uploads. Candidates accepted earlier in the same batch count
// as known for the files that follow them.
func Validate(candidates []FileInfo, existing []FileInfo, c Constraints) Result {
	known := make(map[string]struct{}, len(existing)+len(candidates))
	for _, f := range existing {
		known[Key(f)] = struct{}{}
	}

	var result Result
	for _, f := range candidates {
		if c.MaxFileSize > 0 && f.Size > c.MaxFileSize {
			result.Rejected = append(result.Rejected, Rejection{
				File:    f,
				Reason:  ReasonSizeExceeded,
				Message: fmt.Sprintf("%s exceeds the %s size limit", humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(c.MaxFileSize))),
			})
			continue
		}
		if !TypeAllowed(f.MimeType, c.AllowedTypes) {
			result.Rejected = append(result.Rejected, Rejection{
				File:    f,
				Reason:  ReasonTypeNotAllowed,
				Message: fmt.Sprintf("type %q is not accepted", f.MimeType),
			})
			continue
		}
		key := Key(f)
		if _, ok := known[key]; ok {
			result.Rejected = append(result.Rejected, Rejection{
				File:    f,
				Reason:  ReasonDuplicateFile,
				Message: "already queued or uploaded",
			})
			continue
		}
		known[key] = struct{}{}
		result.Accepted = append(result.Accepted, f)
	}
	return result
}

// TypeAllowed reports whether a MIME type matches the allow-list. Patterns
// may be exact ("image/png"), a family wildcard ("image/*"), or the
// accept-everything pattern ("*/*"). An empty allow-list accepts everything.
func TypeAllowed(mimeType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, pattern := range allowed {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "*/*":
			return true
		case strings.HasSuffix(pattern, "/*"):
			family := strings.TrimSuffix(pattern, "/*")
			if family != "" && strings.HasPrefix(mimeType, family+"/") {
				return true
			}
		case pattern == mimeType:
			return true
		}
	}
	return false
}
