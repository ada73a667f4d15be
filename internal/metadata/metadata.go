// Package metadata derives descriptive attributes from local files before
// they are uploaded. Extraction is best effort: a file that cannot be probed
// still uploads with whatever was declared at selection time.
package metadata

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// Metadata aggregates the declared and probed attributes of a file.
type Metadata struct {
	Name            string
	Size            int64
	MimeType        string
	LastModified    time.Time
	Extension       string
	Width           int
	Height          int
	DurationSeconds float64
	BitRate         int64
}

// Fields returns the probed attributes as a map suitable for merging into an
// item's derived metadata. Declared attributes and zero values are omitted.
func (m Metadata) Fields() map[string]any {
	fields := make(map[string]any)
	if m.Extension != "" {
		fields["extension"] = m.Extension
	}
	if m.Width > 0 {
		fields["width"] = m.Width
	}
	if m.Height > 0 {
		fields["height"] = m.Height
	}
	if m.DurationSeconds > 0 {
		fields["duration_seconds"] = m.DurationSeconds
	}
	if m.BitRate > 0 {
		fields["bit_rate"] = m.BitRate
	}
	return fields
}

// Extractor probes files for descriptive metadata.
type Extractor struct {
	probe Probe
}

// NewExtractor builds an extractor. The probe may be nil when no media
// prober is available; image attributes are still derived in-process.
func NewExtractor(probe Probe) *Extractor {
	return &Extractor{probe: probe}
}

// Extract derives metadata for the file at path. The declared values seed
// the result; probing fills in what it can and failures are ignored.
func (e *Extractor) Extract(ctx context.Context, path, declaredMime string, declaredModified time.Time) Metadata {
	meta := Metadata{
		Name:         filepath.Base(path),
		MimeType:     declaredMime,
		LastModified: declaredModified,
		Extension:    strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
	}

	if info, err := os.Stat(path); err == nil {
		meta.Size = info.Size()
		if meta.LastModified.IsZero() {
			meta.LastModified = info.ModTime()
		}
	}

	if strings.TrimSpace(meta.MimeType) == "" {
		if detected, err := mimetype.DetectFile(path); err == nil {
			meta.MimeType = detected.String()
		}
	}

	family := strings.SplitN(meta.MimeType, "/", 2)[0]
	switch family {
	case "image":
		if width, height, ok := imageDimensions(path); ok {
			meta.Width = width
			meta.Height = height
		}
	case "video", "audio":
		if e.probe != nil {
			if probed, err := e.probe.Inspect(ctx, path); err == nil {
				meta.Width = probed.Width
				meta.Height = probed.Height
				meta.DurationSeconds = probed.DurationSeconds
				meta.BitRate = probed.BitRate
			}
		}
	}

	return meta
}

func imageDimensions(path string) (int, int, bool) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
