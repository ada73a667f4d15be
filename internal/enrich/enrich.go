// Package enrich runs the optional post-selection stages that decorate an
// upload with derived content: thumbnails, extracted text, transcripts, and
// suggested tags. Stages are independent; a failing stage logs a warning and
// leaves its field absent while the upload continues.
package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"courier/internal/logging"
)

// Options selects which enrichment stages run for an upload.
type Options struct {
	Thumbnail   bool
	ExtractText bool
	Transcript  bool
	AITags      bool
}

// Update carries the derived fields an enrichment pass produced. Empty
// fields were either not requested or failed to derive.
type Update struct {
	Thumbnail     string
	ExtractedText string
	Transcript    string
	Tags          []string
	Summary       string
	Category      string
}

// Fields returns the populated fields as a map for merging into an item's
// derived metadata.
func (u Update) Fields() map[string]any {
	fields := make(map[string]any)
	if u.Thumbnail != "" {
		fields["thumbnail"] = u.Thumbnail
	}
	if u.ExtractedText != "" {
		fields["extracted_text"] = u.ExtractedText
	}
	if u.Transcript != "" {
		fields["transcript"] = u.Transcript
	}
	if u.Summary != "" {
		fields["summary"] = u.Summary
	}
	return fields
}

// Transcriber produces a text transcript for audio and video files.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
	Available() bool
}

// Tagger suggests tags and classification for an upload.
type Tagger interface {
	Suggest(ctx context.Context, name, mimeType, excerpt string) (Suggestion, error)
	Enabled() bool
}

// Suggestion is the tagger's response for a single file.
type Suggestion struct {
	Tags     []string
	Summary  string
	Category string
}

// Input describes the file an enrichment pass works on.
type Input struct {
	Path         string
	Name         string
	MimeType     string
	LastModified time.Time
}

// Pipeline coordinates the enrichment stages.
type Pipeline struct {
	logger      *slog.Logger
	transcriber Transcriber
	tagger      Tagger
	textLimit   int64
}

// NewPipeline builds an enrichment pipeline. Transcriber and tagger may be
// nil when those stages are not configured.
func NewPipeline(logger *slog.Logger, transcriber Transcriber, tagger Tagger, textLimitKB int64) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		logger:      logging.NewComponentLogger(logger, "enrich"),
		transcriber: transcriber,
		tagger:      tagger,
		textLimit:   textLimitKB * 1024,
	}
}

// Enrich runs the requested stages against the input. Each stage failure is
// logged and absorbed; Enrich itself never fails.
func (p *Pipeline) Enrich(ctx context.Context, in Input, opts Options) Update {
	var update Update

	if opts.Thumbnail && isImage(in.MimeType) {
		thumb, err := GenerateThumbnail(in.Path)
		if err != nil {
			p.warn(in, "thumbnail", err)
		} else {
			update.Thumbnail = thumb
		}
	}

	if opts.ExtractText && isTextExtractable(in.MimeType) {
		text, err := ExtractText(in.Path, p.textLimit)
		if err != nil {
			p.warn(in, "extract_text", err)
		} else {
			update.ExtractedText = text
		}
	}

	if opts.Transcript && isTranscribable(in.MimeType) && p.transcriber != nil && p.transcriber.Available() {
		transcript, err := p.transcriber.Transcribe(ctx, in.Path)
		if err != nil {
			p.warn(in, "transcript", err)
		} else {
			update.Transcript = transcript
		}
	}

	if opts.AITags && p.tagger != nil && p.tagger.Enabled() {
		suggestion, err := p.tagger.Suggest(ctx, in.Name, in.MimeType, excerpt(update.ExtractedText))
		if err != nil {
			p.warn(in, "ai_tags", err)
		} else {
			update.Tags = suggestion.Tags
			update.Summary = suggestion.Summary
			update.Category = suggestion.Category
		}
	}

	return update
}

func (p *Pipeline) warn(in Input, stage string, err error) {
	p.logger.Warn("enrichment stage failed",
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldFileName, in.Name),
		logging.Error(err),
	)
}

const excerptLimit = 2000

func excerpt(text string) string {
	if len(text) <= excerptLimit {
		return text
	}
	return text[:excerptLimit]
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

func isTranscribable(mimeType string) bool {
	lower := strings.ToLower(mimeType)
	return strings.HasPrefix(lower, "audio/") || strings.HasPrefix(lower, "video/")
}

func isTextExtractable(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "text/plain", "text/markdown":
		return true
	default:
		return false
	}
}
