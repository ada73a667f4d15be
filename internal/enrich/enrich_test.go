package enrich

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	_ "image/jpeg"
	"strings"
	"testing"

	"courier/internal/testsupport"
)

func decodeThumbnail(t *testing.T, dataURI string) image.Config {
	t.Helper()

	const prefix = "data:image/jpeg;base64,"
	if !strings.HasPrefix(dataURI, prefix) {
		t.Fatalf("unexpected data URI prefix: %q", dataURI[:min(len(dataURI), 40)])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	return cfg
}

func TestGenerateThumbnailScalesDown(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WritePNG(t, dir, "wide.png", 800, 400)

	dataURI, err := GenerateThumbnail(path)
	if err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}

	cfg := decodeThumbnail(t, dataURI)
	if cfg.Width != 200 || cfg.Height != 100 {
		t.Fatalf("expected 200x100 thumbnail, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestGenerateThumbnailNeverUpscales(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WritePNG(t, dir, "small.png", 120, 80)

	dataURI, err := GenerateThumbnail(path)
	if err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}

	cfg := decodeThumbnail(t, dataURI)
	if cfg.Width != 120 || cfg.Height != 80 {
		t.Fatalf("expected native 120x80, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestExtractTextHonorsLimit(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteText(t, dir, "notes.md", strings.Repeat("abcd", 100))

	text, err := ExtractText(path, 1) // 1 byte limit applied by caller as KB upstream
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "a" {
		t.Fatalf("expected single byte, got %q", text)
	}

	full, err := ExtractText(path, 0)
	if err != nil {
		t.Fatalf("ExtractText without limit failed: %v", err)
	}
	if len(full) != 400 {
		t.Fatalf("expected full content, got %d bytes", len(full))
	}
}

type stubTranscriber struct {
	text      string
	err       error
	available bool
	calls     int
}

func (s *stubTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	s.calls++
	return s.text, s.err
}

func (s *stubTranscriber) Available() bool { return s.available }

type stubTagger struct {
	suggestion Suggestion
	err        error
	enabled    bool
}

func (s *stubTagger) Suggest(ctx context.Context, name, mimeType, excerpt string) (Suggestion, error) {
	return s.suggestion, s.err
}

func (s *stubTagger) Enabled() bool { return s.enabled }

func TestEnrichRunsRequestedStages(t *testing.T) {
	dir := t.TempDir()
	imgPath := testsupport.WritePNG(t, dir, "photo.png", 400, 400)

	tagger := &stubTagger{
		enabled:    true,
		suggestion: Suggestion{Tags: []string{"photo", "test"}, Summary: "a test image", Category: "images"},
	}
	pipeline := NewPipeline(nil, nil, tagger, 512)

	update := pipeline.Enrich(context.Background(), Input{
		Path:     imgPath,
		Name:     "photo.png",
		MimeType: "image/png",
	}, Options{Thumbnail: true, AITags: true})

	if update.Thumbnail == "" {
		t.Fatal("expected thumbnail")
	}
	if len(update.Tags) != 2 || update.Summary != "a test image" {
		t.Fatalf("expected tagger output, got %#v", update)
	}

	fields := update.Fields()
	if _, ok := fields["thumbnail"]; !ok {
		t.Fatalf("expected thumbnail field, got %v", fields)
	}
	if _, ok := fields["extracted_text"]; ok {
		t.Fatal("text extraction was not requested")
	}
}

func TestEnrichSkipsStagesByMimeType(t *testing.T) {
	dir := t.TempDir()
	textPath := testsupport.WriteText(t, dir, "readme.md", "# hello")

	transcriber := &stubTranscriber{available: true, text: "should not run"}
	pipeline := NewPipeline(nil, transcriber, nil, 512)

	update := pipeline.Enrich(context.Background(), Input{
		Path:     textPath,
		Name:     "readme.md",
		MimeType: "text/markdown",
	}, Options{Thumbnail: true, ExtractText: true, Transcript: true})

	if update.Thumbnail != "" {
		t.Fatal("thumbnail stage must skip non-images")
	}
	if update.Transcript != "" || transcriber.calls != 0 {
		t.Fatal("transcript stage must skip non-audio files")
	}
	if update.ExtractedText != "# hello" {
		t.Fatalf("expected extracted text, got %q", update.ExtractedText)
	}
}

func TestEnrichAbsorbsStageFailures(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteText(t, dir, "clip.mp4", "not a real video")

	transcriber := &stubTranscriber{available: true, err: errors.New("model crashed")}
	tagger := &stubTagger{enabled: true, err: errors.New("api down")}
	pipeline := NewPipeline(nil, transcriber, tagger, 512)

	update := pipeline.Enrich(context.Background(), Input{
		Path:     path,
		Name:     "clip.mp4",
		MimeType: "video/mp4",
	}, Options{Thumbnail: true, Transcript: true, AITags: true})

	if update.Transcript != "" || len(update.Tags) != 0 {
		t.Fatalf("expected failed stages to leave fields empty: %#v", update)
	}
}
