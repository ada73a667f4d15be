package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"courier/internal/testsupport"
)

func TestExtractImageDimensions(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WritePNG(t, dir, "photo.png", 320, 240)

	extractor := NewExtractor(nil)
	meta := extractor.Extract(context.Background(), path, "image/png", time.Time{})

	if meta.Width != 320 || meta.Height != 240 {
		t.Fatalf("unexpected dimensions: %dx%d", meta.Width, meta.Height)
	}
	if meta.Extension != "png" {
		t.Fatalf("unexpected extension: %q", meta.Extension)
	}
	if meta.Size == 0 {
		t.Fatal("expected size from stat")
	}
	if meta.LastModified.IsZero() {
		t.Fatal("expected modification time from stat")
	}
}

func TestExtractDetectsMimeWhenUndeclared(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WritePNG(t, dir, "mystery.bin", 10, 10)

	extractor := NewExtractor(nil)
	meta := extractor.Extract(context.Background(), path, "", time.Time{})

	if meta.MimeType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", meta.MimeType)
	}
}

func TestExtractMissingFileKeepsDeclaredValues(t *testing.T) {
	declared := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	extractor := NewExtractor(nil)
	meta := extractor.Extract(context.Background(), "/nonexistent/clip.mp4", "video/mp4", declared)

	if meta.MimeType != "video/mp4" {
		t.Fatalf("unexpected mime: %q", meta.MimeType)
	}
	if !meta.LastModified.Equal(declared) {
		t.Fatalf("expected declared timestamp preserved, got %s", meta.LastModified)
	}
	if meta.Width != 0 || meta.DurationSeconds != 0 {
		t.Fatalf("expected no probed attributes: %#v", meta)
	}
}

type stubProbe struct {
	result ProbeResult
	err    error
}

func (s stubProbe) Inspect(ctx context.Context, path string) (ProbeResult, error) {
	return s.result, s.err
}

func TestExtractUsesProbeForVideo(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteFile(t, dir, "clip.mp4", 128)

	extractor := NewExtractor(stubProbe{result: ProbeResult{
		Width:           1920,
		Height:          1080,
		DurationSeconds: 12.5,
		BitRate:         4_000_000,
	}})
	meta := extractor.Extract(context.Background(), path, "video/mp4", time.Time{})

	if meta.Width != 1920 || meta.Height != 1080 {
		t.Fatalf("unexpected dimensions: %dx%d", meta.Width, meta.Height)
	}
	if meta.DurationSeconds != 12.5 || meta.BitRate != 4_000_000 {
		t.Fatalf("unexpected probed attributes: %#v", meta)
	}

	fields := meta.Fields()
	if fields["duration_seconds"] != 12.5 {
		t.Fatalf("expected duration in fields, got %v", fields)
	}
}

func TestExtractSurvivesProbeFailure(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteFile(t, dir, "clip.mp4", 128)

	extractor := NewExtractor(stubProbe{err: errors.New("ffprobe missing")})
	meta := extractor.Extract(context.Background(), path, "video/mp4", time.Time{})

	if meta.Width != 0 || meta.DurationSeconds != 0 {
		t.Fatalf("expected probe failure to be absorbed: %#v", meta)
	}
	if meta.Size != 128 {
		t.Fatalf("expected declared attributes intact, got %#v", meta)
	}
}

func TestExecProbeParsesReport(t *testing.T) {
	report := `{
        "streams": [
            {"codec_type": "audio", "width": 0, "height": 0},
            {"codec_type": "video", "width": 1280, "height": 720}
        ],
        "format": {"duration": "33.4", "bit_rate": "2500000"}
    }`
	probe := &ExecProbe{
		binary: "ffprobe",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte(report), nil
		},
	}

	result, err := probe.Inspect(context.Background(), "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if result.Width != 1280 || result.Height != 720 {
		t.Fatalf("unexpected dimensions: %#v", result)
	}
	if result.DurationSeconds != 33.4 || result.BitRate != 2_500_000 {
		t.Fatalf("unexpected format attributes: %#v", result)
	}
}

func TestExecProbeReportsCommandFailure(t *testing.T) {
	probe := &ExecProbe{
		binary: "ffprobe",
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("No such file"), errors.New("exit status 1")
		},
	}

	if _, err := probe.Inspect(context.Background(), "/tmp/missing.mp4"); err == nil {
		t.Fatal("expected error from failed command")
	}
}
