package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Uploads.MaxConcurrent != defaultMaxConcurrent {
		t.Fatalf("expected default ceiling, got %d", cfg.Uploads.MaxConcurrent)
	}
	if cfg.MaxFileSizeBytes() != defaultMaxFileSizeMB*1024*1024 {
		t.Fatalf("unexpected size cap: %d", cfg.MaxFileSizeBytes())
	}
	if cfg.History.Limit != defaultHistoryLimit {
		t.Fatalf("unexpected history limit: %d", cfg.History.Limit)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[uploads]
max_concurrent = 5
allowed_types = ["Image/PNG", "video/*"]

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Uploads.MaxConcurrent != 5 {
		t.Fatalf("expected ceiling 5, got %d", cfg.Uploads.MaxConcurrent)
	}
	if cfg.Uploads.AllowedTypes[0] != "image/png" {
		t.Fatalf("expected lowercased type, got %q", cfg.Uploads.AllowedTypes[0])
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
	if cfg.QueuePath() != filepath.Join(dir, "data", "queue.db") {
		t.Fatalf("unexpected queue path: %s", cfg.QueuePath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero ceiling", func(c *Config) { c.Uploads.MaxConcurrent = 0 }, "max_concurrent"},
		{"bad type", func(c *Config) { c.Uploads.AllowedTypes = []string{"png"} }, "allowed_types"},
		{"bad scheme", func(c *Config) { c.Transport.Endpoint = "ftp://host" }, "transport.endpoint"},
		{"bad privacy", func(c *Config) { c.Watch.Privacy = "secret" }, "watch.privacy"},
		{"bad format", func(c *Config) { c.Logging.Format = "yaml" }, "logging.format"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatalf("normalize failed: %v", err)
			}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample config should load: exists=%v err=%v", exists, err)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := ExpandPath("~/courier-test")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if got != filepath.Join(home, "courier-test") {
		t.Fatalf("unexpected expansion: %s", got)
	}
}
