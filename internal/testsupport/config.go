package testsupport

import (
	"path/filepath"
	"testing"

	"courier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Transport.Endpoint = "http://127.0.0.1:0/upload"
	cfgVal.Transport.Token = "test-token"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEndpoint overrides the transport endpoint on the test config.
func WithEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transport.Endpoint = endpoint
	}
}

// WithMaxConcurrent overrides the transfer ceiling on the test config.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploads.MaxConcurrent = n
	}
}

// WithMaxFileSizeMB overrides the validation size cap on the test config.
func WithMaxFileSizeMB(mb int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploads.MaxFileSizeMB = mb
	}
}

// WithAllowedTypes overrides the accepted MIME patterns on the test config.
func WithAllowedTypes(types ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploads.AllowedTypes = types
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
