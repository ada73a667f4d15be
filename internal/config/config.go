package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Uploads contains the queue and validation settings.
type Uploads struct {
	MaxConcurrent   int      `toml:"max_concurrent"`
	MaxFileSizeMB   int64    `toml:"max_file_size_mb"`
	AllowedTypes    []string `toml:"allowed_types"`
	TransferTimeout int      `toml:"transfer_timeout"`
	// RetryAttempts and RetryDelay are advisory: uploads are retried only
	// on explicit user request, never automatically.
	RetryAttempts int `toml:"retry_attempts"`
	RetryDelay    int `toml:"retry_delay"`
}

// Enrichment gates the optional post-selection stages.
type Enrichment struct {
	Thumbnail   bool  `toml:"thumbnail"`
	ExtractText bool  `toml:"extract_text"`
	Transcript  bool  `toml:"transcript"`
	AITags      bool  `toml:"ai_tags"`
	TextLimitKB int64 `toml:"text_limit_kb"`
}

// Transport contains the remote store connection settings.
type Transport struct {
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
}

// Transcriber contains settings for the external speech-to-text tool.
type Transcriber struct {
	Binary  string `toml:"binary"`
	Model   string `toml:"model"`
	Timeout int    `toml:"timeout"`
}

// Tagger contains the AI tagging inference connection settings.
type Tagger struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Uploads        bool   `toml:"uploads"`
	Batches        bool   `toml:"batches"`
	Rejections     bool   `toml:"rejections"`
	Errors         bool   `toml:"errors"`
}

// Telemetry contains the fire-and-forget event sink settings.
type Telemetry struct {
	Endpoint       string `toml:"endpoint"`
	RequestTimeout int    `toml:"request_timeout"`
}

// History configures the durable upload history log.
type History struct {
	Limit int `toml:"limit"`
}

// Watch configures the drop-directory watcher.
type Watch struct {
	PollInterval int    `toml:"poll_interval"`
	Category     string `toml:"category"`
	Privacy      string `toml:"privacy"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for courier.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Uploads       Uploads       `toml:"uploads"`
	Enrichment    Enrichment    `toml:"enrichment"`
	Transport     Transport     `toml:"transport"`
	Transcriber   Transcriber   `toml:"transcriber"`
	Tagger        Tagger        `toml:"tagger"`
	Notifications Notifications `toml:"notifications"`
	Telemetry     Telemetry     `toml:"telemetry"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/courier/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("courier.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories courier needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueuePath returns the location of the upload queue database.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// HistoryPath returns the location of the upload history store.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.json")
}

// LockPath returns the location of the watch-mode lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "watch.lock")
}

// MaxFileSizeBytes returns the validation size cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.Uploads.MaxFileSizeMB * 1024 * 1024
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
