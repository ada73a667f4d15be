package config

const (
	defaultDataDir             = "~/.local/share/courier"
	defaultLogDir              = "~/.local/share/courier/logs"
	defaultMaxConcurrent       = 3
	defaultMaxFileSizeMB       = 100
	defaultTransferTimeout     = 30
	defaultRetryAttempts       = 3
	defaultRetryDelay          = 1
	defaultTextLimitKB         = 512
	defaultTranscriberTimeout  = 120
	defaultTaggerBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultTaggerTimeout       = 15
	defaultNotifyTimeout       = 10
	defaultTelemetryTimeout    = 5
	defaultHistoryLimit        = 100
	defaultWatchPollInterval   = 5
	defaultWatchCategory       = "general"
	defaultWatchPrivacy        = "private"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Uploads: Uploads{
			MaxConcurrent:   defaultMaxConcurrent,
			MaxFileSizeMB:   defaultMaxFileSizeMB,
			AllowedTypes:    []string{"*/*"},
			TransferTimeout: defaultTransferTimeout,
			RetryAttempts:   defaultRetryAttempts,
			RetryDelay:      defaultRetryDelay,
		},
		Enrichment: Enrichment{
			Thumbnail:   true,
			ExtractText: true,
			TextLimitKB: defaultTextLimitKB,
		},
		Transcriber: Transcriber{
			Timeout: defaultTranscriberTimeout,
		},
		Tagger: Tagger{
			BaseURL:        defaultTaggerBaseURL,
			TimeoutSeconds: defaultTaggerTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Uploads:        true,
			Batches:        true,
			Rejections:     true,
			Errors:         true,
		},
		Telemetry: Telemetry{
			RequestTimeout: defaultTelemetryTimeout,
		},
		History: History{
			Limit: defaultHistoryLimit,
		},
		Watch: Watch{
			PollInterval: defaultWatchPollInterval,
			Category:     defaultWatchCategory,
			Privacy:      defaultWatchPrivacy,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
