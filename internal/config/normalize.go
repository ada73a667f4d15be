package config

import "strings"

// normalize expands paths and fills zero values with defaults so the rest of
// the codebase never has to guard against partially populated configs.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(valueOr(c.Paths.DataDir, defaultDataDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(valueOr(c.Paths.LogDir, defaultLogDir)); err != nil {
		return err
	}

	if c.Uploads.MaxConcurrent <= 0 {
		c.Uploads.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Uploads.MaxFileSizeMB <= 0 {
		c.Uploads.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if len(c.Uploads.AllowedTypes) == 0 {
		c.Uploads.AllowedTypes = []string{"*/*"}
	}
	for i, t := range c.Uploads.AllowedTypes {
		c.Uploads.AllowedTypes[i] = strings.ToLower(strings.TrimSpace(t))
	}
	if c.Uploads.TransferTimeout <= 0 {
		c.Uploads.TransferTimeout = defaultTransferTimeout
	}
	if c.Uploads.RetryAttempts <= 0 {
		c.Uploads.RetryAttempts = defaultRetryAttempts
	}
	if c.Uploads.RetryDelay <= 0 {
		c.Uploads.RetryDelay = defaultRetryDelay
	}

	if c.Enrichment.TextLimitKB <= 0 {
		c.Enrichment.TextLimitKB = defaultTextLimitKB
	}

	c.Transport.Endpoint = strings.TrimSpace(c.Transport.Endpoint)
	c.Transport.Token = strings.TrimSpace(c.Transport.Token)

	c.Transcriber.Binary = strings.TrimSpace(c.Transcriber.Binary)
	c.Transcriber.Model = strings.TrimSpace(c.Transcriber.Model)
	if c.Transcriber.Timeout <= 0 {
		c.Transcriber.Timeout = defaultTranscriberTimeout
	}

	c.Tagger.APIKey = strings.TrimSpace(c.Tagger.APIKey)
	c.Tagger.Model = strings.TrimSpace(c.Tagger.Model)
	if c.Tagger.BaseURL = strings.TrimSpace(c.Tagger.BaseURL); c.Tagger.BaseURL == "" {
		c.Tagger.BaseURL = defaultTaggerBaseURL
	}
	if c.Tagger.TimeoutSeconds <= 0 {
		c.Tagger.TimeoutSeconds = defaultTaggerTimeout
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}

	c.Telemetry.Endpoint = strings.TrimSpace(c.Telemetry.Endpoint)
	if c.Telemetry.RequestTimeout <= 0 {
		c.Telemetry.RequestTimeout = defaultTelemetryTimeout
	}

	if c.History.Limit <= 0 {
		c.History.Limit = defaultHistoryLimit
	}

	if c.Watch.PollInterval <= 0 {
		c.Watch.PollInterval = defaultWatchPollInterval
	}
	if c.Watch.Category = strings.TrimSpace(c.Watch.Category); c.Watch.Category == "" {
		c.Watch.Category = defaultWatchCategory
	}
	if c.Watch.Privacy = strings.TrimSpace(c.Watch.Privacy); c.Watch.Privacy == "" {
		c.Watch.Privacy = defaultWatchPrivacy
	}

	if c.Logging.Format = strings.TrimSpace(c.Logging.Format); c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level = strings.TrimSpace(c.Logging.Level); c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
