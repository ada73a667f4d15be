package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUploads(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUploads() error {
	if c.Uploads.MaxConcurrent < 1 {
		return errors.New("uploads.max_concurrent must be at least 1")
	}
	if c.Uploads.MaxFileSizeMB < 1 {
		return errors.New("uploads.max_file_size_mb must be at least 1")
	}
	for _, t := range c.Uploads.AllowedTypes {
		if t == "*/*" {
			continue
		}
		if !strings.Contains(t, "/") {
			return fmt.Errorf("uploads.allowed_types entry %q is not a MIME type", t)
		}
	}
	return nil
}

func (c *Config) validateTransport() error {
	if c.Transport.Endpoint == "" {
		return nil
	}
	parsed, err := url.Parse(c.Transport.Endpoint)
	if err != nil {
		return fmt.Errorf("transport.endpoint is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("transport.endpoint must be http or https, got %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateWatch() error {
	switch c.Watch.Privacy {
	case "private", "public":
		return nil
	default:
		return fmt.Errorf("watch.privacy must be private or public, got %q", c.Watch.Privacy)
	}
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
