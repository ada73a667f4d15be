package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/enrich"
	"courier/internal/history"
	"courier/internal/logging"
	"courier/internal/metadata"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/services/tagger"
	"courier/internal/services/transcriber"
	"courier/internal/telemetry"
	"courier/internal/transport"
	"courier/internal/uploader"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		logPath := filepath.Join(cfg.Paths.LogDir, "courier.log")
		c.logger, c.loggerErr = logging.NewForFile(cfg.Logging.Level, cfg.Logging.Format, logPath, nil)
	})
	return c.logger, c.loggerErr
}

// withStore opens the queue database for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withManager assembles the full upload pipeline around an open store.
func (c *commandContext) withManager(fn func(*config.Config, *queue.Store, *uploader.Manager) error) error {
	return c.withStore(func(cfg *config.Config, store *queue.Store) error {
		manager, err := c.buildManager(cfg, store)
		if err != nil {
			return err
		}
		return fn(cfg, store, manager)
	})
}

func (c *commandContext) buildManager(cfg *config.Config, store *queue.Store) (*uploader.Manager, error) {
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	var transcribe enrich.Transcriber
	if cfg.Enrichment.Transcript {
		transcribe = transcriber.NewService(transcriber.Config{
			Binary:  cfg.Transcriber.Binary,
			Model:   cfg.Transcriber.Model,
			Timeout: time.Duration(cfg.Transcriber.Timeout) * time.Second,
		})
	}

	var suggest enrich.Tagger
	if cfg.Enrichment.AITags && cfg.Tagger.APIKey != "" {
		suggest = taggerAdapter{client: tagger.NewClient(tagger.Config{
			APIKey:         cfg.Tagger.APIKey,
			BaseURL:        cfg.Tagger.BaseURL,
			Model:          cfg.Tagger.Model,
			TimeoutSeconds: cfg.Tagger.TimeoutSeconds,
		})}
	}

	return uploader.New(uploader.Deps{
		Config:    cfg,
		Store:     store,
		Transport: c.newTransport(cfg),
		Extractor: metadata.NewExtractor(metadata.NewExecProbe(cfg.FFprobeBinary())),
		Enricher:  enrich.NewPipeline(logger, transcribe, suggest, cfg.Enrichment.TextLimitKB),
		History:   history.NewStore(cfg.HistoryPath(), cfg.History.Limit, logger),
		Notifier:  notifications.NewService(cfg),
		Telemetry: telemetry.NewRecorder(cfg, logger),
		Logger:    logger,
	})
}

func (c *commandContext) newTransport(cfg *config.Config) transport.Transport {
	return transport.NewHTTPTransport(cfg.Transport.Endpoint, transport.StaticToken(cfg.Transport.Token))
}

// taggerAdapter bridges the tagger client into the enrichment pipeline.
type taggerAdapter struct {
	client *tagger.Client
}

func (a taggerAdapter) Enabled() bool {
	return a.client.Enabled()
}

func (a taggerAdapter) Suggest(ctx context.Context, name, mimeType, excerpt string) (enrich.Suggestion, error) {
	suggestion, err := a.client.Suggest(ctx, name, mimeType, excerpt)
	if err != nil {
		return enrich.Suggestion{}, err
	}
	return enrich.Suggestion{
		Tags:     suggestion.Tags,
		Summary:  suggestion.Summary,
		Category: suggestion.Category,
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
