package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/uploader"
	"courier/internal/validate"
)

// settleWindow is how long a file must sit unmodified before the watcher
// will pick it up. Files still being copied into the drop directory change
// their modification time until the copy finishes.
const settleWindow = 2 * time.Second

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and upload new files as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("inspect watch directory: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			return ctx.withManager(func(cfg *config.Config, store *queue.Store, manager *uploader.Manager) error {
				lock := flock.New(cfg.LockPath())
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire watch lock: %w", err)
				}
				if !locked {
					return fmt.Errorf("another watch is already running (lock %s held)", cfg.LockPath())
				}
				defer lock.Unlock()

				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (poll every %ds, Ctrl-C to stop)\n", dir, cfg.Watch.PollInterval)
				return runWatch(runCtx, ctx, cfg, store, manager, dir, cmd.OutOrStdout())
			})
		},
	}
}

func runWatch(ctx context.Context, cmdCtx *commandContext, cfg *config.Config, store *queue.Store, manager *uploader.Manager, dir string, out io.Writer) error {
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		logger = logging.NewNop()
	}

	seen := make(map[string]struct{})

	interval := time.Duration(cfg.Watch.PollInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := watchScan(ctx, cfg, store, manager, dir, seen, logger, out); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func watchScan(ctx context.Context, cfg *config.Config, store *queue.Store, manager *uploader.Manager, dir string, seen map[string]struct{}, logger *slog.Logger, out io.Writer) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan watch directory: %w", err)
	}

	var candidates []validate.FileInfo
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < settleWindow {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		file := validate.FileInfo{
			Path:         path,
			Name:         entry.Name(),
			Size:         info.Size(),
			MimeType:     sniffMime(path),
			LastModified: info.ModTime(),
		}
		if _, ok := seen[validate.Key(file)]; ok {
			continue
		}
		candidates = append(candidates, file)
	}
	if len(candidates) == 0 {
		return nil
	}

	existing, err := knownUploads(ctx, store)
	if err != nil {
		return err
	}
	result := validate.Validate(candidates, existing, validate.Constraints{
		MaxFileSize:  cfg.MaxFileSizeBytes(),
		AllowedTypes: cfg.Uploads.AllowedTypes,
	})

	// Every scanned candidate is marked seen so rejections are reported once.
	for _, file := range candidates {
		seen[validate.Key(file)] = struct{}{}
	}
	for _, rejection := range result.Rejected {
		logger.Warn("watched file rejected",
			logging.String(logging.FieldFileName, rejection.File.Name),
			logging.String("reason", string(rejection.Reason)))
		fmt.Fprintf(out, "Skipped %s: %s\n", rejection.File.Name, rejection.Message)
	}
	if len(result.Accepted) == 0 {
		return nil
	}

	reqs := make([]uploader.Request, len(result.Accepted))
	for i, file := range result.Accepted {
		reqs[i] = uploader.Request{
			Path:         file.Path,
			Name:         file.Name,
			Size:         file.Size,
			MimeType:     file.MimeType,
			LastModified: file.LastModified,
			Privacy:      cfg.Watch.Privacy,
			Category:     cfg.Watch.Category,
		}
	}

	for _, res := range manager.EnqueueBatch(ctx, reqs) {
		if res.Err != nil {
			fmt.Fprintf(out, "Failed %s: %v\n", res.Name, res.Err)
			continue
		}
		fmt.Fprintf(out, "Uploaded %s (%s)\n", res.Name, res.RemoteURL)
	}
	return nil
}
