package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/telemetry"
	"courier/internal/uploader"
	"courier/internal/validate"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var privacy string
	var category string
	var tags []string

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Validate and upload files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *queue.Store, manager *uploader.Manager) error {
				candidates, err := collectCandidates(args)
				if err != nil {
					return err
				}

				existing, err := knownUploads(cmd.Context(), store)
				if err != nil {
					return err
				}

				result := validate.Validate(candidates, existing, validate.Constraints{
					MaxFileSize:  cfg.MaxFileSizeBytes(),
					AllowedTypes: cfg.Uploads.AllowedTypes,
				})

				out := cmd.OutOrStdout()
				if len(result.Rejected) > 0 {
					reportRejections(ctx, cfg, cmd.Context(), result.Rejected)
					rows := make([][]string, 0, len(result.Rejected))
					for _, rejection := range result.Rejected {
						rows = append(rows, []string{
							rejection.File.Name,
							humanize.IBytes(uint64(rejection.File.Size)),
							rejection.Message,
						})
					}
					fmt.Fprintf(out, "Rejected %d file(s):\n", len(result.Rejected))
					fmt.Fprint(out, renderTable([]string{"File", "Size", "Reason"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
				}

				if len(result.Accepted) == 0 {
					fmt.Fprintln(out, "Nothing to upload")
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
						Privacy:      privacy,
						Category:     category,
						Tags:         tags,
					}
				}

				results := runBatch(cmd.Context(), store, manager, reqs)

				rows := make([][]string, 0, len(results))
				failures := 0
				for i, res := range results {
					detail := res.RemoteURL
					if res.Err != nil {
						detail = res.Err.Error()
						failures++
					}
					rows = append(rows, []string{
						res.Name,
						humanize.IBytes(uint64(reqs[i].Size)),
						string(res.Status),
						detail,
					})
				}
				fmt.Fprint(out, renderTable([]string{"File", "Size", "Status", "Result"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))

				if failures > 0 {
					return fmt.Errorf("%d of %d upload(s) failed", failures, len(results))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&privacy, "privacy", "private", "Visibility of the uploaded files (private or public)")
	cmd.Flags().StringVar(&category, "category", "", "Category assigned to the uploaded files")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag to attach (repeatable)")
	return cmd
}

// collectCandidates stats each argument and builds the validation inputs.
func collectCandidates(args []string) ([]validate.FileInfo, error) {
	candidates := make([]validate.FileInfo, 0, len(args))
	for _, arg := range args {
		path, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		path, err = filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve path: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", arg, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}

		candidates = append(candidates, validate.FileInfo{
			Path:         path,
			Name:         info.Name(),
			Size:         info.Size(),
			MimeType:     sniffMime(path),
			LastModified: info.ModTime(),
		})
	}
	return candidates, nil
}

// sniffMime detects a file's MIME type from its content, without any
// charset parameters so the result compares against allow-list entries.
func sniffMime(path string) string {
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	mime := detected.String()
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

// knownUploads lists prior queue entries for duplicate detection.
func knownUploads(ctx context.Context, store *queue.Store) ([]validate.FileInfo, error) {
	items, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	known := make([]validate.FileInfo, 0, len(items))
	for _, item := range items {
		if item.Status == queue.StatusCancelled {
			continue
		}
		known = append(known, validate.FileInfo{
			Name:         item.Name,
			Size:         item.Size,
			LastModified: item.LastModified,
		})
	}
	return known, nil
}

func reportRejections(ctx *commandContext, cfg *config.Config, cmdCtx context.Context, rejected []validate.Rejection) {
	logger, err := ctx.ensureLogger()
	if err != nil {
		logger = logging.NewNop()
	}

	reasons := make([]string, 0, len(rejected))
	for _, rejection := range rejected {
		reasons = append(reasons, fmt.Sprintf("%s: %s", rejection.File.Name, rejection.Message))
		logger.Warn("file rejected",
			logging.String(logging.FieldFileName, rejection.File.Name),
			logging.String("reason", string(rejection.Reason)))
	}

	notifier := notifications.NewService(cfg)
	if err := notifier.NotifyFilesRejected(cmdCtx, len(rejected), reasons); err != nil {
		logger.Warn("rejection notification failed", logging.Error(err))
	}
	telemetry.NewRecorder(cfg, logger).Track(cmdCtx, telemetry.EventFilesRejected, map[string]any{
		"count": len(rejected),
	})
}

// runBatch executes the uploads while rendering a progress bar on a TTY.
func runBatch(ctx context.Context, store *queue.Store, manager *uploader.Manager, reqs []uploader.Request) []uploader.Result {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return manager.EnqueueBatch(ctx, reqs)
	}

	var totalBytes int64
	for _, req := range reqs {
		totalBytes += req.Size
	}

	bar := progressbar.NewOptions64(totalBytes,
		progressbar.OptionSetDescription(fmt.Sprintf("uploading %d file(s)", len(reqs))),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWriter(os.Stdout),
	)

	done := make(chan []uploader.Result, 1)
	go func() {
		done <- manager.EnqueueBatch(ctx, reqs)
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case results := <-done:
			_ = bar.Finish()
			return results
		case <-ticker.C:
			_ = bar.Set64(batchBytesDone(ctx, store, reqs))
		}
	}
}

// batchBytesDone estimates transferred bytes from persisted item progress.
func batchBytesDone(ctx context.Context, store *queue.Store, reqs []uploader.Request) int64 {
	items, err := store.List(ctx)
	if err != nil {
		return 0
	}
	progressByKey := make(map[string]int, len(items))
	for _, item := range items {
		key := item.Name + "|" + item.SourcePath
		if existing, ok := progressByKey[key]; !ok || item.Progress > existing {
			progressByKey[key] = item.Progress
		}
	}

	var doneBytes int64
	for _, req := range reqs {
		if progress, ok := progressByKey[req.Name+"|"+req.Path]; ok {
			doneBytes += req.Size * int64(progress) / 100
		}
	}
	return doneBytes
}
