package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"courier/internal/history"
	"courier/internal/logging"
	"courier/internal/notifications"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect completed uploads",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		logger = logging.NewNop()
	}
	return history.NewStore(cfg.HistoryPath(), cfg.History.Limit, logger), nil
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent uploads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}

			entries := store.List(limit)
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Name,
					humanize.IBytes(uint64(entry.Size)),
					entry.Category,
					entry.UploadedAt.Local().Format(time.DateTime),
					entry.URL,
				})
			}
			table := renderTable(
				[]string{"File", "Size", "Category", "Uploaded", "URL"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprint(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum entries to show (0 shows everything)")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the upload history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}

			count := store.Count()
			if err := store.Clear(); err != nil {
				return err
			}

			if err := notifications.NewService(cfg).NotifyHistoryCleared(cmd.Context()); err != nil {
				logger, lerr := ctx.ensureLogger()
				if lerr == nil {
					logger.Warn("history notification failed", logging.Error(err))
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d history entr%s\n", count, pluralY(count))
			return nil
		},
	}
}

func pluralY(count int) string {
	if count == 1 {
		return "y"
	}
	return "ies"
}
