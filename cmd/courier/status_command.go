package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"courier/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check readiness of the upload environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.Run(cmd.Context(), cfg)

			rows := make([][]string, 0, len(results))
			for _, result := range results {
				rows = append(rows, []string{
					statusMark(result.Passed),
					result.Name,
					result.Detail,
				})
			}
			table := renderTable([]string{"", "Check", "Detail"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft})
			fmt.Fprint(cmd.OutOrStdout(), table)

			if !preflight.AllPassed(results) {
				return fmt.Errorf("preflight checks failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Ready to upload")
			return nil
		},
	}
}

func statusMark(passed bool) string {
	plain := !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
	switch {
	case passed && plain:
		return "ok"
	case passed:
		return "✓"
	case plain:
		return "FAIL"
	default:
		return "✗"
	}
}
