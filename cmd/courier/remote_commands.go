package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/logging"
	"courier/internal/telemetry"
)

func newRemoteCommand(ctx *commandContext) *cobra.Command {
	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage files already on the remote store",
	}

	remoteCmd.AddCommand(newRemoteDeleteCommand(ctx))
	remoteCmd.AddCommand(newRemoteUpdateCommand(ctx))

	return remoteCmd
}

func newRemoteDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <remote-id>",
		Short: "Delete an uploaded file from the remote store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if err := ctx.newTransport(cfg).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			logger, err := ctx.ensureLogger()
			if err == nil {
				logger.Info("remote file deleted", logging.String("remote_id", args[0]))
				telemetry.NewRecorder(cfg, logger).Track(cmd.Context(), telemetry.EventFileDeleted, map[string]any{
					"remote_id": args[0],
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newRemoteUpdateCommand(ctx *commandContext) *cobra.Command {
	var metadataJSON string
	var fields []string

	cmd := &cobra.Command{
		Use:   "update <remote-id>",
		Short: "Update metadata of an uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			metadata, err := buildMetadataPatch(metadataJSON, fields)
			if err != nil {
				return err
			}
			if len(metadata) == 0 {
				return fmt.Errorf("nothing to update: pass --json or --set key=value")
			}

			if err := ctx.newTransport(cfg).UpdateMetadata(cmd.Context(), args[0], metadata); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated metadata for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&metadataJSON, "json", "", "Metadata patch as a JSON object")
	cmd.Flags().StringSliceVar(&fields, "set", nil, "Metadata field as key=value (repeatable)")
	return cmd
}

func buildMetadataPatch(raw string, fields []string) (map[string]any, error) {
	metadata := make(map[string]any)

	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return nil, fmt.Errorf("parse metadata JSON: %w", err)
		}
	}

	for _, field := range fields {
		key, value, found := strings.Cut(field, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --set value %q, expected key=value", field)
		}
		metadata[key] = strings.TrimSpace(value)
	}

	return metadata, nil
}
