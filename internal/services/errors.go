// Package services defines the error taxonomy shared by the upload pipeline
// stages and their external collaborators.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courier/internal/queue"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrTransfer      = errors.New("transfer error")
	ErrCancelled     = errors.New("cancelled")
	ErrEnrichment    = errors.New("enrichment error")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a stage error to the queue status the uploader should
// persist after the stage fails. A user-initiated cancellation is not a
// failure and maps to the cancelled state.
func FailureStatus(err error) queue.Status {
	if IsCancelled(err) {
		return queue.StatusCancelled
	}
	return queue.StatusFailed
}

// IsCancelled reports whether an error originated in a user cancellation
// rather than a genuine failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
