// Package transcriber shells out to an external speech-to-text tool to
// produce transcripts for audio and video uploads. The tool is optional:
// when the binary is missing the stage degrades to an empty transcript.
package transcriber

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"courier/internal/services"
)

// Config carries the external tool settings.
type Config struct {
	Binary  string
	Model   string
	Timeout time.Duration
}

// Service wraps the external transcription binary.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService creates a transcriber service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

// Available reports whether the transcription binary can be executed.
func (s *Service) Available() bool {
	if strings.TrimSpace(s.cfg.Binary) == "" {
		return false
	}
	if s.commandRunner != nil {
		return true
	}
	_, err := exec.LookPath(s.cfg.Binary)
	return err == nil
}

// Transcribe runs the external tool against the source file and returns the
// plain-text transcript. An unavailable tool yields an empty transcript
// without error so uploads proceed.
func (s *Service) Transcribe(ctx context.Context, source string) (string, error) {
	if source == "" {
		return "", services.Wrap(services.ErrValidation, "transcript", "transcribe", "source path required", nil)
	}
	if !s.Available() {
		return "", nil
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	args := []string{"--output-format", "txt"}
	if s.cfg.Model != "" {
		args = append(args, "--model", s.cfg.Model)
	}
	args = append(args, "--", source)

	output, err := s.run(ctx, s.cfg.Binary, args...)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcript", "transcribe", "", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}
