package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult carries the media attributes a prober returns.
type ProbeResult struct {
	Width           int
	Height          int
	DurationSeconds float64
	BitRate         int64
}

// Probe inspects a media file for stream-level attributes.
type Probe interface {
	Inspect(ctx context.Context, path string) (ProbeResult, error)
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecProbe shells out to ffprobe and decodes its JSON report.
type ExecProbe struct {
	binary string
	run    commandRunner
}

// NewExecProbe builds a probe around the given ffprobe binary.
func NewExecProbe(binary string) *ExecProbe {
	return &ExecProbe{
		binary: binary,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

type ffprobeReport struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func (p *ExecProbe) Inspect(ctx context.Context, path string) (ProbeResult, error) {
	binary := strings.TrimSpace(p.binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, errors.New("ffprobe inspect: empty path")
	}

	output, err := p.run(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var report ffprobeReport
	if err := json.Unmarshal(output, &report); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	result := ProbeResult{
		DurationSeconds: parseFloat(report.Format.Duration),
		BitRate:         parseBitRate(report.Format.BitRate),
	}
	for _, stream := range report.Streams {
		if strings.EqualFold(stream.CodecType, "video") && stream.Width > 0 {
			result.Width = stream.Width
			result.Height = stream.Height
			break
		}
	}
	return result, nil
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}

func parseBitRate(value string) int64 {
	rate := parseFloat(value)
	return int64(rate)
}
