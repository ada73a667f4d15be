// Package preflight verifies that the environment is ready for uploads:
// directories are writable, the transport is configured, and the optional
// external tools are present.
package preflight

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"courier/internal/config"
)

// Result captures the outcome of one environment check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTransport verifies the remote store endpoint is configured and well-formed.
func CheckTransport(cfg *config.Config) Result {
	const name = "Transport"

	endpoint := strings.TrimSpace(cfg.Transport.Endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "no endpoint configured"}
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid endpoint %q", endpoint)}
	}
	detail := parsed.Host
	if strings.TrimSpace(cfg.Transport.Token) == "" {
		detail += " (no token; requests will be unauthenticated)"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckBinary reports whether an external tool is on PATH. Optional tools
// pass with a note when missing.
func CheckBinary(name, command string, optional bool) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		if optional {
			return Result{Name: name, Passed: true, Detail: "not configured (optional)"}
		}
		return Result{Name: name, Detail: "not configured"}
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		if optional {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s not found (optional)", command)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s not found on PATH", command)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// Run evaluates every environment check for the given config.
func Run(ctx context.Context, cfg *config.Config) []Result {
	_ = ctx

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckTransport(cfg),
		CheckBinary("FFprobe", cfg.FFprobeBinary(), true),
	}
	if cfg.Enrichment.Transcript {
		results = append(results, CheckBinary("Transcriber", cfg.Transcriber.Binary, true))
	}
	return results
}

// AllPassed reports whether every check in the set passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
