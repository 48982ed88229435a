package lean

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// stderrTailLimit bounds how much stderr is kept for diagnostics.
const stderrTailLimit = 2048

// ProcessRunner launches the real engine: command + launcher path +
// "--config <path>", with the job workspace as working directory.
type ProcessRunner struct {
	command  string
	launcher string
	logger   *slog.Logger
}

var _ Runner = (*ProcessRunner)(nil)

// NewProcessRunner creates a runner that invokes launcher through command
// (typically "dotnet").
func NewProcessRunner(command, launcher string, logger *slog.Logger) *ProcessRunner {
	return &ProcessRunner{
		command:  command,
		launcher: launcher,
		logger:   logger,
	}
}

// Run spawns the engine once and waits for it. A non-zero exit or a clean
// exit without the expected artifacts returns a *ProcessError; the
// workspace is kept either way so the artifacts that do exist stay
// inspectable.
func (r *ProcessRunner) Run(ctx context.Context, workDir, configPath string) (*RawResult, error) {
	cmd := exec.CommandContext(ctx, r.command, r.launcher, "--config", configPath)
	cmd.Dir = workDir
	cmd.Stdout = io.Discard

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Info("starting lean",
		"command", r.command,
		"launcher", r.launcher,
		"work_dir", workDir)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr := &ProcessError{
				ExitCode:   exitErr.ExitCode(),
				StderrTail: tailOf(stderr.Bytes()),
			}
			r.logger.Error("lean run failed",
				"exit_code", perr.ExitCode,
				"elapsed", time.Since(start).Round(time.Millisecond))
			return nil, perr
		}
		return nil, fmt.Errorf("start lean: %w", err)
	}

	result := &RawResult{
		WorkDir:     workDir,
		ConfigPath:  configPath,
		ReportPath:  filepath.Join(workDir, ReportFileName),
		SummaryPath: filepath.Join(workDir, SummaryFileName),
	}
	for _, path := range []string{result.ReportPath, result.SummaryPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, &ProcessError{MissingArtifact: filepath.Base(path)}
		}
	}

	r.logger.Info("lean run finished",
		"work_dir", workDir,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return result, nil
}

// tailOf returns at most the last stderrTailLimit bytes of b, trimmed.
func tailOf(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= stderrTailLimit {
		return s
	}
	return s[len(s)-stderrTailLimit:]
}
