// Package lean spawns and supervises LEAN engine processes, one per
// backtest job, each in an isolated workspace.
package lean

import (
	"context"
	"fmt"
)

// Artifact names the engine leaves in the job workspace.
const (
	ReportFileName  = "result.json"
	SummaryFileName = "result-summary.json"
)

// RawResult points at the artifacts one finished engine run produced.
type RawResult struct {
	WorkDir     string
	ConfigPath  string
	ReportPath  string
	SummaryPath string
}

// ProcessError reports an engine run that spawned but did not produce a
// usable result: a non-zero exit, or a clean exit that left an expected
// artifact missing.
type ProcessError struct {
	ExitCode        int
	StderrTail      string
	MissingArtifact string
}

func (e *ProcessError) Error() string {
	if e.MissingArtifact != "" {
		return fmt.Sprintf("lean exited cleanly but produced no %s", e.MissingArtifact)
	}
	if e.StderrTail == "" {
		return fmt.Sprintf("lean exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("lean exited with code %d: %s", e.ExitCode, e.StderrTail)
}

// Runner runs one backtest to completion. workDir must already exist and
// contain the engine config at configPath. Implementations spawn at most
// once per call; there is no retry.
type Runner interface {
	Run(ctx context.Context, workDir, configPath string) (*RawResult, error)
}
