package lean

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StubRunner satisfies Runner without spawning anything. It drops canned
// artifact bytes into the workspace and returns whatever outcome it was
// configured with. Tests inject it wherever a Runner is taken.
type StubRunner struct {
	Report  []byte
	Summary []byte
	Err     error
	Delay   time.Duration
}

var _ Runner = (*StubRunner)(nil)

func (r *StubRunner) Run(ctx context.Context, workDir, configPath string) (*RawResult, error) {
	if r.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.Delay):
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}

	result := &RawResult{
		WorkDir:     workDir,
		ConfigPath:  configPath,
		ReportPath:  filepath.Join(workDir, ReportFileName),
		SummaryPath: filepath.Join(workDir, SummaryFileName),
	}
	if err := os.WriteFile(result.ReportPath, r.Report, 0o644); err != nil {
		return nil, fmt.Errorf("write stub report: %w", err)
	}
	if err := os.WriteFile(result.SummaryPath, r.Summary, 0o644); err != nil {
		return nil, fmt.Errorf("write stub summary: %w", err)
	}

	return result, nil
}
