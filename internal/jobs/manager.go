package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"leanroom/internal/domain"
	"leanroom/internal/lean"
	"leanroom/internal/manifest"
	"leanroom/internal/normalize"
	"leanroom/internal/runconfig"
)

// Manager drives jobs end to end: validation and registration happen
// synchronously in Create, then one goroutine per job runs the engine and
// normalizes its output. Reads never block on executions.
type Manager struct {
	store    *Store
	gen      *runconfig.Generator
	runner   lean.Runner
	workRoot string
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewManager creates a Manager. workRoot is the directory job workspaces
// are created under, one per job, named by job id.
func NewManager(store *Store, gen *runconfig.Generator, runner lean.Runner, workRoot string, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		gen:      gen,
		runner:   runner,
		workRoot: workRoot,
		logger:   logger,
	}
}

// Create validates the request, registers a queued job and launches its
// execution. The returned snapshot is the job as created; callers poll
// Get for progress. Validation failures surface synchronously and no job
// is created for them.
func (m *Manager) Create(req runconfig.Request) (domain.Job, error) {
	entry, err := manifest.Get(req.AlgorithmID)
	if err != nil {
		return domain.Job{}, err
	}
	cfg, err := m.gen.Build(entry, req)
	if err != nil {
		return domain.Job{}, err
	}

	job := domain.Job{
		ID:          uuid.NewString(),
		AlgorithmID: entry.ID,
		Symbol:      cfg.Symbol,
		Timeframe:   cfg.Timeframe,
		StartDate:   cfg.StartDate,
		EndDate:     cfg.EndDate,
		Parameters:  cfg.Parameters,
		Status:      domain.JobQueued,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.Create(job); err != nil {
		return domain.Job{}, err
	}

	m.logger.Info("job queued",
		"job_id", job.ID,
		"algorithm", job.AlgorithmID,
		"symbol", job.Symbol,
		"start", job.StartDate,
		"end", job.EndDate)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(context.Background(), job.ID, entry, cfg)
	}()

	return job, nil
}

// Get returns the latest snapshot of a job.
func (m *Manager) Get(id string) (domain.Job, error) {
	return m.store.Get(id)
}

// Wait blocks until every launched execution has finished. Used on
// shutdown and by tests.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// execute owns the whole lifecycle of one job. It is the only goroutine
// that writes this job's record after creation.
func (m *Manager) execute(ctx context.Context, jobID string, entry manifest.Entry, cfg *runconfig.RunConfig) {
	if err := m.store.MarkRunning(jobID); err != nil {
		m.logger.Error("marking job running", "job_id", jobID, "error", err)
		return
	}

	workDir := filepath.Join(m.workRoot, jobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		m.fail(jobID, fmt.Errorf("create workspace: %w", err))
		return
	}

	configPath, err := m.gen.WriteConfig(workDir, cfg)
	if err != nil {
		m.fail(jobID, err)
		return
	}

	raw, err := m.runner.Run(ctx, workDir, configPath)
	if err != nil {
		m.fail(jobID, err)
		return
	}

	report, err := os.ReadFile(raw.ReportPath)
	if err != nil {
		m.fail(jobID, fmt.Errorf("read report: %w", err))
		return
	}
	summary, err := os.ReadFile(raw.SummaryPath)
	if err != nil {
		m.fail(jobID, fmt.Errorf("read summary: %w", err))
		return
	}

	result, err := normalize.Normalize(report, summary, normalize.Params{
		Symbol: cfg.Symbol,
		Charts: entry.Charts,
	})
	if err != nil {
		m.fail(jobID, err)
		return
	}

	artifacts := &domain.JobArtifacts{
		ConfigPath:  raw.ConfigPath,
		ReportPath:  raw.ReportPath,
		SummaryPath: raw.SummaryPath,
	}
	if err := m.store.Complete(jobID, result, artifacts); err != nil {
		m.logger.Error("completing job", "job_id", jobID, "error", err)
		return
	}

	m.logger.Info("job completed",
		"job_id", jobID,
		"price_points", len(result.PriceSeries),
		"trades", len(result.Trades),
		"orders", len(result.Orders))
}

// fail records a terminal failure. The workspace stays on disk so whatever
// artifacts exist remain inspectable.
func (m *Manager) fail(jobID string, cause error) {
	m.logger.Error("job failed", "job_id", jobID, "error", cause)
	if err := m.store.Fail(jobID, cause.Error()); err != nil {
		m.logger.Error("recording job failure", "job_id", jobID, "error", err)
	}
}
