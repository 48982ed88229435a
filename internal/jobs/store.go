// Package jobs tracks backtest jobs: an in-memory registry with monotonic
// status transitions, and the manager that drives each job through config
// generation, the engine run and normalization.
package jobs

import (
	"errors"
	"fmt"
	"sync"

	"leanroom/internal/domain"
)

// ErrNotFound is returned by Get for unknown job ids.
var ErrNotFound = errors.New("job not found")

// Store is the process-wide job registry, alive for the process lifetime.
// Writes for a given id are confined to the goroutine that owns the job's
// execution; reads hand out snapshots and never expose internal state.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*domain.Job)}
}

// Create registers a new job. The job must be in the queued state and its
// id must be unused.
func (s *Store) Create(job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if job.Status != domain.JobQueued {
		return fmt.Errorf("job %s created with status %s, want %s", job.ID, job.Status, domain.JobQueued)
	}

	stored := cloneJob(&job)
	s.jobs[job.ID] = &stored
	return nil
}

// MarkRunning moves a queued job to running.
func (s *Store) MarkRunning(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status != domain.JobQueued {
		return fmt.Errorf("job %s: cannot start from %s", id, job.Status)
	}
	job.Status = domain.JobRunning
	return nil
}

// Complete moves a running job to completed and attaches its result.
func (s *Store) Complete(id string, result *domain.BacktestResult, artifacts *domain.JobArtifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status != domain.JobRunning {
		return fmt.Errorf("job %s: cannot complete from %s", id, job.Status)
	}
	job.Status = domain.JobCompleted
	job.Result = result
	job.Artifacts = artifacts
	return nil
}

// Fail moves a running job to failed and records the diagnostic.
func (s *Store) Fail(id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status != domain.JobRunning {
		return fmt.Errorf("job %s: cannot fail from %s", id, job.Status)
	}
	job.Status = domain.JobFailed
	job.Error = message
	return nil
}

// Get returns a snapshot of the job: a copy deep enough that callers
// cannot reach store state through it.
func (s *Store) Get(id string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneJob(job), nil
}

// cloneJob deep-copies a job record. Must be called with mu held (read or
// write).
func cloneJob(job *domain.Job) domain.Job {
	out := *job
	if job.Parameters != nil {
		out.Parameters = make(map[string]any, len(job.Parameters))
		for k, v := range job.Parameters {
			out.Parameters[k] = v
		}
	}
	if job.Artifacts != nil {
		artifacts := *job.Artifacts
		out.Artifacts = &artifacts
	}
	if job.Result != nil {
		out.Result = cloneResult(job.Result)
	}
	return out
}

// cloneResult deep-copies a result, keeping empty slices empty rather than
// nil so serialized output stays stable.
func cloneResult(r *domain.BacktestResult) *domain.BacktestResult {
	out := &domain.BacktestResult{
		PriceSeries: cloneSlice(r.PriceSeries),
		EquityCurve: cloneSlice(r.EquityCurve),
		Trades:      cloneSlice(r.Trades),
		Orders:      cloneSlice(r.Orders),
		Metrics:     r.Metrics,
	}
	if r.Indicators != nil {
		out.Indicators = make(map[string][]domain.SeriesPoint, len(r.Indicators))
		for name, points := range r.Indicators {
			out.Indicators[name] = cloneSlice(points)
		}
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
