// Package storage persists scheduled jobs.
//
// Two drivers are available:
//   - "file": a single JSON array rewritten atomically on every change (default)
//   - "sqlite": one row per job in a SQLite database (modernc.org/sqlite, no cgo)
//
// Every Load self-heals the store: pending jobs whose source draft file has
// disappeared are cancelled and the result is persisted.
package storage

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"socialia/internal/job"
)

// ErrNotFound is returned by Update for unknown job ids.
var ErrNotFound = errors.New("job not found")

// Config configures storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the scheduler.
type Store interface {
	// Load returns all jobs in insertion order after sweeping orphans.
	Load(ctx context.Context) ([]job.Job, error)
	// Save replaces the stored list.
	Save(ctx context.Context, jobs []job.Job) error
	// Append durably adds one job.
	Append(ctx context.Context, j job.Job) error
	// Update applies fn to the job with id and persists it when fn returns nil.
	Update(ctx context.Context, id string, fn func(*job.Job) error) (job.Job, error)
	// Mutate runs fn over the whole list under the store lock and persists the
	// list when fn reports a change.
	Mutate(ctx context.Context, fn func(jobs []job.Job) (changed bool, err error)) error
	Close() error
}

// Find returns the job with id.
func Find(ctx context.Context, s Store, id string) (job.Job, bool, error) {
	jobs, err := s.Load(ctx)
	if err != nil {
		return job.Job{}, false, err
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, true, nil
		}
	}
	return job.Job{}, false, nil
}

// Filter returns the jobs with the given status (all jobs when status is empty).
func Filter(ctx context.Context, s Store, status job.Status) ([]job.Job, error) {
	jobs, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return jobs, nil
	}
	out := jobs[:0:0]
	for _, j := range jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}
