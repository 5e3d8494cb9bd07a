// Package scheduler persists "post this at time T" jobs and executes them when due.
//
// The Engine is the only writer of job state transitions. Draft files feed it
// through ScheduleAt; the daemon drives RunDueJobs on a tick.
package scheduler

import (
	"context"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"socialia/internal/jitter"
	"socialia/internal/job"
	"socialia/internal/platform"
	"socialia/internal/storage"
	logx "socialia/pkg/logx"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = storage.ErrNotFound
	// ErrNotPending is returned when cancelling a job that already finished.
	ErrNotPending = errors.New("job is not pending")
)

// PostedHook runs after a job completes successfully, before its source file
// is moved to posted/. Errors are logged and never fail the job.
type PostedHook func(ctx context.Context, j job.Job) error

// Options tunes an Engine. Zero values pick sensible defaults.
type Options struct {
	// Location interprets wall-clock schedule strings. Defaults to time.Local.
	Location *time.Location
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// Rand drives jitter. Defaults to a time-seeded source.
	Rand *rand.Rand
	// OnPosted is called for every completed job.
	OnPosted PostedHook
}

type Engine struct {
	store    storage.Store
	registry *platform.Registry
	log      logx.Logger

	loc      *time.Location
	now      func() time.Time
	onPosted PostedHook

	rmu sync.Mutex
	rng *rand.Rand
}

func New(store storage.Store, registry *platform.Registry, log logx.Logger, opts Options) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		store:    store,
		registry: registry,
		log:      log,
		loc:      opts.Location,
		now:      opts.Now,
		rng:      opts.Rand,
		onPosted: opts.OnPosted,
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rng == nil {
		e.rng = jitter.NewRand("scheduler")
	}
	return e
}

// SetPostedHook replaces the completion hook. It must be called before the
// engine starts running jobs.
func (e *Engine) SetPostedHook(h PostedHook) { e.onPosted = h }

// Location returns the zone schedule strings are interpreted in.
func (e *Engine) Location() *time.Location { return e.loc }

// Now returns the engine clock in its location.
func (e *Engine) Now() time.Time { return e.now().In(e.loc) }

func (e *Engine) jitter(ts time.Time, maxMinutes int, bias jitter.Bias) (time.Time, int) {
	e.rmu.Lock()
	defer e.rmu.Unlock()
	return jitter.Apply(ts, maxMinutes, bias, e.rng)
}

// Cancel flips a pending job to cancelled.
func (e *Engine) Cancel(ctx context.Context, id string) (job.Job, error) {
	j, err := e.store.Update(ctx, id, func(j *job.Job) error {
		if !j.Cancel(job.ReasonUser) {
			return errors.Wrapf(ErrNotPending, "job %s is %s", j.ID, j.Status)
		}
		return nil
	})
	if err != nil {
		return j, err
	}
	e.log.Info("job cancelled", logx.String("job_id", id))
	return j, nil
}

// CancelWithReason is Cancel with an explicit cancel_reason.
func (e *Engine) CancelWithReason(ctx context.Context, id, reason string) (job.Job, error) {
	return e.store.Update(ctx, id, func(j *job.Job) error {
		if !j.Cancel(reason) {
			return errors.Wrapf(ErrNotPending, "job %s is %s", j.ID, j.Status)
		}
		return nil
	})
}

// UpdateSourcePath rewrites source_file on pending jobs after a draft file moved.
func (e *Engine) UpdateSourcePath(ctx context.Context, oldPath, newPath string) (int, error) {
	updated := 0
	err := e.store.Mutate(ctx, func(jobs []job.Job) (bool, error) {
		for i := range jobs {
			if jobs[i].Status == job.StatusPending && samePath(jobs[i].SourceFile, oldPath) {
				jobs[i].SourceFile = newPath
				updated++
			}
		}
		return updated > 0, nil
	})
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		e.log.Info("source path updated", logx.String("old", oldPath), logx.String("new", newPath), logx.Int("jobs", updated))
	}
	return updated, nil
}

// List returns pending jobs (or every job when full), ordered by scheduled time.
func (e *Engine) List(ctx context.Context, full bool) ([]job.Job, error) {
	jobs, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := jobs
	if !full {
		out = make([]job.Job, 0, len(jobs))
		for _, j := range jobs {
			if j.Status == job.StatusPending {
				out = append(out, j)
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ScheduledFor.Before(out[b].ScheduledFor) })
	return out, nil
}

// JobsForSource returns every job (any status) referencing path.
func (e *Engine) JobsForSource(ctx context.Context, path string) ([]job.Job, error) {
	jobs, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []job.Job
	for _, j := range jobs {
		if samePath(j.SourceFile, path) {
			out = append(out, j)
		}
	}
	return out, nil
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
