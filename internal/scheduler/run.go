package scheduler

import (
	"context"
	"fmt"
	"os"

	"socialia/internal/job"
	"socialia/internal/platform"
	"socialia/internal/stage"
	logx "socialia/pkg/logx"
)

// JobResult is the outcome of one executed job.
type JobResult struct {
	JobID    string `json:"job_id"`
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunDueJobs posts every pending job whose time has come.
//
// Failures are recorded per job (status failed plus error text) and never stop
// the batch. When every job of a draft file has completed or been cancelled,
// the file is moved to the sibling posted/ directory. The returned error is
// only set when the store cannot be read or ctx is cancelled mid-batch.
func (e *Engine) RunDueJobs(ctx context.Context) ([]JobResult, error) {
	now := e.Now()
	jobs, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var (
		results   []JobResult
		completed []string
		seen      = map[string]bool{}
	)
	for _, j := range jobs {
		if !j.Due(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, errText := e.post(ctx, j)
		updated, err := e.store.Update(ctx, j.ID, func(cur *job.Job) error {
			cur.Finish(now, res, errText)
			return nil
		})
		if err != nil {
			e.log.Error("record job outcome failed", logx.String("job_id", j.ID), logx.Err(err))
			updated = j
			updated.Finish(now, res, errText)
		}

		r := JobResult{JobID: j.ID, Platform: j.Platform, Success: updated.Status == job.StatusCompleted, Error: updated.Error}
		if res != nil {
			r.ID, r.URL = res.ID, res.URL
		}
		results = append(results, r)

		if !r.Success {
			e.log.Warn("job failed", logx.String("job_id", j.ID), logx.String("platform", j.Platform), logx.String("error", r.Error))
			continue
		}
		e.log.Info("job posted", logx.String("job_id", j.ID), logx.String("platform", j.Platform), logx.String("url", r.URL))
		e.runPostedHook(ctx, updated)
		if updated.FromDraft() && !seen[updated.SourceFile] {
			seen[updated.SourceFile] = true
			completed = append(completed, updated.SourceFile)
		}
	}

	for _, src := range completed {
		if err := e.archiveIfDone(ctx, src); err != nil {
			e.log.Warn("move to posted failed", logx.String("file", src), logx.Err(err))
		}
	}
	return results, nil
}

// post resolves the client and publishes j, converting every failure
// (including panics) into error text.
func (e *Engine) post(ctx context.Context, j job.Job) (res *platform.Result, errText string) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			errText = fmt.Sprintf("panic: %v", rec)
		}
	}()
	client, err := e.registry.Client(j.Platform)
	if err != nil {
		return nil, err.Error()
	}
	out, err := client.Post(ctx, j.Text, j.Kwargs)
	if err != nil {
		return nil, err.Error()
	}
	if !out.Success && out.Error == "" {
		out.Error = "post rejected"
	}
	return &out, ""
}

func (e *Engine) runPostedHook(ctx context.Context, j job.Job) {
	if e.onPosted == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("posted hook panicked", logx.String("job_id", j.ID), logx.Any("panic", rec))
		}
	}()
	if err := e.onPosted(ctx, j); err != nil {
		e.log.Warn("posted hook failed", logx.String("job_id", j.ID), logx.Err(err))
	}
}

// archiveIfDone moves src to posted/ once all of its jobs are completed or
// cancelled, then points those jobs at the new path.
func (e *Engine) archiveIfDone(ctx context.Context, src string) error {
	return e.store.Mutate(ctx, func(jobs []job.Job) (bool, error) {
		var idx []int
		for i := range jobs {
			if !samePath(jobs[i].SourceFile, src) {
				continue
			}
			if st := jobs[i].Status; st != job.StatusCompleted && st != job.StatusCancelled {
				return false, nil
			}
			idx = append(idx, i)
		}
		if len(idx) == 0 {
			return false, nil
		}
		if _, err := os.Stat(src); err != nil {
			return false, nil
		}
		dst, moved, err := stage.MoveToPosted(src)
		if err != nil || !moved {
			return false, err
		}
		for _, i := range idx {
			jobs[i].SourceFile = dst
		}
		e.log.Info("draft file archived", logx.String("from", src), logx.String("to", dst))
		return true, nil
	})
}
