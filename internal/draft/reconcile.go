package draft

import (
	"context"

	"socialia/internal/jitter"
	"socialia/internal/job"
	logx "socialia/pkg/logx"
)

// SyncResult reports what Sync changed.
type SyncResult struct {
	File      string   `json:"file"`
	Added     []string `json:"added"`
	Cancelled []string `json:"cancelled"`
	Unchanged []string `json:"unchanged"`
	Errors    []string `json:"errors,omitempty"`
}

// Plan is the dry-run preview of Sync.
type Plan struct {
	File        string   `json:"file"`
	DryRun      bool     `json:"dry_run"`
	WouldAdd    []string `json:"would_add"`
	WouldCancel []string `json:"would_cancel"`
	Unchanged   []string `json:"unchanged"`
}

// InSync reports whether nothing would be added or cancelled.
func (p Plan) InSync() bool { return len(p.WouldAdd) == 0 && len(p.WouldCancel) == 0 }

type reconciliation struct {
	add       []Draft
	cancel    []job.Job
	duplicate []job.Job
	unchanged []Draft
}

// reconcile pairs pending jobs of this file with pending drafts scheduled in
// the future.
//
// A job pairs with a draft by ID property when the job carries one, otherwise
// by headline (unless both sides carry different IDs). Jobs without a partner
// are cancelled, drafts without a partner are added.
func reconcile(drafts []Draft, jobs []job.Job) reconciliation {
	var r reconciliation
	paired := make([]bool, len(drafts))
	partner := make([]int, len(jobs))
	for i := range partner {
		partner[i] = -1
	}

	for ji, j := range jobs {
		if j.DraftID == "" {
			continue
		}
		for di, d := range drafts {
			if !paired[di] && d.DraftID == j.DraftID {
				paired[di], partner[ji] = true, di
				break
			}
		}
	}
	for ji, j := range jobs {
		if partner[ji] >= 0 {
			continue
		}
		for di, d := range drafts {
			if paired[di] || d.Headline != j.Headline {
				continue
			}
			if j.DraftID != "" && d.DraftID != "" && j.DraftID != d.DraftID {
				continue
			}
			paired[di], partner[ji] = true, di
			break
		}
	}

	for ji, j := range jobs {
		if partner[ji] >= 0 {
			continue
		}
		if matchesAny(drafts, j) {
			r.duplicate = append(r.duplicate, j)
		} else {
			r.cancel = append(r.cancel, j)
		}
	}
	for di, d := range drafts {
		if paired[di] {
			r.unchanged = append(r.unchanged, d)
		} else {
			r.add = append(r.add, d)
		}
	}
	return r
}

// matchesAny reports a second job for a draft that already has one.
func matchesAny(drafts []Draft, j job.Job) bool {
	for _, d := range drafts {
		if (j.DraftID != "" && d.DraftID == j.DraftID) || (j.DraftID == "" && d.Headline == j.Headline) {
			return true
		}
	}
	return false
}

func (m *Manager) reconcile(ctx context.Context) (reconciliation, error) {
	// A draft whose time passed drops out here, so its job is cancelled.
	scheduled, err := m.Scheduled()
	if err != nil {
		return reconciliation{}, err
	}
	all, err := m.engine.JobsForSource(ctx, m.path)
	if err != nil {
		return reconciliation{}, err
	}
	var pending []job.Job
	for _, j := range all {
		if j.Status == job.StatusPending {
			pending = append(pending, j)
		}
	}
	return reconcile(scheduled, pending), nil
}

// Plan previews Sync without changing anything.
func (m *Manager) Plan(ctx context.Context) (Plan, error) {
	r, err := m.reconcile(ctx)
	if err != nil {
		return Plan{}, err
	}
	p := Plan{File: m.path, DryRun: true, WouldAdd: []string{}, WouldCancel: []string{}, Unchanged: []string{}}
	for _, d := range r.add {
		p.WouldAdd = append(p.WouldAdd, d.Headline)
	}
	for _, j := range append(r.cancel, r.duplicate...) {
		p.WouldCancel = append(p.WouldCancel, j.ID)
	}
	for _, d := range r.unchanged {
		p.Unchanged = append(p.Unchanged, d.Headline)
	}
	return p, nil
}

// Sync makes the job store match the file: new scheduled drafts get jobs,
// jobs whose draft is gone (removed, DONE, CANCELLED or unscheduled) are
// cancelled, as are jobs of drafts whose time has already passed. Time edits
// on an already scheduled draft are not propagated. Per-item failures are
// collected in Errors.
func (m *Manager) Sync(ctx context.Context, fluctuation int, bias jitter.Bias) (SyncResult, error) {
	res := SyncResult{File: m.path, Added: []string{}, Cancelled: []string{}, Unchanged: []string{}}
	r, err := m.reconcile(ctx)
	if err != nil {
		return res, err
	}

	cancel := func(j job.Job, reason string) {
		if _, err := m.engine.CancelWithReason(ctx, j.ID, reason); err != nil {
			res.Errors = append(res.Errors, j.ID+": "+err.Error())
			return
		}
		res.Cancelled = append(res.Cancelled, j.ID)
	}
	for _, j := range r.cancel {
		cancel(j, job.ReasonRemovedFromFile)
	}
	for _, j := range r.duplicate {
		cancel(j, job.ReasonDuplicate)
	}
	for _, d := range r.add {
		if _, err := m.Schedule(ctx, d, fluctuation, bias); err != nil {
			res.Errors = append(res.Errors, d.Headline+": "+err.Error())
			continue
		}
		res.Added = append(res.Added, d.Headline)
	}
	for _, d := range r.unchanged {
		res.Unchanged = append(res.Unchanged, d.Headline)
	}

	if len(res.Added) > 0 || len(res.Cancelled) > 0 {
		m.log.Info("draft file synced",
			logx.Int("added", len(res.Added)),
			logx.Int("cancelled", len(res.Cancelled)),
			logx.Int("unchanged", len(res.Unchanged)),
		)
	}
	return res, nil
}
