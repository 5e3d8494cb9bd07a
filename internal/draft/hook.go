package draft

import (
	"context"
	"time"

	"socialia/internal/job"
	"socialia/internal/platform"
	"socialia/internal/scheduler"
)

// CompletionHook marks the originating draft DONE when the scheduler posts a
// job that came from a draft file, so a later `org post` won't post it again.
func CompletionHook(loc *time.Location) scheduler.PostedHook {
	return func(ctx context.Context, j job.Job) error {
		if !j.FromDraft() || j.Result == nil {
			return nil
		}
		f, err := Open(j.SourceFile, loc)
		if err != nil {
			return err
		}
		d, ok := findDraft(f.Parse(), j)
		if !ok || !d.IsPending() {
			return nil
		}
		at := time.Now()
		if j.ExecutedAt != nil {
			at = *j.ExecutedAt
		}
		return markPostedIn(f, d, at, *j.Result)
	}
}

func findDraft(drafts []Draft, j job.Job) (Draft, bool) {
	if j.DraftID != "" {
		for _, d := range drafts {
			if d.DraftID == j.DraftID {
				return d, true
			}
		}
	}
	for _, d := range drafts {
		if d.Headline == j.Headline {
			return d, true
		}
	}
	return Draft{}, false
}

func markPosted(path string, loc *time.Location, d Draft, at time.Time, res platform.Result) error {
	f, err := Open(path, loc)
	if err != nil {
		return err
	}
	return markPostedIn(f, d, at, res)
}

func markPostedIn(f *File, d Draft, at time.Time, res platform.Result) error {
	if err := f.SetStatus(d, StatusDone); err != nil {
		return err
	}
	if err := f.SetProperty(d, PropPostedAt, at.Format(time.RFC3339)); err != nil {
		return err
	}
	if res.ID != "" {
		if err := f.SetProperty(d, PropPostID, res.ID); err != nil {
			return err
		}
	}
	if res.URL != "" {
		if err := f.SetProperty(d, PropPostURL, res.URL); err != nil {
			return err
		}
	}
	return nil
}
