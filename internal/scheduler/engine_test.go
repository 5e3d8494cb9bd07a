package scheduler

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"socialia/internal/jitter"
	"socialia/internal/job"
	"socialia/internal/platform"
	"socialia/internal/stage"
	"socialia/internal/storage"
	"socialia/internal/timeexpr"
	logx "socialia/pkg/logx"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	engine *Engine
	store  storage.Store
	clock  *clock
	reg    *platform.Registry
	tw     *platform.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "scheduled.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	c := &clock{t: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)}
	reg := platform.NewRegistry()
	tw := &platform.Recorder{PlatformName: "twitter"}
	reg.Use(tw)
	e := New(st, reg, logx.Nop(), Options{Location: time.UTC, Now: c.Now, Rand: rand.New(rand.NewSource(7))})
	return &fixture{engine: e, store: st, clock: c, reg: reg, tw: tw}
}

func TestSchedulePostRelative(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.SchedulePost(ctx, "twitter", "hello", "+2h", 0, jitter.BiasNone, nil)
	if err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}
	if want := f.clock.t.Add(2 * time.Hour); !res.ScheduledFor.Equal(want) {
		t.Fatalf("scheduled_for = %v, want %v", res.ScheduledFor, want)
	}
	if res.OriginalTime != nil || res.FluctuationMinutes != nil {
		t.Fatalf("jitter fields set without fluctuation: %+v", res)
	}
	j, ok, _ := storage.Find(ctx, f.store, res.JobID)
	if !ok || j.Status != job.StatusPending || j.OriginalTime != nil {
		t.Fatalf("stored job = %+v", j)
	}
}

func TestSchedulePostBadTimeCreatesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.SchedulePost(ctx, "twitter", "hello", "+2d", 0, jitter.BiasNone, nil)
	if !timeexpr.IsParseError(err) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	jobs, _ := f.store.Load(ctx)
	if len(jobs) != 0 {
		t.Fatalf("jobs created on parse error: %+v", jobs)
	}
}

func TestSchedulePostEarlyBias(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		res, err := f.engine.SchedulePost(ctx, "twitter", "hi", "2025-06-11 12:00", 15, jitter.BiasEarly, nil)
		if err != nil {
			t.Fatalf("SchedulePost: %v", err)
		}
		if res.OriginalTime == nil || res.FluctuationMinutes == nil {
			t.Fatalf("missing jitter fields: %+v", res)
		}
		if res.ScheduledFor.After(*res.OriginalTime) {
			t.Fatalf("early bias scheduled after original: %v > %v", res.ScheduledFor, *res.OriginalTime)
		}
		if d := res.OriginalTime.Sub(res.ScheduledFor); d > 15*time.Minute {
			t.Fatalf("offset %v exceeds bound", d)
		}
		if got := time.Duration(*res.FluctuationMinutes) * time.Minute; !res.OriginalTime.Add(got).Equal(res.ScheduledFor) {
			t.Fatalf("recorded offset %d does not match", *res.FluctuationMinutes)
		}
	}
}

func TestSchedulePostPromotesDraftKwargs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.engine.SchedulePost(ctx, "Twitter", "hi", "10:00", 0, jitter.BiasNone, platform.Options{
		"source_file": "/tmp/a.org",
		"headline":    "Launch",
		"draft_id":    "launch-1",
		"reply_to":    "99",
	})
	if err != nil {
		t.Fatalf("SchedulePost: %v", err)
	}
	j, _, _ := storage.Find(ctx, f.store, res.JobID)
	if j.SourceFile != "/tmp/a.org" || j.Headline != "Launch" || j.DraftID != "launch-1" || j.Platform != "twitter" {
		t.Fatalf("promoted fields wrong: %+v", j)
	}
	if _, ok := j.Kwargs["source_file"]; ok || j.Kwargs.String("reply_to") != "99" {
		t.Fatalf("kwargs = %v", j.Kwargs)
	}
	// 10:00 after 09:00 is today.
	if want := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC); !j.ScheduledFor.Equal(want) {
		t.Fatalf("scheduled_for = %v", j.ScheduledFor)
	}
}

func TestRunDueJobsOnlyDue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	due, _ := f.engine.SchedulePost(ctx, "twitter", "now", "+1m", 0, jitter.BiasNone, nil)
	later, _ := f.engine.SchedulePost(ctx, "twitter", "later", "+3h", 0, jitter.BiasNone, nil)

	f.clock.Advance(time.Minute)
	results, err := f.engine.RunDueJobs(ctx)
	if err != nil {
		t.Fatalf("RunDueJobs: %v", err)
	}
	if len(results) != 1 || results[0].JobID != due.JobID || !results[0].Success {
		t.Fatalf("results = %+v", results)
	}
	if f.tw.Count() != 1 {
		t.Fatalf("posts = %d", f.tw.Count())
	}

	jobs, _ := f.store.Load(ctx)
	for _, j := range jobs {
		switch j.ID {
		case due.JobID:
			if j.Status != job.StatusCompleted || j.ExecutedAt == nil || j.Result == nil {
				t.Fatalf("due job = %+v", j)
			}
		case later.JobID:
			if j.Status != job.StatusPending {
				t.Fatalf("future job ran: %+v", j)
			}
		}
		if j.Due(f.clock.t) {
			t.Fatalf("due job left pending: %+v", j)
		}
	}

	again, _ := f.engine.RunDueJobs(ctx)
	if len(again) != 0 {
		t.Fatalf("completed job re-run: %+v", again)
	}
}

func TestRunDueJobsCapturesFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.reg.Use(&platform.Recorder{PlatformName: "linkedin", Fail: true})
	f.reg.Use(&platform.Recorder{PlatformName: "reddit", Err: errors.New("connection reset")})
	f.reg.Use(&platform.Recorder{PlatformName: "slack", Panic: "nil map"})

	for _, p := range []string{"linkedin", "reddit", "slack", "mastodon", "twitter"} {
		if _, err := f.engine.SchedulePost(ctx, p, "x", "+1m", 0, jitter.BiasNone, nil); err != nil {
			t.Fatalf("schedule %s: %v", p, err)
		}
	}
	f.clock.Advance(2 * time.Minute)
	results, err := f.engine.RunDueJobs(ctx)
	if err != nil {
		t.Fatalf("RunDueJobs: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}
	byPlatform := map[string]JobResult{}
	for _, r := range results {
		byPlatform[r.Platform] = r
	}
	for _, p := range []string{"linkedin", "reddit", "slack", "mastodon"} {
		if r := byPlatform[p]; r.Success || r.Error == "" {
			t.Fatalf("%s result = %+v", p, r)
		}
	}
	if !byPlatform["twitter"].Success {
		t.Fatalf("twitter failed despite others: %+v", byPlatform["twitter"])
	}
	failed, _ := storage.Filter(ctx, f.store, job.StatusFailed)
	if len(failed) != 4 {
		t.Fatalf("failed jobs = %d, want 4", len(failed))
	}
}

func TestRunDueJobsArchivesFinishedDraftFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	dirs, err := stage.EnsureProjectDirs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dirs[stage.Scheduled], "week.org")
	if err := os.WriteFile(src, []byte("** TODO a\nbody\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var hooked []string
	f.engine.SetPostedHook(func(_ context.Context, j job.Job) error {
		hooked = append(hooked, j.Headline)
		return nil
	})

	first, _ := f.engine.ScheduleAt(ctx, ScheduleRequest{Platform: "twitter", Text: "a", When: f.clock.t, SourceFile: src, Headline: "a"})
	second, _ := f.engine.ScheduleAt(ctx, ScheduleRequest{Platform: "twitter", Text: "b", When: f.clock.t.Add(time.Hour), SourceFile: src, Headline: "b"})

	if _, err := f.engine.RunDueJobs(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("file moved while a job is still pending: %v", err)
	}

	f.clock.Advance(time.Hour)
	if _, err := f.engine.RunDueJobs(ctx); err != nil {
		t.Fatal(err)
	}
	posted := filepath.Join(dirs[stage.Posted], "week.org")
	if _, err := os.Stat(posted); err != nil {
		t.Fatalf("file not archived: %v", err)
	}
	for _, id := range []string{first.JobID, second.JobID} {
		j, _, _ := storage.Find(ctx, f.store, id)
		if j.SourceFile != posted || j.Status != job.StatusCompleted {
			t.Fatalf("job %s = %+v", id, j)
		}
	}
	if len(hooked) != 2 {
		t.Fatalf("hook calls = %v", hooked)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	res, _ := f.engine.SchedulePost(ctx, "twitter", "x", "+1h", 0, jitter.BiasNone, nil)
	before, _ := f.store.Load(ctx)

	if _, err := f.engine.Cancel(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel unknown = %v", err)
	}
	after, _ := f.store.Load(ctx)
	if len(after) != len(before) || after[0].Status != before[0].Status {
		t.Fatalf("store changed by unknown cancel")
	}

	j, err := f.engine.Cancel(ctx, res.JobID)
	if err != nil || j.Status != job.StatusCancelled || j.CancelReason != job.ReasonUser {
		t.Fatalf("cancel = %+v, %v", j, err)
	}
	if _, err := f.engine.Cancel(ctx, res.JobID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("second cancel = %v", err)
	}
}

func TestListOrdering(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	late, _ := f.engine.SchedulePost(ctx, "twitter", "late", "+5h", 0, jitter.BiasNone, nil)
	early, _ := f.engine.SchedulePost(ctx, "twitter", "early", "+1h", 0, jitter.BiasNone, nil)
	gone, _ := f.engine.SchedulePost(ctx, "twitter", "gone", "+2h", 0, jitter.BiasNone, nil)
	if _, err := f.engine.Cancel(ctx, gone.JobID); err != nil {
		t.Fatal(err)
	}

	pending, _ := f.engine.List(ctx, false)
	if len(pending) != 2 || pending[0].ID != early.JobID || pending[1].ID != late.JobID {
		t.Fatalf("pending list = %+v", pending)
	}
	all, _ := f.engine.List(ctx, true)
	if len(all) != 3 || all[1].ID != gone.JobID {
		t.Fatalf("full list = %+v", all)
	}
}

func TestUpdateSourcePath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "a.org")
	newPath := filepath.Join(dir, "b.org")
	for _, p := range []string{oldPath, newPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = f.engine.ScheduleAt(ctx, ScheduleRequest{Platform: "twitter", Text: "a", When: f.clock.t.Add(time.Hour), SourceFile: oldPath, Headline: "a"})
	_, _ = f.engine.ScheduleAt(ctx, ScheduleRequest{Platform: "twitter", Text: "b", When: f.clock.t.Add(time.Hour), SourceFile: oldPath, Headline: "b"})

	n, err := f.engine.UpdateSourcePath(ctx, oldPath, newPath)
	if err != nil || n != 2 {
		t.Fatalf("UpdateSourcePath = %d, %v", n, err)
	}
	jobs, _ := f.engine.JobsForSource(ctx, newPath)
	if len(jobs) != 2 {
		t.Fatalf("jobs at new path = %d", len(jobs))
	}
}
