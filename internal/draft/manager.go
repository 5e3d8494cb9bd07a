package draft

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"socialia/internal/jitter"
	"socialia/internal/platform"
	"socialia/internal/scheduler"
	"socialia/internal/stage"
	logx "socialia/pkg/logx"
)

var (
	// ErrDirectPostUnsupported is returned by Post for platforms that can only
	// be reached through the scheduler.
	ErrDirectPostUnsupported = errors.New("direct posting from draft files is not supported for this platform")
	// ErrNotScheduled is returned by Schedule for drafts without a SCHEDULED time.
	ErrNotScheduled = errors.New("no scheduled time set")
)

// DirectPlatforms can be posted straight from a draft file.
var DirectPlatforms = map[string]bool{"twitter": true, "linkedin": true, "reddit": true}

const previewLen = 100

// Manager operates on one draft file. Every call re-reads the file so edits
// made between calls are picked up.
type Manager struct {
	path     string
	engine   *scheduler.Engine
	registry *platform.Registry
	log      logx.Logger
}

func NewManager(path string, engine *scheduler.Engine, registry *platform.Registry, log logx.Logger) (*Manager, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{path: abs, engine: engine, registry: registry, log: log.With(logx.String("file", abs))}, nil
}

// Path is the absolute path of the managed file; it changes after ScheduleAll moves it.
func (m *Manager) Path() string { return m.path }

func (m *Manager) now() time.Time { return m.engine.Now() }

func (m *Manager) open() (*File, error) {
	return Open(m.path, m.engine.Location())
}

// List returns drafts with the given status, or all drafts when status is empty.
func (m *Manager) List(status Status) ([]Draft, error) {
	f, err := m.open()
	if err != nil {
		return nil, err
	}
	drafts := f.Parse()
	if status == "" {
		return drafts, nil
	}
	out := drafts[:0:0]
	for _, d := range drafts {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Manager) Pending() ([]Draft, error) { return m.List(StatusTodo) }

// Due returns pending drafts whose scheduled time has passed.
func (m *Manager) Due() ([]Draft, error) {
	return m.filterPending(func(d Draft, now time.Time) bool { return d.IsDue(now) })
}

// Scheduled returns pending drafts scheduled in the future.
func (m *Manager) Scheduled() ([]Draft, error) {
	return m.filterPending(func(d Draft, now time.Time) bool { return d.IsFuture(now) })
}

func (m *Manager) filterPending(keep func(Draft, time.Time) bool) ([]Draft, error) {
	pending, err := m.Pending()
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := pending[:0:0]
	for _, d := range pending {
		if keep(d, now) {
			out = append(out, d)
		}
	}
	return out, nil
}

// PostResult is the outcome of posting one draft.
type PostResult struct {
	Headline string `json:"headline"`
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	DryRun   bool   `json:"dry_run,omitempty"`
	Content  string `json:"content,omitempty"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Post publishes d now. A dry run only previews. On success the draft is
// marked DONE and POSTED_AT, POST_ID and POST_URL are recorded in its drawer.
func (m *Manager) Post(ctx context.Context, d Draft, dryRun bool) (PostResult, error) {
	res := PostResult{Headline: d.Headline, Platform: d.Platform}
	if dryRun {
		res.Success, res.DryRun, res.Content = true, true, preview(d.Content)
		return res, nil
	}
	if !DirectPlatforms[d.Platform] {
		return res, errors.Wrapf(ErrDirectPostUnsupported, "%s", d.Platform)
	}
	client, err := m.registry.Client(d.Platform)
	if err != nil {
		return res, err
	}
	out, err := client.Post(ctx, d.Content, d.Kwargs())
	if err != nil {
		return res, errors.Wrapf(err, "post to %s", d.Platform)
	}
	res.Success, res.ID, res.URL, res.Error = out.Success, out.ID, out.URL, out.Error
	if !out.Success {
		return res, nil
	}
	if err := markPosted(m.path, m.engine.Location(), d, m.now(), out); err != nil {
		m.log.Warn("posted but could not update draft file", logx.String("headline", d.Headline), logx.Err(err))
	}
	m.log.Info("draft posted", logx.String("headline", d.Headline), logx.String("platform", d.Platform), logx.String("url", out.URL))
	return res, nil
}

// PostDue posts every due draft; per-draft failures end up in the results.
func (m *Manager) PostDue(ctx context.Context, dryRun bool) ([]PostResult, error) {
	drafts, err := m.Due()
	if err != nil {
		return nil, err
	}
	return m.postEach(ctx, drafts, dryRun), nil
}

// PostPending posts every TODO draft regardless of its schedule.
func (m *Manager) PostPending(ctx context.Context, dryRun bool) ([]PostResult, error) {
	drafts, err := m.Pending()
	if err != nil {
		return nil, err
	}
	return m.postEach(ctx, drafts, dryRun), nil
}

func (m *Manager) postEach(ctx context.Context, drafts []Draft, dryRun bool) []PostResult {
	out := make([]PostResult, 0, len(drafts))
	for _, d := range drafts {
		r, err := m.Post(ctx, d, dryRun)
		if err != nil {
			r.Success = false
			r.Error = err.Error()
		}
		out = append(out, r)
	}
	return out
}

// Schedule hands d to the scheduler, tagged with this file and its headline.
func (m *Manager) Schedule(ctx context.Context, d Draft, fluctuation int, bias jitter.Bias) (scheduler.ScheduleResult, error) {
	if d.Scheduled == nil {
		return scheduler.ScheduleResult{}, errors.Wrapf(ErrNotScheduled, "%q", d.Headline)
	}
	return m.engine.ScheduleAt(ctx, scheduler.ScheduleRequest{
		Platform:    d.Platform,
		Text:        d.Content,
		When:        *d.Scheduled,
		Fluctuation: fluctuation,
		Bias:        bias,
		Kwargs:      d.Kwargs(),
		SourceFile:  m.path,
		Headline:    d.Headline,
		DraftID:     d.DraftID,
	})
}

type ScheduleOptions struct {
	DryRun      bool
	Fluctuation int
	Bias        jitter.Bias
	// AutoMove moves the file from drafts/ to scheduled/ when every draft was scheduled.
	AutoMove bool
}

// ScheduleItem reports one draft of ScheduleAll.
type ScheduleItem struct {
	Headline           string     `json:"headline"`
	Platform           string     `json:"platform"`
	Success            bool       `json:"success"`
	DryRun             bool       `json:"dry_run,omitempty"`
	JobID              string     `json:"job_id,omitempty"`
	ScheduledFor       time.Time  `json:"scheduled_for"`
	OriginalTime       *time.Time `json:"original_time,omitempty"`
	FluctuationMinutes *int       `json:"fluctuation_minutes,omitempty"`
	Error              string     `json:"error,omitempty"`
}

type ScheduleAllResult struct {
	File    string         `json:"file"`
	Items   []ScheduleItem `json:"results"`
	MovedTo string         `json:"moved_to,omitempty"`
}

// ScheduleAll schedules every future draft of the file.
func (m *Manager) ScheduleAll(ctx context.Context, opts ScheduleOptions) (ScheduleAllResult, error) {
	out := ScheduleAllResult{File: m.path}
	drafts, err := m.Scheduled()
	if err != nil {
		return out, err
	}
	if len(drafts) == 0 {
		return out, nil
	}

	allOK := true
	for _, d := range drafts {
		item := ScheduleItem{Headline: d.Headline, Platform: d.Platform, ScheduledFor: *d.Scheduled}
		if opts.DryRun {
			item.Success, item.DryRun = true, true
			out.Items = append(out.Items, item)
			continue
		}
		res, err := m.Schedule(ctx, d, opts.Fluctuation, opts.Bias)
		if err != nil {
			allOK = false
			item.Error = err.Error()
		} else {
			item.Success = true
			item.JobID = res.JobID
			item.ScheduledFor = res.ScheduledFor
			item.OriginalTime = res.OriginalTime
			item.FluctuationMinutes = res.FluctuationMinutes
		}
		out.Items = append(out.Items, item)
	}

	if opts.DryRun || !opts.AutoMove || !allOK {
		return out, nil
	}
	newPath, moved, err := stage.MoveToScheduled(m.path)
	if err != nil {
		m.log.Warn("could not move draft file to scheduled/", logx.Err(err))
		return out, nil
	}
	if !moved {
		return out, nil
	}
	if _, err := m.engine.UpdateSourcePath(ctx, m.path, newPath); err != nil {
		return out, errors.Wrap(err, "update source path")
	}
	m.log.Info("draft file moved", logx.String("to", newPath))
	m.path = newPath
	out.File, out.MovedTo = newPath, newPath
	return out, nil
}

// DraftSummary is one line of StatusReport.
type DraftSummary struct {
	Headline  string     `json:"headline"`
	Status    Status     `json:"status"`
	Platform  string     `json:"platform"`
	Scheduled *time.Time `json:"scheduled"`
	IsDue     bool       `json:"is_due"`
	CharCount int        `json:"char_count"`
}

type Report struct {
	File      string         `json:"file"`
	Stage     stage.Name     `json:"stage"`
	Total     int            `json:"total"`
	Pending   int            `json:"pending"`
	Done      int            `json:"done"`
	DueNow    int            `json:"due_now"`
	Scheduled int            `json:"scheduled"`
	Drafts    []DraftSummary `json:"drafts"`
}

// StatusReport counts drafts by state without touching anything.
func (m *Manager) StatusReport() (Report, error) {
	drafts, err := m.List("")
	if err != nil {
		return Report{}, err
	}
	now := m.now()
	r := Report{File: m.path, Stage: stage.Of(m.path), Total: len(drafts), Drafts: make([]DraftSummary, 0, len(drafts))}
	for _, d := range drafts {
		due := d.IsDue(now)
		switch {
		case d.Status == StatusDone:
			r.Done++
		case d.IsPending():
			r.Pending++
			if due {
				r.DueNow++
			} else if d.Scheduled != nil {
				r.Scheduled++
			}
		}
		r.Drafts = append(r.Drafts, DraftSummary{
			Headline:  d.Headline,
			Status:    d.Status,
			Platform:  d.Platform,
			Scheduled: d.Scheduled,
			IsDue:     due,
			CharCount: len([]rune(d.Content)),
		})
	}
	return r, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}
