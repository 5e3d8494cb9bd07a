package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"socialia/internal/jitter"
	"socialia/internal/job"
	"socialia/internal/platform"
	"socialia/internal/timeexpr"
	logx "socialia/pkg/logx"
)

// Kwargs keys promoted to top-level job fields.
const (
	KeySourceFile = "source_file"
	KeyHeadline   = "headline"
	KeyDraftID    = "draft_id"
)

// ScheduleRequest is a post with an already-resolved time.
type ScheduleRequest struct {
	Platform    string
	Text        string
	When        time.Time
	Fluctuation int
	Bias        jitter.Bias
	Kwargs      platform.Options

	SourceFile string
	Headline   string
	DraftID    string
}

// ScheduleResult describes a newly created job.
type ScheduleResult struct {
	JobID              string     `json:"job_id"`
	ScheduledFor       time.Time  `json:"scheduled_for"`
	OriginalTime       *time.Time `json:"original_time,omitempty"`
	FluctuationMinutes *int       `json:"fluctuation_minutes,omitempty"`
}

// SchedulePost parses when and appends a pending job. A bad time string
// returns a *timeexpr.ParseError and creates nothing.
func (e *Engine) SchedulePost(ctx context.Context, platformName, text, when string, fluctuation int, bias jitter.Bias, kwargs platform.Options) (ScheduleResult, error) {
	at, err := timeexpr.ParseAt(when, e.Now())
	if err != nil {
		return ScheduleResult{}, err
	}
	req := ScheduleRequest{
		Platform:    platformName,
		Text:        text,
		When:        at,
		Fluctuation: fluctuation,
		Bias:        bias,
	}
	if len(kwargs) > 0 {
		req.Kwargs = make(platform.Options, len(kwargs))
		for k, v := range kwargs {
			switch k {
			case KeySourceFile:
				req.SourceFile = kwargs.String(k)
			case KeyHeadline:
				req.Headline = kwargs.String(k)
			case KeyDraftID:
				req.DraftID = kwargs.String(k)
			default:
				req.Kwargs[k] = v
			}
		}
	}
	return e.ScheduleAt(ctx, req)
}

// ScheduleAt appends a pending job for req, applying jitter when
// req.Fluctuation > 0. The job is durable when ScheduleAt returns.
func (e *Engine) ScheduleAt(ctx context.Context, req ScheduleRequest) (ScheduleResult, error) {
	name := platform.Normalize(req.Platform)
	if name == "" {
		return ScheduleResult{}, errors.New("platform is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return ScheduleResult{}, errors.New("text is required")
	}
	if req.When.IsZero() {
		return ScheduleResult{}, errors.New("schedule time is required")
	}
	if req.SourceFile != "" && req.Headline == "" {
		return ScheduleResult{}, errors.New("headline is required for jobs with a source file")
	}

	now := e.Now()
	j := job.Job{
		ID:           job.NewID(),
		Platform:     name,
		Text:         req.Text,
		Kwargs:       req.Kwargs,
		ScheduledFor: req.When,
		CreatedAt:    now,
		Status:       job.StatusPending,
		SourceFile:   req.SourceFile,
		Headline:     req.Headline,
		DraftID:      req.DraftID,
	}
	if j.Kwargs == nil {
		j.Kwargs = platform.Options{}
	}
	res := ScheduleResult{JobID: j.ID, ScheduledFor: req.When}
	if req.Fluctuation > 0 {
		original := req.When
		shifted, offset := e.jitter(req.When, req.Fluctuation, req.Bias)
		j.ScheduledFor = shifted
		j.OriginalTime = &original
		j.FluctuationAppliedMinutes = &offset
		res.ScheduledFor = shifted
		res.OriginalTime = &original
		res.FluctuationMinutes = &offset
	}

	if err := e.store.Append(ctx, j); err != nil {
		return ScheduleResult{}, errors.Wrap(err, "save job")
	}
	e.log.Info("job scheduled",
		logx.String("job_id", j.ID),
		logx.String("platform", j.Platform),
		logx.Time("scheduled_for", j.ScheduledFor),
		logx.String("headline", j.Headline),
	)
	return res, nil
}
