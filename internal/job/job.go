// Package job defines the persisted record of a deferred post.
package job

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"socialia/internal/platform"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Cancel reasons recorded on cancelled jobs.
const (
	ReasonUser              = "user"
	ReasonSourceFileMissing = "source_file_missing"
	ReasonRemovedFromFile   = "removed_from_draft_file"
	ReasonDuplicate         = "duplicate"
)

// Job is one deferred post. Optional fields are omitted from JSON when unset.
type Job struct {
	ID           string           `json:"id"`
	Platform     string           `json:"platform"`
	Text         string           `json:"text"`
	Kwargs       platform.Options `json:"kwargs"`
	ScheduledFor time.Time        `json:"scheduled_for"`
	CreatedAt    time.Time        `json:"created_at"`
	Status       Status           `json:"status"`

	Result     *platform.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	ExecutedAt *time.Time       `json:"executed_at,omitempty"`

	OriginalTime              *time.Time `json:"original_time,omitempty"`
	FluctuationAppliedMinutes *int       `json:"fluctuation_applied_minutes,omitempty"`

	SourceFile string `json:"source_file,omitempty"`
	Headline   string `json:"headline,omitempty"`
	DraftID    string `json:"draft_id,omitempty"`

	CancelReason string `json:"cancel_reason,omitempty"`
}

// NewID returns a short job id: the first 8 characters of a random UUID.
func NewID() string {
	return uuid.NewString()[:8]
}

// Due reports whether j is pending and its time has come.
func (j Job) Due(now time.Time) bool {
	return j.Status == StatusPending && !j.ScheduledFor.After(now)
}

// FromDraft reports whether the job originated from a draft file.
func (j Job) FromDraft() bool { return strings.TrimSpace(j.SourceFile) != "" }

// Cancel flips a pending job to cancelled. It returns false for terminal jobs.
func (j *Job) Cancel(reason string) bool {
	if j.Status != StatusPending {
		return false
	}
	j.Status = StatusCancelled
	j.CancelReason = reason
	return true
}

// Finish records the outcome of a post attempt on a pending job.
func (j *Job) Finish(at time.Time, res *platform.Result, errText string) {
	if j.Status != StatusPending {
		return
	}
	j.ExecutedAt = &at
	j.Result = res
	if res != nil && res.Success && errText == "" {
		j.Status = StatusCompleted
		return
	}
	j.Status = StatusFailed
	if errText == "" && res != nil {
		errText = res.Error
	}
	j.Error = errText
}

// Clone returns a copy whose kwargs map can be mutated independently.
func (j Job) Clone() Job {
	if j.Kwargs != nil {
		kw := make(platform.Options, len(j.Kwargs))
		for k, v := range j.Kwargs {
			kw[k] = v
		}
		j.Kwargs = kw
	}
	return j
}
