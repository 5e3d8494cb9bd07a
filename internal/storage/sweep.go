package storage

import (
	"os"

	"socialia/internal/job"
)

// sweepOrphans cancels pending jobs whose source file no longer exists and
// returns the indexes it changed.
func sweepOrphans(jobs []job.Job) []int {
	var changed []int
	for i := range jobs {
		j := &jobs[i]
		if j.Status != job.StatusPending || !j.FromDraft() {
			continue
		}
		if _, err := os.Stat(j.SourceFile); err == nil || !os.IsNotExist(err) {
			continue
		}
		if j.Cancel(job.ReasonSourceFileMissing) {
			changed = append(changed, i)
		}
	}
	return changed
}

func indexOf(jobs []job.Job, id string) int {
	for i := range jobs {
		if jobs[i].ID == id {
			return i
		}
	}
	return -1
}
