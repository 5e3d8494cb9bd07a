package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"socialia/internal/job"
	"socialia/pkg/fileutil"
	logx "socialia/pkg/logx"
)

// fileStore keeps every job in one JSON array rewritten atomically.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) ([]job.Job, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *fileStore) loadLocked() ([]job.Job, error) {
	jobs := s.readLocked()
	if changed := sweepOrphans(jobs); len(changed) > 0 {
		s.log.Info("cancelled jobs with missing source file", logx.Int("count", len(changed)))
		if err := s.writeLocked(jobs); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// readLocked never fails: a missing or corrupt file reads as empty.
func (s *fileStore) readLocked() []job.Job {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("read store failed; treating as empty", logx.String("path", s.path), logx.Err(err))
		}
		return []job.Job{}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []job.Job{}
	}
	var jobs []job.Job
	if err := json.Unmarshal(b, &jobs); err != nil {
		s.log.Warn("corrupt store file; treating as empty", logx.String("path", s.path), logx.Err(err))
		return []job.Job{}
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	return jobs
}

func (s *fileStore) writeLocked(jobs []job.Job) error {
	if jobs == nil {
		jobs = []job.Job{}
	}
	b, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode jobs")
	}
	return fileutil.WriteFile(s.path, append(b, '\n'), 0o600)
}

func (s *fileStore) Save(ctx context.Context, jobs []job.Job) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(jobs)
}

func (s *fileStore) Append(ctx context.Context, j job.Job) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.readLocked()
	if indexOf(jobs, j.ID) >= 0 {
		return errors.Newf("job %s already exists", j.ID)
	}
	return s.writeLocked(append(jobs, j))
}

func (s *fileStore) Update(ctx context.Context, id string, fn func(*job.Job) error) (job.Job, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.loadLocked()
	if err != nil {
		return job.Job{}, err
	}
	i := indexOf(jobs, id)
	if i < 0 {
		return job.Job{}, errors.Wrapf(ErrNotFound, "%s", id)
	}
	j := jobs[i].Clone()
	if err := fn(&j); err != nil {
		return jobs[i], err
	}
	jobs[i] = j
	if err := s.writeLocked(jobs); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (s *fileStore) Mutate(ctx context.Context, fn func([]job.Job) (bool, error)) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.loadLocked()
	if err != nil {
		return err
	}
	changed, err := fn(jobs)
	if err != nil || !changed {
		return err
	}
	return s.writeLocked(jobs)
}
