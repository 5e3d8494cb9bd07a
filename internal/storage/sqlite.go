package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"socialia/internal/job"
	logx "socialia/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps one row per job; the full job is stored as JSON in payload
// and the indexed columns mirror the fields queries filter on.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	mu sync.Mutex
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return errors.Wrap(err, "migrate")
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *sqliteStore) loadLocked(ctx context.Context) ([]job.Job, error) {
	jobs, err := s.readLocked(ctx)
	if err != nil {
		return nil, err
	}
	if changed := sweepOrphans(jobs); len(changed) > 0 {
		s.log.Info("cancelled jobs with missing source file", logx.Int("count", len(changed)))
		sub := make([]job.Job, 0, len(changed))
		for _, i := range changed {
			sub = append(sub, jobs[i])
		}
		if err := s.upsert(ctx, sub); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// readLocked skips rows whose payload cannot be decoded.
func (s *sqliteStore) readLocked(ctx context.Context) ([]job.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM jobs ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "query jobs")
	}
	defer rows.Close()
	jobs := []job.Job{}
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		var j job.Job
		if err := json.Unmarshal([]byte(payload), &j); err != nil {
			s.log.Warn("skipping corrupt job row", logx.String("job_id", id), logx.Err(err))
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, errors.Wrap(rows.Err(), "iterate jobs")
}

func (s *sqliteStore) upsert(ctx context.Context, jobs []job.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsertTx(ctx, tx, jobs); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func upsertTx(ctx context.Context, tx *sql.Tx, jobs []job.Job) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO jobs(id, status, scheduled_for, source_file, payload) VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, scheduled_for=excluded.scheduled_for,
		   source_file=excluded.source_file, payload=excluded.payload`)
	if err != nil {
		return errors.Wrap(err, "prepare upsert")
	}
	defer stmt.Close()
	for _, j := range jobs {
		b, err := json.Marshal(j)
		if err != nil {
			return errors.Wrapf(err, "encode job %s", j.ID)
		}
		if _, err := stmt.ExecContext(ctx, j.ID, string(j.Status), j.ScheduledFor.Format(time.RFC3339Nano), nullStr(j.SourceFile), string(b)); err != nil {
			return errors.Wrapf(err, "write job %s", j.ID)
		}
	}
	return nil
}

func (s *sqliteStore) Save(ctx context.Context, jobs []job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
		return errors.Wrap(err, "clear jobs")
	}
	if err := upsertTx(ctx, tx, jobs); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (s *sqliteStore) Append(ctx context.Context, j job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, j.ID).Scan(&n); err != nil {
		return errors.Wrap(err, "check job id")
	}
	if n > 0 {
		return errors.Newf("job %s already exists", j.ID)
	}
	return s.upsert(ctx, []job.Job{j})
}

func (s *sqliteStore) Update(ctx context.Context, id string, fn func(*job.Job) error) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.loadLocked(ctx)
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
	if err := s.upsert(ctx, []job.Job{j}); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (s *sqliteStore) Mutate(ctx context.Context, fn func([]job.Job) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(jobs)
	if err != nil || !changed {
		return err
	}
	return s.upsert(ctx, jobs)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
