package draft

import (
	"context"
	"hash/fnv"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"socialia/internal/jitter"
	"socialia/internal/stage"
	logx "socialia/pkg/logx"
)

const (
	watchDebounce      = 300 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Watch re-runs Sync whenever the draft file changes until ctx is cancelled.
// Bursts of editor events are debounced and content-identical saves skipped.
// When the file moves to another stage directory the watch follows it.
// onSync, when non-nil, sees every sync outcome.
//
// Watch owns m's path while it runs; do not use m from other goroutines.
func (m *Manager) Watch(ctx context.Context, fluctuation int, bias jitter.Bias, onSync func(SyncResult, error)) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)
	moved := make(chan string, 1)
	// The sync goroutine owns m.log and m.path; the loop below logs through log.
	log := m.log
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	backoff := restartBackoffBase

	var (
		timerMu  sync.Mutex
		timer    *time.Timer
		syncMu   sync.Mutex
		lastHash uint64
		missing  bool
		wg       sync.WaitGroup
	)
	lastHash = hashFile(m.path)
	defer func() {
		timerMu.Lock()
		if timer != nil && timer.Stop() {
			wg.Done()
		}
		timerMu.Unlock()
		wg.Wait()
	}()

	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil && timer.Stop() {
			wg.Done()
		}
		wg.Add(1)
		timer = time.AfterFunc(watchDebounce, func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			syncMu.Lock()
			defer syncMu.Unlock()
			if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
				next, ok := stage.Locate(m.path)
				if !ok {
					if !missing {
						m.log.Info("draft file missing; waiting for it to reappear")
					}
					missing = true
					return
				}
				m.log.Info("draft file changed stage; following", logx.String("to", next))
				m.path = next
				m.log = m.log.With(logx.String("file", next))
				select {
				case moved <- filepath.Dir(next):
				default:
				}
			}
			missing = false
			h := hashFile(m.path)
			if h != 0 && h == lastHash {
				m.log.Debug("draft file unchanged; skipping sync")
				return
			}
			lastHash = h
			res, err := m.Sync(ctx, fluctuation, bias)
			if err != nil {
				m.log.Warn("sync failed", logx.Err(err))
			}
			if onSync != nil {
				onSync(res, err)
			}
		})
	}

	wait := func() time.Duration {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff = min(backoff*2, restartBackoffMax)
		}
		return d
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			log.Warn("draft watch init failed", logx.Err(err), logx.String("dir", dir))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait()):
				continue
			}
		}

		backoff = restartBackoffBase
		log.Info("watching draft file", logx.String("dir", dir))

		broken, rebind := false, false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case next := <-moved:
				dir = next
				broken, rebind = true, true
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					log.Warn("draft watch overflow; forcing sync", logx.Err(err))
					debounce()
					continue
				}
				log.Warn("draft watch error", logx.Err(err))
			}
		}

		_ = w.Close()
		if rebind {
			continue
		}
		d := wait()
		log.Warn("draft watcher stopped; restarting", logx.Duration("backoff", d))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}
	}
}

// hashFile returns 0 when the file cannot be read.
func hashFile(path string) uint64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
