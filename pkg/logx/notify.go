package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Notifier delivers a formatted log record outside the process.
// The telegram platform client implements it.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

const (
	notifyQueueSize = 64
	notifyTimeout   = 10 * time.Second
	maxMessageLen   = 3500
	maxValueLen     = 600
)

// notifySink is a zerolog LevelWriter that queues records for a Notifier.
// A full queue or an exhausted limiter drops the record.
type notifySink struct {
	notifier Notifier
	minLevel zerolog.Level
	limiter  *rate.Limiter
	queue    chan string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func startNotifySink(n Notifier, minLevel zerolog.Level, limiter *rate.Limiter) *notifySink {
	ctx, cancel := context.WithCancel(context.Background())
	s := &notifySink{
		notifier: n,
		minLevel: minLevel,
		limiter:  limiter,
		queue:    make(chan string, notifyQueueSize),
		cancel:   cancel,
	}
	s.wg.Add(1)
	go s.run(ctx)
	return s
}

func (s *notifySink) run(ctx context.Context) {
	defer s.wg.Done()
	send := func(msg string) {
		sctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		_ = s.notifier.Notify(sctx, msg)
	}
	for {
		select {
		case msg := <-s.queue:
			send(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-s.queue:
					send(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *notifySink) stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *notifySink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.InfoLevel, p)
}

func (s *notifySink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < s.minLevel || !s.limiter.Allow() {
		return len(p), nil
	}
	if msg := formatRecord(p); msg != "" {
		select {
		case s.queue <- msg:
		default:
		}
	}
	return len(p), nil
}

// formatRecord turns a JSON record into "[LEVEL] message" followed by one
// "- key=value" line per remaining field, sorted by key.
func formatRecord(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return truncate(raw, maxMessageLen)
	}

	var b strings.Builder
	if lvl, _ := m["level"].(string); lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	msg, _ := m["message"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message", zerolog.CallerFieldName:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s=%s", k, truncate(fmt.Sprint(m[k]), maxValueLen))
	}
	return truncate(b.String(), maxMessageLen)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
