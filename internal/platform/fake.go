package platform

import (
	"context"
	"fmt"
	"sync"
)

// Recorder is an in-memory Client that records posts. It backs the
// "dryrun" platform and the tests of packages that post.
type Recorder struct {
	PlatformName string

	// Fail makes every Post return Result{Success: false}.
	Fail bool
	// Err makes every Post return this error.
	Err error
	// Panic makes every Post panic with this value.
	Panic any

	mu    sync.Mutex
	Posts []RecordedPost
}

type RecordedPost struct {
	Text string
	Opts Options
}

func (r *Recorder) Name() string { return r.PlatformName }

func (r *Recorder) Post(_ context.Context, text string, opts Options) (Result, error) {
	if r.Panic != nil {
		panic(r.Panic)
	}
	if r.Err != nil {
		return Result{}, r.Err
	}
	if r.Fail {
		return Failure("rejected by %s", r.PlatformName), nil
	}
	r.mu.Lock()
	r.Posts = append(r.Posts, RecordedPost{Text: text, Opts: opts})
	n := len(r.Posts)
	r.mu.Unlock()
	id := fmt.Sprintf("%s-%d", r.PlatformName, n)
	return Result{Success: true, ID: id, URL: "https://example.invalid/" + id}, nil
}

// Count returns the number of successful posts.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Posts)
}
