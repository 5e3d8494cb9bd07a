package supervisor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestCancelOnFirstError(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	stopped := make(chan struct{})
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	s.Go("broken", func(context.Context) error { return errors.New("boom") })

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("loop was not cancelled")
	}
	err := s.Wait()
	if err == nil || !strings.Contains(err.Error(), "broken: boom") {
		t.Fatalf("Wait = %v", err)
	}
}

func TestPanicBecomesError(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("panicky", func(context.Context) error { panic("nope") })
	if err := s.Wait(); err == nil || !strings.Contains(err.Error(), "panic in panicky") {
		t.Fatalf("Wait = %v", err)
	}
}

func TestCleanShutdown(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx)
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait = %v", err)
	}
}
