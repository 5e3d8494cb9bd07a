package platform

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestRegistryBuildsOnceAndCaches(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	builds := 0
	r.Register("Twitter", Config{Token: "t"}, func(cfg Config) (Client, error) {
		builds++
		if cfg.Token != "t" {
			t.Fatalf("factory got token %q", cfg.Token)
		}
		return &Recorder{PlatformName: "twitter"}, nil
	})

	for i := 0; i < 3; i++ {
		c, err := r.Client(" twitter ")
		if err != nil {
			t.Fatalf("Client error: %v", err)
		}
		if c.Name() != "twitter" {
			t.Fatalf("unexpected client %q", c.Name())
		}
	}
	if builds != 1 {
		t.Fatalf("factory called %d times, want 1", builds)
	}
}

func TestRegistryUnknownPlatform(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Client("myspace")
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestRegistryFactoryError(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register("reddit", Config{}, func(Config) (Client, error) { return nil, errors.New("missing token") })
	if _, err := r.Client("reddit"); err == nil {
		t.Fatal("expected factory error")
	}
}

func TestLimitedSpacesPosts(t *testing.T) {
	t.Parallel()
	rec := &Recorder{PlatformName: "x"}
	c := Limited(rec, 40*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Post(context.Background(), "hi", nil); err != nil {
			t.Fatalf("Post error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Fatalf("3 posts took %v, expected spacing of ~40ms", elapsed)
	}
	if rec.Count() != 3 {
		t.Fatalf("recorded %d posts, want 3", rec.Count())
	}
}

func TestLimitedRespectsContext(t *testing.T) {
	t.Parallel()
	c := Limited(&Recorder{PlatformName: "x"}, time.Hour)
	if _, err := c.Post(context.Background(), "first", nil); err != nil {
		t.Fatalf("first post error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Post(ctx, "second", nil); err == nil {
		t.Fatal("expected context error while waiting for the limiter")
	}
}

func TestOptionsString(t *testing.T) {
	t.Parallel()
	o := Options{"subreddit": "golang", "count": 3, "nil": nil}
	if o.String("subreddit") != "golang" || o.String("count") != "3" || o.String("nil") != "" || o.String("missing") != "" {
		t.Fatalf("unexpected Options.String results")
	}
}
