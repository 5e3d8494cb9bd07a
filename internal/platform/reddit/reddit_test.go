package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"socialia/internal/platform"
)

func TestPostSelfSubmission(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		form url.Values
		ua   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/submit" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		mu.Lock()
		form = r.PostForm
		ua = r.UserAgent()
		mu.Unlock()
		_, _ = w.Write([]byte(`{"json":{"errors":[],"data":{"id":"abc","url":"https://www.reddit.com/r/golang/comments/abc/"}}}`))
	}))
	defer srv.Close()

	c, err := New(platform.Config{Token: "tok", BaseURL: srv.URL, UserAgent: "tests/1.0"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	res, err := c.Post(context.Background(), "Release notes\nmore body", platform.Options{"subreddit": "r/golang"})
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if !res.Success || res.ID != "abc" || !strings.Contains(res.URL, "/r/golang/") {
		t.Fatalf("unexpected result %+v", res)
	}

	mu.Lock()
	defer mu.Unlock()
	if ua != "tests/1.0" {
		t.Fatalf("user agent = %q", ua)
	}
	if form.Get("sr") != "golang" || form.Get("kind") != "self" || form.Get("title") != "Release notes" {
		t.Fatalf("unexpected form %v", form)
	}
	if form.Get("text") != "Release notes\nmore body" {
		t.Fatalf("text = %q", form.Get("text"))
	}
}

func TestPostLinkAndAPIError(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		kind string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		kind = r.PostForm.Get("kind")
		mu.Unlock()
		_, _ = w.Write([]byte(`{"json":{"errors":[["SUBREDDIT_NOEXIST","that subreddit doesn't exist","sr"]]}}`))
	}))
	defer srv.Close()

	c, _ := New(platform.Config{Token: "tok", BaseURL: srv.URL})
	res, err := c.Post(context.Background(), "look", platform.Options{"url": "https://example.org", "title": "Link"})
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "SUBREDDIT_NOEXIST") {
		t.Fatalf("unexpected result %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	if kind != "link" {
		t.Fatalf("kind = %q, want link", kind)
	}
}

func TestFirstLineTruncates(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 400)
	if got := firstLine(long); len(got) != maxTitle {
		t.Fatalf("title length = %d", len(got))
	}
	if got := firstLine("\n  hello  \nworld"); got != "hello" {
		t.Fatalf("firstLine = %q", got)
	}
}
