package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"socialia/internal/platform"
)

func TestPostResolvesAuthorOnce(t *testing.T) {
	t.Parallel()
	var userinfoCalls int32
	var (
		mu     sync.Mutex
		author string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/userinfo":
			atomic.AddInt32(&userinfoCalls, 1)
			_, _ = w.Write([]byte(`{"sub":"abc123"}`))
		case "/ugcPosts":
			if r.Header.Get("X-Restli-Protocol-Version") != "2.0.0" {
				t.Errorf("missing restli header")
			}
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			author, _ = body["author"].(string)
			mu.Unlock()
			w.Header().Set("X-RestLi-Id", "urn:li:share:99")
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(platform.Config{Token: "tok", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for i := 0; i < 2; i++ {
		res, err := c.Post(context.Background(), "hello", nil)
		if err != nil {
			t.Fatalf("Post error: %v", err)
		}
		if !res.Success || res.ID != "urn:li:share:99" {
			t.Fatalf("unexpected result %+v", res)
		}
	}
	mu.Lock()
	gotAuthor := author
	mu.Unlock()
	if gotAuthor != "urn:li:person:abc123" {
		t.Fatalf("author = %q", gotAuthor)
	}
	if n := atomic.LoadInt32(&userinfoCalls); n != 1 {
		t.Fatalf("userinfo called %d times, want 1", n)
	}
}

func TestPostWithoutURN(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := New(platform.Config{Token: "tok", BaseURL: srv.URL})
	res, err := c.Post(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Fatalf("expected failed result, got %+v", res)
	}
}
