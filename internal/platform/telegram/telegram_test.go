package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"socialia/internal/platform"
)

func newBotServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77,"date":1700000000,"chat":{"id":-1001234,"type":"supergroup"},"text":"hi"}}`))
	}))
}

func TestPostSendsMessage(t *testing.T) {
	t.Parallel()
	srv := newBotServer(t)
	defer srv.Close()

	c, err := Open(platform.Config{Token: "123:abc", BaseURL: srv.URL, ChatID: -1001234})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	res, err := c.Post(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if !res.Success || res.ID != "77" || res.URL != "https://t.me/c/1234/77" {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := c.Notify(context.Background(), "[WARN] x"); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
}

func TestPostWithoutChat(t *testing.T) {
	t.Parallel()
	c, err := Open(platform.Config{Token: "123:abc", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	res, err := c.Post(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure without chat id")
	}
	if err := c.Notify(context.Background(), "x"); err == nil {
		t.Fatal("Notify should surface the failure")
	}
}

func TestMessageURL(t *testing.T) {
	t.Parallel()
	if got := messageURL(42, 1); got != "" {
		t.Fatalf("private chat url = %q", got)
	}
	if got := messageURL(-1009, 3); got != "https://t.me/c/9/3" {
		t.Fatalf("supergroup url = %q", got)
	}
}
