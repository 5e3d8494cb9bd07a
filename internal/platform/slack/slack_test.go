package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"socialia/internal/platform"
)

func TestWebhookPost(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		body map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New(platform.Config{WebhookURL: srv.URL + "/hook"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	res, err := c.Post(context.Background(), "deploy done", nil)
	if err != nil || !res.Success {
		t.Fatalf("Post = %+v, %v", res, err)
	}
	mu.Lock()
	defer mu.Unlock()
	if body["text"] != "deploy done" {
		t.Fatalf("webhook body %v", body)
	}
}

func TestWebAPIPost(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			http.NotFound(w, r)
			return
		}
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["channel"] != "C123" {
			_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"ts":"1700000000.000100","channel":"C123"}`))
	}))
	defer srv.Close()

	c, _ := New(platform.Config{Token: "xoxb", BaseURL: srv.URL, Channel: "C123"})
	res, err := c.Post(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if !res.Success || res.ID != "1700000000.000100" || res.URL != "https://slack.com/archives/C123/p1700000000000100" {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = c.Post(context.Background(), "hi", platform.Options{"channel": "C999"})
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if res.Success || res.Error != "channel_not_found" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()
	if _, err := New(platform.Config{}); err == nil {
		t.Fatal("expected error")
	}
}
