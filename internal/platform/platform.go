// Package platform defines the contract every social platform client satisfies
// and a registry that resolves clients by platform name.
//
// Concrete clients live in subpackages (twitter, linkedin, reddit, slack, telegram)
// and are registered by the CLI wiring.
package platform

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Result is the uniform response of Client.Post.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Options carries platform-specific fields (subreddit, title, reply_to, ...).
// The scheduler treats it as opaque.
type Options map[string]any

// String returns the value for key as a string ("" when absent).
func (o Options) String(key string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Client posts text to one platform.
//
// A transport or API failure may be reported either as a returned error or as
// Result{Success: false, Error: ...}; callers treat both as a failed post.
type Client interface {
	Name() string
	Post(ctx context.Context, text string, opts Options) (Result, error)
}

// Config configures a single platform client.
//
// All durations are Go duration strings already parsed by the config package.
type Config struct {
	Token      string
	BaseURL    string
	UserAgent  string
	ChatID     int64
	Channel    string
	WebhookURL string
	Timeout    time.Duration

	// MinInterval spaces consecutive posts on this platform. Zero disables spacing.
	MinInterval time.Duration
}

// Failure builds a failed Result from an error message.
func Failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Normalize lower-cases and trims a platform name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
