// Package slack posts messages either through an incoming webhook or through
// the chat.postMessage Web API with a bot token.
package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"socialia/internal/platform"
	"socialia/internal/platform/httpapi"
)

const (
	Name           = "slack"
	defaultBaseURL = "https://slack.com/api"
)

type Client struct {
	webhook string
	token   string
	channel string
	base    string
	http    *http.Client
}

// New prefers the webhook when both a webhook URL and a token are configured.
func New(cfg platform.Config) (platform.Client, error) {
	c := &Client{
		webhook: strings.TrimSpace(cfg.WebhookURL),
		token:   strings.TrimSpace(cfg.Token),
		channel: strings.TrimSpace(cfg.Channel),
		base:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:    httpapi.NewClient(cfg.Timeout),
	}
	if c.webhook == "" && c.token == "" {
		return nil, errors.WithHint(errors.New("slack: no webhook_url or bot token"), "set platforms.slack.webhook_url or SLACK_BOT_TOKEN")
	}
	if c.base == "" {
		c.base = defaultBaseURL
	}
	return c, nil
}

func (c *Client) Name() string { return Name }

// Post sends text. Recognized options: channel, thread_ts (Web API only).
func (c *Client) Post(ctx context.Context, text string, opts platform.Options) (platform.Result, error) {
	if c.webhook != "" {
		return c.postWebhook(ctx, text)
	}
	channel := opts.String("channel")
	if channel == "" {
		channel = c.channel
	}
	if channel == "" {
		return platform.Failure("No channel specified"), nil
	}
	payload := map[string]any{"channel": channel, "text": text}
	if ts := opts.String("thread_ts"); ts != "" {
		payload["thread_ts"] = ts
	}
	resp, err := httpapi.PostJSON(ctx, c.http, c.base+"/chat.postMessage", payload, httpapi.Bearer(c.token))
	if err != nil {
		return platform.Result{}, err
	}
	var out struct {
		OK      bool   `json:"ok"`
		Error   string `json:"error"`
		TS      string `json:"ts"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return platform.Failure("%s", resp.ErrorText()), nil
	}
	if !out.OK {
		if out.Error == "" {
			out.Error = "Unknown error"
		}
		return platform.Failure("%s", out.Error), nil
	}
	return platform.Result{Success: true, ID: out.TS, URL: messageURL(out.Channel, out.TS)}, nil
}

func (c *Client) postWebhook(ctx context.Context, text string) (platform.Result, error) {
	resp, err := httpapi.PostJSON(ctx, c.http, c.webhook, map[string]string{"text": text}, nil)
	if err != nil {
		return platform.Result{}, err
	}
	if resp.Status != http.StatusOK {
		return platform.Failure("%s", resp.ErrorText()), nil
	}
	return platform.Result{Success: true}, nil
}

// messageURL builds the archive permalink; the ts dot is dropped and prefixed with "p".
func messageURL(channel, ts string) string {
	if channel == "" || ts == "" {
		return ""
	}
	return "https://slack.com/archives/" + url.PathEscape(channel) + "/p" + strings.ReplaceAll(ts, ".", "")
}
