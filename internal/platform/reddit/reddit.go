// Package reddit submits self and link posts through the Reddit OAuth API.
package reddit

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
	Name             = "reddit"
	defaultBaseURL   = "https://oauth.reddit.com"
	defaultUserAgent = "socialia/0.1"
	defaultSubreddit = "test"
	maxTitle         = 300
)

type Client struct {
	token string
	base  string
	ua    string
	http  *http.Client
}

func New(cfg platform.Config) (platform.Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.WithHint(errors.New("reddit: missing access token"), "set platforms.reddit.token or REDDIT_ACCESS_TOKEN")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{token: cfg.Token, base: base, ua: ua, http: httpapi.NewClient(cfg.Timeout)}, nil
}

func (c *Client) Name() string { return Name }

// Post submits to a subreddit. Recognized options: subreddit (default "test"),
// title (default: first line of text), url (makes a link post), flair_id.
func (c *Client) Post(ctx context.Context, text string, opts platform.Options) (platform.Result, error) {
	sr := strings.TrimPrefix(opts.String("subreddit"), "r/")
	if sr == "" {
		sr = defaultSubreddit
	}
	title := opts.String("title")
	if title == "" {
		title = firstLine(text)
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("sr", sr)
	form.Set("title", title)
	if link := opts.String("url"); link != "" {
		form.Set("kind", "link")
		form.Set("url", link)
	} else {
		form.Set("kind", "self")
		form.Set("text", text)
	}
	if flair := opts.String("flair_id"); flair != "" {
		form.Set("flair_id", flair)
	}

	h := httpapi.Bearer(c.token)
	h.Set("User-Agent", c.ua)
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := httpapi.Do(ctx, c.http, http.MethodPost, c.base+"/api/submit", strings.NewReader(form.Encode()), h)
	if err != nil {
		return platform.Result{}, err
	}
	if resp.Status != http.StatusOK {
		return platform.Failure("%s", resp.ErrorText()), nil
	}

	var out struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return platform.Failure("unexpected response: %s", resp.ErrorText()), nil
	}
	if len(out.JSON.Errors) > 0 {
		return platform.Failure("Reddit API error: %v", out.JSON.Errors[0]), nil
	}
	if out.JSON.Data.ID == "" {
		return platform.Failure("unexpected response: %s", resp.ErrorText()), nil
	}
	return platform.Result{Success: true, ID: out.JSON.Data.ID, URL: out.JSON.Data.URL}, nil
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > maxTitle {
		line = string(r[:maxTitle])
	}
	return line
}
