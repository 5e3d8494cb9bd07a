// Package twitter posts to X (Twitter) through the v2 tweets endpoint using an
// OAuth 2.0 user-context bearer token.
package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"socialia/internal/platform"
	"socialia/internal/platform/httpapi"
)

const (
	Name           = "twitter"
	defaultBaseURL = "https://api.x.com"
)

type Client struct {
	token string
	base  string
	http  *http.Client
}

// New builds a client; the token is required.
func New(cfg platform.Config) (platform.Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.WithHint(errors.New("twitter: missing access token"), "set platforms.twitter.token or TWITTER_ACCESS_TOKEN")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{token: cfg.Token, base: base, http: httpapi.NewClient(cfg.Timeout)}, nil
}

func (c *Client) Name() string { return Name }

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetRequest struct {
	Text         string      `json:"text"`
	Reply        *tweetReply `json:"reply,omitempty"`
	QuoteTweetID string      `json:"quote_tweet_id,omitempty"`
	Media        *tweetMedia `json:"media,omitempty"`
}

// Post publishes a tweet. Recognized options: reply_to, quote_tweet_id, media_ids.
func (c *Client) Post(ctx context.Context, text string, opts platform.Options) (platform.Result, error) {
	req := tweetRequest{Text: text}
	if v := opts.String("reply_to"); v != "" {
		req.Reply = &tweetReply{InReplyToTweetID: v}
	}
	req.QuoteTweetID = opts.String("quote_tweet_id")
	if ids := mediaIDs(opts["media_ids"]); len(ids) > 0 {
		req.Media = &tweetMedia{MediaIDs: ids}
	}

	resp, err := httpapi.PostJSON(ctx, c.http, c.base+"/2/tweets", req, httpapi.Bearer(c.token))
	if err != nil {
		return platform.Result{}, err
	}
	if resp.Status != http.StatusCreated {
		return platform.Failure("%s", resp.ErrorText()), nil
	}
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.Data.ID == "" {
		return platform.Failure("unexpected response: %s", resp.ErrorText()), nil
	}
	return platform.Result{
		Success: true,
		ID:      out.Data.ID,
		URL:     "https://x.com/i/web/status/" + out.Data.ID,
	}, nil
}

func mediaIDs(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, it := range x {
			if s, ok := it.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if x == "" {
			return nil
		}
		return strings.Split(x, ",")
	default:
		return nil
	}
}
