// Package linkedin posts to the authenticated member's feed through the UGC Posts API.
package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"socialia/internal/platform"
	"socialia/internal/platform/httpapi"
)

const (
	Name           = "linkedin"
	defaultBaseURL = "https://api.linkedin.com/v2"
	apiVersion     = "202501"
)

type Client struct {
	token string
	base  string
	http  *http.Client

	mu      sync.Mutex
	userURN string
}

func New(cfg platform.Config) (platform.Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.WithHint(errors.New("linkedin: missing access token"), "set platforms.linkedin.token or LINKEDIN_ACCESS_TOKEN")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{token: cfg.Token, base: base, http: httpapi.NewClient(cfg.Timeout)}, nil
}

func (c *Client) Name() string { return Name }

func (c *Client) headers() http.Header {
	h := httpapi.Bearer(c.token)
	h.Set("X-Restli-Protocol-Version", "2.0.0")
	h.Set("LinkedIn-Version", apiVersion)
	return h
}

// authorURN resolves (and caches) the member URN via the OpenID userinfo endpoint.
func (c *Client) authorURN(ctx context.Context) (string, error) {
	c.mu.Lock()
	urn := c.userURN
	c.mu.Unlock()
	if urn != "" {
		return urn, nil
	}
	resp, err := httpapi.Do(ctx, c.http, http.MethodGet, c.base+"/userinfo", nil, httpapi.Bearer(c.token))
	if err != nil {
		return "", err
	}
	if resp.Status != http.StatusOK {
		return "", errors.Newf("linkedin userinfo: %s", resp.ErrorText())
	}
	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(resp.Body, &info); err != nil || info.Sub == "" {
		return "", errors.New("linkedin userinfo: no member id in response")
	}
	urn = "urn:li:person:" + info.Sub
	c.mu.Lock()
	c.userURN = urn
	c.mu.Unlock()
	return urn, nil
}

// Post shares text. Recognized options: visibility (PUBLIC, CONNECTIONS, LOGGED_IN).
func (c *Client) Post(ctx context.Context, text string, opts platform.Options) (platform.Result, error) {
	author, err := c.authorURN(ctx)
	if err != nil {
		return platform.Failure("could not get user URN: %v", err), nil
	}
	visibility := strings.ToUpper(opts.String("visibility"))
	if visibility == "" {
		visibility = "PUBLIC"
	}
	payload := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": visibility},
	}
	resp, err := httpapi.PostJSON(ctx, c.http, c.base+"/ugcPosts", payload, c.headers())
	if err != nil {
		return platform.Result{}, err
	}
	if resp.Status != http.StatusCreated {
		return platform.Failure("%s", resp.ErrorText()), nil
	}
	id := resp.Header.Get("X-RestLi-Id")
	return platform.Result{
		Success: true,
		ID:      id,
		URL:     "https://www.linkedin.com/feed/update/" + id + "/",
	}, nil
}
