// Package httpapi holds the small JSON-over-HTTP helpers shared by the
// REST platform clients.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const defaultTimeout = 15 * time.Second

// NewClient returns an http.Client with timeout (or a default when <= 0).
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// ErrorText renders a non-2xx response as "<status>: <body>".
func (r Response) ErrorText() string {
	body := strings.TrimSpace(string(r.Body))
	if len(body) > 500 {
		body = body[:497] + "..."
	}
	return strconv.Itoa(r.Status) + ": " + body
}

// Do sends req with the given headers and reads the whole body.
func Do(ctx context.Context, hc *http.Client, method, url string, body io.Reader, header http.Header) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Response{}, errors.Wrap(err, "build request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Response{}, errors.Wrapf(err, "%s %s", method, url)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, errors.Wrap(err, "read response")
	}
	return Response{Status: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

// PostJSON marshals payload and POSTs it.
func PostJSON(ctx context.Context, hc *http.Client, url string, payload any, header http.Header) (Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Response{}, errors.Wrap(err, "encode payload")
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	return Do(ctx, hc, http.MethodPost, url, bytes.NewReader(b), h)
}

// Bearer returns an Authorization header set.
func Bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
