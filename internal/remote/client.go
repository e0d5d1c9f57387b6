// Package remote talks to the bizkeeper server API over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rsahai/bizkeeper/internal/apperr"
)

// Client dispatches a single local mutation to the server. Implementations
// must treat any non-nil error as "not delivered"; the caller decides whether
// to retry.
type Client interface {
	Post(ctx context.Context, collection, id string, body json.RawMessage) error
	Put(ctx context.Context, collection, id string, body json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
}

// HTTPClient is the production Client over net/http.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a client for the API rooted at baseURL
// (e.g. "https://api.example.com"). A zero timeout disables the
// client-side deadline; callers normally bound requests with ctx.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Post(ctx context.Context, collection, id string, body json.RawMessage) error {
	endpoint, err := url.JoinPath(c.baseURL, "api", collection)
	if err != nil {
		return apperr.Wrap(apperr.ErrRemote, "invalid endpoint", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.ErrRemote, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Creates are retried on failure; the entity id dedupes replays server-side.
	req.Header.Set("Idempotency-Key", id)
	return c.do(req)
}

func (c *HTTPClient) Put(ctx context.Context, collection, id string, body json.RawMessage) error {
	endpoint, err := url.JoinPath(c.baseURL, "api", collection, id)
	if err != nil {
		return apperr.Wrap(apperr.ErrRemote, "invalid endpoint", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.ErrRemote, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) Delete(ctx context.Context, collection, id string) error {
	endpoint, err := url.JoinPath(c.baseURL, "api", collection, id)
	if err != nil {
		return apperr.Wrap(apperr.ErrRemote, "invalid endpoint", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrRemote, "build request", err)
	}
	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ErrRemote, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Msg("server rejected request")
	return apperr.New(apperr.ErrRemote,
		fmt.Sprintf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, snippet))
}
