// Package suggest provides a client for autocomplete suggestion endpoints
// speaking the chrome client JSON format: `["query", ["s1", "s2", ...]]`.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the autocomplete operations.
type Client interface {
	// Suggest returns autocomplete suggestions for a query.
	Suggest(ctx context.Context, query string) ([]string, error)
}

// Option configures the suggest client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithLanguage sets the hl parameter (default "es").
func WithLanguage(lang string) Option {
	return func(c *httpClient) {
		c.language = lang
	}
}

// WithVertical sets the ds parameter, e.g. "yt" for video suggestions.
func WithVertical(ds string) Option {
	return func(c *httpClient) {
		c.vertical = ds
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL  string
	language string
	vertical string
	http     *http.Client
}

// NewClient creates a new suggestion client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:  "https://suggestqueries.google.com/complete/search",
		language: "es",
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "suggest: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("suggest: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Suggest(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("client", "chrome")
	params.Set("q", query)
	params.Set("hl", c.language)
	if c.vertical != "" {
		params.Set("ds", c.vertical)
	}
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.language)

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("suggest: unexpected status %d: %s", statusCode, string(body))
	}

	// Response shape: [query, [suggestions...], ...extra metadata].
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "suggest: unmarshal response")
	}
	if len(raw) < 2 {
		return nil, eris.Errorf("suggest: unexpected response shape: %s", string(body))
	}

	var suggestions []string
	if err := json.Unmarshal(raw[1], &suggestions); err != nil {
		return nil, eris.Wrap(err, "suggest: unmarshal suggestions")
	}
	return suggestions, nil
}
