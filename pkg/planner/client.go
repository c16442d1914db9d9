// Package planner provides a client for an external keyword-planner
// metrics API reporting average monthly searches and competition.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Metrics is what the planner reports for one keyword.
type Metrics struct {
	Keyword            string  `json:"keyword"`
	AvgMonthlySearches int     `json:"avg_monthly_searches"`
	Competition        float64 `json:"competition"`
}

// Client defines the planner operations.
type Client interface {
	// KeywordMetrics fetches metrics for one keyword in a market.
	KeywordMetrics(ctx context.Context, keyword, geo, language string) (Metrics, error)
	// BatchMetrics fetches metrics for up to MaxBatchSize keywords at once.
	BatchMetrics(ctx context.Context, keywords []string, geo, language string) ([]Metrics, error)
}

// MaxBatchSize is the largest keyword batch a single request may carry.
const MaxBatchSize = 20

type metricsRequest struct {
	Keywords   []string `json:"keywords"`
	Geo        string   `json:"geo"`
	Language   string   `json:"language"`
	CustomerID string   `json:"customer_id"`
}

type metricsResponse struct {
	Metrics []Metrics `json:"metrics"`
}

// Option configures the planner client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey     string
	customerID string
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a planner client for the given API key and customer
// account.
func NewClient(apiKey, customerID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		customerID: customerID,
		baseURL:    "https://api.keywordplanner.dev/v1/metrics",
		limiter:    rate.NewLimiter(rate.Limit(0.5), 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) KeywordMetrics(ctx context.Context, keyword, geo, language string) (Metrics, error) {
	results, err := c.BatchMetrics(ctx, []string{keyword}, geo, language)
	if err != nil {
		return Metrics{}, err
	}
	if len(results) == 0 {
		return Metrics{Keyword: keyword}, nil
	}
	return results[0], nil
}

func (c *httpClient) BatchMetrics(ctx context.Context, keywords []string, geo, language string) ([]Metrics, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if len(keywords) > MaxBatchSize {
		return nil, eris.Errorf("planner: batch of %d exceeds limit %d", len(keywords), MaxBatchSize)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "planner: rate limiter")
		}
	}

	payload, err := json.Marshal(metricsRequest{
		Keywords:   keywords,
		Geo:        geo,
		Language:   language,
		CustomerID: c.customerID,
	})
	if err != nil {
		return nil, eris.Wrap(err, "planner: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "planner: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "planner: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "planner: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		// Transient; callers wrap this client in their own retry policy.
		return nil, eris.Errorf("planner: transient status %d: %s", resp.StatusCode, string(body))
	default:
		return nil, eris.Errorf("planner: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result metricsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "planner: unmarshal response")
	}
	return result.Metrics, nil
}
