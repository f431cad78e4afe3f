/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize limits the response body read from the similarity service.
const maxResponseSize = 1 << 20

// DefaultTimeout bounds a single request to the similarity service.
const DefaultTimeout = 10 * time.Second

// MaxRetries caps the retries after the first attempt.
const MaxRetries = 2

// RetryConfig holds retry configuration for similarity requests.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig allows two retries with a short backoff, so a guess
// never waits long on a struggling service before falling back.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       MaxRetries + 1,
		BackoffBase:       200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        2 * time.Second,
	}
}

type similarityRequest struct {
	Word1 string `json:"word1"`
	Word2 string `json:"word2"`
}

// SimilarityResponse is the body returned by POST /similarity.
type SimilarityResponse struct {
	Word1      string  `json:"word1"`
	Word2      string  `json:"word2"`
	Similarity float64 `json:"similarity"`
	FoundWord1 bool    `json:"found_word1"`
	FoundWord2 bool    `json:"found_word2"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	VocabSize   int    `json:"vocab_size"`
}

// Client talks to the remote embedding similarity service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		retryConfig: DefaultRetryConfig(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.retryConfig.MaxAttempts = min(max(c.retryConfig.MaxAttempts, 1), MaxRetries+1)

	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Similarity asks the service to score a against b, retrying transient
// failures. It returns the last error once the retry budget is spent.
func (c *Client) Similarity(ctx context.Context, a, b string) (float64, error) {
	var resp SimilarityResponse

	_, err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/similarity", similarityRequest{Word1: a, Word2: b}, &resp)
	})
	if err != nil {
		return 0, err
	}

	return resp.Similarity, nil
}

// Health fetches the service health document, without retries.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse

	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return HealthResponse{}, err
	}

	return resp, nil
}

// TestConnection reports whether the service is up with its model loaded.
func (c *Client) TestConnection(ctx context.Context) bool {
	health, err := c.Health(ctx)
	if err != nil {
		return false
	}
	return health.Status == "healthy" && health.ModelLoaded
}

// withRetry runs fn until it succeeds, fails fatally, or the attempts run out.
// It returns the number of attempts made.
func (c *Client) withRetry(ctx context.Context, fn func() error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}

		lastErr = err

		if IsFatal(err) {
			return attempt, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}
	}

	return c.retryConfig.MaxAttempts, fmt.Errorf("after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// calculateBackoff computes exponential backoff duration with +/- 25% jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return NewFatalError(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return NewFatalError(fmt.Errorf("create request: %w", err))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and client timeouts are transient.
		return NewTransientError(fmt.Errorf("request %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return classifyHTTPError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return NewFatalError(fmt.Errorf("decode response: %w", err))
	}

	return nil
}
