// Package api implements the HTTP transport for the external scoring oracle:
// a rate-limited, retrying client for vLLM-style /score endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/lamim/prefforge/internal/config"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests
	DefaultHTTPTimeout = 120 * time.Second
	// DefaultMaxRetries is the default maximum number of retry attempts
	DefaultMaxRetries = 3
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = 2 * time.Second
	// RateLimitBackoffMultiplier is the multiplier for rate limit backoff (3^n)
	RateLimitBackoffMultiplier = 3
)

// Client handles HTTP requests to the scoring oracle endpoint.
type Client struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *slog.Logger
	maxRetries     int
	baseRetryDelay time.Duration
}

// NewClient creates a new oracle API client.
func NewClient(logger *slog.Logger, oracleCfg config.OracleConfig) *Client {
	timeout := DefaultHTTPTimeout
	if oracleCfg.HTTPTimeoutSeconds > 0 {
		timeout = time.Duration(oracleCfg.HTTPTimeoutSeconds) * time.Second
	}
	maxRetries := DefaultMaxRetries
	if oracleCfg.MaxRetries > 0 {
		maxRetries = oracleCfg.MaxRetries
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:        newScoreLimiter(oracleCfg.RateLimitPerMinute, logger),
		logger:         logger,
		maxRetries:     maxRetries,
		baseRetryDelay: DefaultBaseRetryDelay,
	}
}

// Score asks the oracle to score a response to a prompt. It waits on the
// request limiter, then retries retryable failures with exponential backoff
// (longer 3^n delays for rate-limit rejections).
func (c *Client) Score(
	ctx context.Context,
	oracleCfg config.OracleConfig,
	apiKey string,
	prompt, response string,
) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req := ScoreRequest{
		Model: oracleCfg.ModelName,
		Text1: prompt,
		Text2: response,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseRetryDelay

			// Rate limit rejections get longer delays (3^n: 6s, 18s, 54s).
			if apiErr, ok := lastErr.(*APIError); ok && apiErr.StatusCode == http.StatusTooManyRequests {
				backoff = time.Duration(math.Pow(RateLimitBackoffMultiplier, float64(attempt))) * c.baseRetryDelay
			}

			jitter := time.Duration(float64(backoff) * 0.1 * (2*float64(time.Now().UnixNano()%100)/100 - 1))
			sleepDuration := backoff + jitter

			c.logger.Warn("Retrying oracle request",
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"backoff", sleepDuration,
				"model", oracleCfg.ModelName)

			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(sleepDuration):
			}
		}

		score, err := c.doRequest(ctx, oracleCfg.BaseURL, apiKey, req)
		if err == nil {
			return score, nil
		}

		lastErr = err

		if !c.isRetryable(err) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(
	ctx context.Context,
	baseURL string,
	apiKey string,
	req ScoreRequest,
) (float64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := baseURL
	if endpoint[len(endpoint)-1] != '/' {
		endpoint += "/"
	}
	endpoint += "score"

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, &APIError{
			Message:    fmt.Sprintf("request failed: %v", err),
			StatusCode: 0,
			Retryable:  true,
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		isRetryable := c.isStatusCodeRetryable(httpResp.StatusCode)

		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return 0, &APIError{
				Message:    errResp.Error.Message,
				StatusCode: httpResp.StatusCode,
				Type:       errResp.Error.Type,
				Code:       errResp.Error.Code,
				Retryable:  isRetryable,
			}
		}

		return 0, &APIError{
			Message:    fmt.Sprintf("oracle request failed with status %d: %s", httpResp.StatusCode, string(respBody)),
			StatusCode: httpResp.StatusCode,
			Retryable:  isRetryable,
		}
	}

	var resp ScoreResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("no score returned in response")
	}

	return resp.Data[0].Score, nil
}

func (c *Client) isRetryable(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Retryable
	}
	return false
}

func (c *Client) isStatusCodeRetryable(statusCode int) bool {
	// Retry on rate limits and server errors
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// APIError represents an error returned by the oracle API.
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("oracle API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("oracle API error: %s", e.Message)
}
