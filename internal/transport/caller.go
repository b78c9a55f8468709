// Package transport issues outbound HTTP calls with per-attempt timeout
// enforcement, a bounded retry budget, and terminal error classification.
// The caller knows nothing about rows, batches, or datasets; it maps one
// (endpoint, payload, budget) triple to one domain.CallResult envelope.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ahrav/go-autoeval/internal/domain"
)

// bodySnippetLimit bounds the response-body excerpt carried in error
// messages, matching the 200-character convention of the output columns.
const bodySnippetLimit = 200

// Request describes one outbound call and its retry budget.
type Request struct {
	// Endpoint is the URL the payload is POSTed to.
	Endpoint string

	// APIKey, when non-empty, is sent as a bearer token.
	APIKey string

	// Payload is JSON-encoded as the request body.
	Payload any

	// Headers are additional headers applied after the defaults.
	Headers map[string]string

	// Timeout bounds each individual attempt. Zero disables the per-attempt
	// deadline (the parent context still applies).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt, so the
	// caller makes at most MaxRetries+1 attempts.
	MaxRetries int

	// RetryInterval is the base inter-attempt delay; the wait before
	// attempt n+1 is RetryInterval*n.
	RetryInterval time.Duration
}

// Caller executes Requests over a shared http.Client. The zero value is
// not usable; construct with NewCaller so the client and logger are set.
type Caller struct {
	client *http.Client
	logger *slog.Logger
}

// NewCaller returns a Caller using the given client, or http.DefaultClient
// semantics when nil. Per-attempt deadlines come from Request.Timeout, so
// the client itself carries no timeout.
func NewCaller(client *http.Client, logger *slog.Logger) *Caller {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Caller{client: client, logger: logger}
}

// Do executes the request with bounded retries and returns a terminal
// result. Non-2xx responses, timeouts, and transport failures are all
// retried until the budget is exhausted, then classified. The returned
// envelope always reports the attempt count, the final attempt's wall
// clock, and the cumulative elapsed time including inter-attempt waits.
func (c *Caller) Do(ctx context.Context, req *Request) *domain.CallResult {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return &domain.CallResult{
			Status:   domain.CallParseError,
			Attempts: 1,
			Err:      fmt.Sprintf("encode request payload: %v", err),
		}
	}

	maxAttempts := req.MaxRetries + 1
	start := time.Now()

	var result *domain.CallResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result = c.attempt(ctx, req, payload)
		result.Attempts = attempt
		if result.Succeeded() {
			break
		}

		c.logger.Warn("call attempt failed",
			"endpoint", req.Endpoint,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"status", string(result.Status),
			"http_status", result.HTTPStatus,
			"error", result.Err,
		)

		if attempt == maxAttempts {
			break
		}
		if err := sleepContext(ctx, req.RetryInterval*time.Duration(attempt)); err != nil {
			// The run was aborted while waiting; keep the last classification.
			break
		}
	}

	result.TotalElapsedMs = time.Since(start).Milliseconds()
	return result
}

// attempt performs a single HTTP exchange and classifies its outcome.
func (c *Caller) attempt(ctx context.Context, req *Request, payload []byte) *domain.CallResult {
	attemptCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, req.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return &domain.CallResult{
			Status:    domain.CallTransportError,
			ElapsedMs: time.Since(start).Milliseconds(),
			Err:       fmt.Sprintf("build request: %v", err),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.client.Do(httpReq)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return &domain.CallResult{
			Status:    classifyTransportError(err),
			ElapsedMs: elapsed,
			Err:       err.Error(),
		}
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, readErr := io.ReadAll(httpResp.Body)
	elapsed = time.Since(start).Milliseconds()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return &domain.CallResult{
			Status:     domain.CallHTTPError,
			HTTPStatus: httpResp.StatusCode,
			ElapsedMs:  elapsed,
			Err:        fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode, snippet(body)),
		}
	}
	if readErr != nil {
		return &domain.CallResult{
			Status:     domain.CallParseError,
			HTTPStatus: httpResp.StatusCode,
			ElapsedMs:  elapsed,
			Err:        fmt.Sprintf("read response body: %v", readErr),
		}
	}

	return &domain.CallResult{
		Status:      domain.CallSuccess,
		Payload:     body,
		ContentType: httpResp.Header.Get("Content-Type"),
		HTTPStatus:  httpResp.StatusCode,
		ElapsedMs:   elapsed,
	}
}

// classifyTransportError separates deadline expiry from connection-level
// failures. Both are retryable; they differ only in the terminal status.
func classifyTransportError(err error) domain.CallStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CallTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CallTimeout
	}
	return domain.CallTransportError
}

// sleepContext waits for the delay or until the context is cancelled.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// snippet truncates a response body for inclusion in error messages.
func snippet(body []byte) string {
	if len(body) > bodySnippetLimit {
		return string(body[:bodySnippetLimit])
	}
	return string(body)
}
