package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

// ErrMalformedResponse is wrapped by every error caused by a response whose
// shape or numeric fields could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// APIError represents a non-success HTTP status from the exchange.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// FetchError wraps any failure of an info query: transport, status or
// decoding. Callers inspect the cause with errors.Is / errors.As.
type FetchError struct {
	Op  string // Info request type, e.g. "metaAndAssetCtxs"
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// malformed wraps a decoding problem as ErrMalformedResponse.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// doRequest POSTs payload as JSON to the info endpoint.
func (c *Client) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.infoURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs a request, retrying retryable failures up to
// maxRetries times with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, op string, payload []byte, maxRetries int) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"op", op,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, payload)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	if maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// info performs one info query with the client's retry policy and decodes
// the JSON response into result. All failures are returned as *FetchError.
func (c *Client) info(ctx context.Context, op string, request, result any) error {
	return c.query(ctx, op, request, result, c.maxRetries)
}

// infoOnce is info with a single attempt; the caller owns retries.
func (c *Client) infoOnce(ctx context.Context, op string, request, result any) error {
	return c.query(ctx, op, request, result, 0)
}

func (c *Client) query(ctx context.Context, op string, request, result any, maxRetries int) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	body, err := c.doWithRetry(ctx, op, payload, maxRetries)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &FetchError{Op: op, Err: malformed("unmarshal: %v", err)}
	}

	return nil
}
