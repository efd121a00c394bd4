// Package httputil holds HTTP helpers shared by the outbound clients.
package httputil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay is the first backoff step after a 429. Tests shrink it.
var RetryBaseDelay = 2 * time.Second

const DefaultMaxRetries = 4

// DoWithRetry sends req and retries on 429 Too Many Requests, doubling the
// delay each attempt. A Retry-After header in seconds overrides the computed
// delay. Requests must have a replayable body (GET or GetBody set).
// After maxRetries the last 429 response is returned unread.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := RetryBaseDelay << attempt
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			backoff = time.Duration(secs) * time.Second
		}
		slog.Warn("rate limited, backing off",
			"url", req.URL.Redacted(),
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"backoff", backoff)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
