// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers for remote conversion services.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// throttled responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryAfter caps the wait taken from a Retry-After header.
var MaxRetryAfter = 60 * time.Second

const defaultMaxRetries = 3

// Retryable reports whether a response status means the service asked the
// caller to come back later.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 and 503.
// The wait is the server's Retry-After when present, otherwise exponential
// backoff from RetryBaseDelay (2 s, 4 s, 8 s).
//
// When maxRetries is 0 the default (3) is used. Requests with a body are
// replayed through req.GetBody. If the context is cancelled during a
// backoff wait the function returns ctx.Err(). After exhausting retries the
// last throttled response is returned so the caller can inspect it. Each
// retry is logged to log at debug level.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, log zerolog.Logger) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryDelay(resp, attempt)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.Debug().
			Int("status", resp.StatusCode).
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Int("max", maxRetries).
			Str("url", req.URL.Redacted()).
			Msg("service throttled request, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// retryDelay honors a Retry-After header in seconds or HTTP-date form and
// falls back to exponential backoff.
func retryDelay(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, MaxRetryAfter)
		}
		if at, err := http.ParseTime(ra); err == nil {
			return min(max(time.Until(at), 0), MaxRetryAfter)
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
}
