// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across source adapters.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const (
	defaultMaxAttempts = 4

	// maxRetryAfter caps server-provided Retry-After hints so a hostile or
	// misconfigured upstream cannot stall a run indefinitely.
	maxRetryAfter = 60 * time.Second
)

// Limiter gates outbound calls. Both golang.org/x/time/rate.Limiter and
// ratelimit.Window satisfy it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Options configures DoWithRetry.
type Options struct {
	// MaxAttempts is the total attempt ceiling (default 4).
	MaxAttempts int

	// Limiter, when set, is acquired before every attempt, including
	// retries.
	Limiter Limiter
}

// DoWithRetry executes req, retrying on network error, HTTP 429, and 5xx
// server errors with exponential backoff (RetryBaseDelay doubling per
// attempt). A 429 carrying a Retry-After hint sleeps exactly the hinted
// duration instead, parsed as seconds or an HTTP date and capped at
// maxRetryAfter.
//
// On a non-retryable status the response is returned as-is for the caller
// to inspect. After exhausting attempts the last response (or last network
// error) is returned. Cancelling ctx during a backoff wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, opts Options) (*http.Response, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			if attempt == maxAttempts-1 {
				return nil, lastErr
			}
			if err := sleepBackoff(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == maxAttempts-1 {
			return resp, nil
		}

		var hint time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			hint = ParseRetryAfter(resp.Header.Get("Retry-After"))
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := sleepBackoff(ctx, attempt, hint); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// retryableStatus reports whether the status is transient: 429 or a 5xx
// gateway/server error.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// sleepBackoff waits the server hint when present, otherwise exponential
// backoff for the given attempt.
func sleepBackoff(ctx context.Context, attempt int, hint time.Duration) error {
	d := hint
	if d <= 0 {
		d = time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ParseRetryAfter converts a Retry-After header value to a duration. The
// value may be a number of seconds or an HTTP date; anything unparseable is
// 0. Results are capped at maxRetryAfter.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		d = time.Duration(secs * float64(time.Second))
	} else if at, err := http.ParseTime(v); err == nil {
		d = time.Until(at)
	}
	if d < 0 {
		d = 0
	}
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
