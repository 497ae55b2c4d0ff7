// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP retry policy used for status polling.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-skills/pkg/types"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const defaultMaxRetries = 3

// ErrRetriesExhausted is wrapped by the error returned when every attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// DoWithRetry executes an HTTP request and retries transport failures,
// HTTP 429, and HTTP 5xx responses with exponential backoff. The delay
// starts at RetryBaseDelay and doubles each attempt.
//
// When maxRetries is 0 the default (3) is used. Any other response is
// returned to the caller unchanged. After exhausting retries the error is
// a TransportError wrapping ErrRetriesExhausted. If the context ends the
// context error is returned as-is so callers can tell a deadline from a
// transport failure.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, logger *zap.Logger) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		attemptReq, err := cloneRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, cause := client.Do(attemptReq)
		if cause != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		} else if retryable(resp.StatusCode) {
			// Drain and close the body before retrying.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			cause = fmt.Errorf("HTTP %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		if attempt >= maxRetries {
			return nil, types.Errorf(types.KindTransport, "%s %s: %w after %d attempts: %w",
				req.Method, req.URL.Redacted(), ErrRetriesExhausted, attempt+1, cause)
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		logger.Warn("request failed, retrying",
			zap.String("url", req.URL.Redacted()),
			zap.Error(cause),
			zap.Duration("backoff", backoff),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// cloneRequest returns a copy of req bound to ctx with a fresh body.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		r.Body = body
	}
	return r, nil
}
