package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxBodySize = 4 * 1024 * 1024

// FetchJSON performs exactly one HTTP round trip and returns the raw
// response body. It classifies the outcome: 200 is success, 429 is
// *ErrRateLimited, 404 is *ErrNotFound, everything else (including
// transport errors) is *ErrUnavailable. It never retries; looping is the
// retry wrapper's job.
func FetchJSON(client *http.Client, req *http.Request, platform PlatformName) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Platform: platform, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return nil, &ErrNotFound{Platform: platform, ID: req.URL.Path}
	case http.StatusTooManyRequests:
		return nil, &ErrRateLimited{
			Platform: platform,
			Cause:    fmt.Errorf("HTTP 429"),
		}
	default:
		return nil, &ErrUnavailable{
			Platform: platform,
			Cause:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &ErrUnavailable{Platform: platform, Cause: err}
	}
	return body, nil
}

// RetryConfig bounds the retry loop around a single-attempt fetch.
type RetryConfig struct {
	// Limit is the total number of attempts, including the first.
	Limit int
	// Backoff is the fixed sleep between attempts after a rate-limit signal.
	Backoff time.Duration
	// Sleep overrides the backoff sleep. Tests use it to observe and skip
	// real delays; nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c RetryConfig) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
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

// WithRetry runs fn until it succeeds, fails terminally, or the attempt
// budget is spent. Only *ErrRateLimited triggers another attempt, after
// the fixed backoff; any other error returns immediately. On exhaustion
// the last observed rate-limit error is returned.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	limit := cfg.Limit
	if limit < 1 {
		limit = 1
	}

	var lastErr error
	for attempt := 0; attempt < limit; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRateLimited(err) {
			return zero, err
		}
		lastErr = err
		if attempt == limit-1 {
			break
		}
		if err := cfg.sleep(ctx, cfg.Backoff); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// PageFunc fetches one page of a collection at the given integer offset.
// more reports whether the service signals a further page.
type PageFunc[T any] func(ctx context.Context, offset int) (items []T, more bool, err error)

// FetchAll accumulates every page of a collection in order. Best-effort:
// when a later page fails after its own retries, the items collected so
// far are returned as success. An empty accumulator propagates the error
// instead, so a real failure never masquerades as "no items".
func FetchAll[T any](ctx context.Context, pageSize int, page PageFunc[T]) ([]T, error) {
	var all []T
	for offset := 0; ; offset += pageSize {
		items, more, err := page(ctx, offset)
		if err != nil {
			if len(all) > 0 {
				return all, nil
			}
			return nil, err
		}
		all = append(all, items...)
		if !more || len(items) == 0 {
			return all, nil
		}
	}
}

// IsRateLimited reports whether err is (or wraps) a rate-limit signal.
func IsRateLimited(err error) bool {
	var rl *ErrRateLimited
	return errors.As(err, &rl)
}

// IsNotFound reports whether err is (or wraps) a missing-record signal.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
