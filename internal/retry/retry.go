// Package retry wraps outbound platform calls with a bounded-attempt,
// exponential-backoff policy. Local storage operations are never wrapped;
// the persistence layer's uniqueness constraints handle their own conflicts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	backoff "github.com/sethvargo/go-retry"
)

const (
	// DefaultAttempts bounds the total number of invocations, not the
	// number of retries.
	DefaultAttempts = 3
	// DefaultBaseDelay is the wait after the first failed attempt; each
	// further wait triples it.
	DefaultBaseDelay = time.Second
)

// Options tunes a single Do call. Zero values fall back to the defaults.
type Options struct {
	Attempts  int
	BaseDelay time.Duration
}

// StatusError carries the HTTP status of a failed remote call so the retry
// policy can classify it. The platform clients attach it at the call site;
// Unwrap keeps the underlying error reachable for callers.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus annotates err with an HTTP status code. A zero status or nil
// error is passed through unchanged.
func WithStatus(err error, status int) error {
	if err == nil || status == 0 {
		return err
	}
	return &StatusError{Status: status, Err: err}
}

// StatusOf extracts the HTTP status from an error annotated by WithStatus.
func StatusOf(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

// Transient reports whether err is worth retrying: HTTP 5xx, HTTP 429, or a
// network-level failure. Everything else (other 4xx, validation errors,
// programming errors) is permanent.
func Transient(err error) bool {
	if status, ok := StatusOf(err); ok {
		return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do invokes op up to opts.Attempts times, waiting baseDelay*3^(n-1) after
// the n-th transient failure. A permanent failure, or exhaustion of the
// attempt budget, propagates the original error unchanged so callers can
// still classify it.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	base := opts.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	attempt := 0
	policy := backoff.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		if attempt >= attempts {
			return 0, true
		}
		delay := base
		for i := 1; i < attempt; i++ {
			delay *= 3
		}
		return delay, false
	})

	var result T
	err := backoff.Do(ctx, policy, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		if opErr != nil && Transient(opErr) {
			return backoff.RetryableError(opErr)
		}
		return opErr
	})
	return result, err
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	_, err := Do(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
