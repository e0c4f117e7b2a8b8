package adapters

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// RetryConfig controls how often Connect pings a freshly opened engine
// before giving up. Only connection-level failures are retried.
type RetryConfig struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns 3 attempts starting at 100ms, doubling up to 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:   3,
		Backoff:    100 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = c.Backoff
	}
	return c
}

// RetryResult records every attempt ExecuteWithRetry made.
type RetryResult struct {
	Attempts int
	Errors   []error
	Success  bool
}

// LastError returns the error of the final attempt, or nil on success.
func (r RetryResult) LastError() error {
	if r.Success || len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[len(r.Errors)-1]
}

func (r RetryResult) String() string {
	if r.Success {
		return fmt.Sprintf("connected after %d attempt(s)", r.Attempts)
	}
	return fmt.Sprintf("gave up after %d attempt(s): %v", r.Attempts, r.LastError())
}

// RetryableError is returned by Connect when every attempt failed.
type RetryableError struct {
	Result RetryResult
}

func (e *RetryableError) Error() string {
	return e.Result.String()
}

func (e *RetryableError) Unwrap() error {
	return e.Result.LastError()
}

// IsRetryable reports whether err looks like a dropped or refused
// connection. Query errors and context cancellation are final.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ExecuteWithRetry calls fn until it succeeds, fails with a non-retryable
// error, ctx ends or the attempts run out.
func ExecuteWithRetry(ctx context.Context, cfg RetryConfig, fn func() error) RetryResult {
	cfg = cfg.withDefaults()
	var result RetryResult

	wait := cfg.Backoff
	for result.Attempts < cfg.Attempts {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err)
			return result
		}

		result.Attempts++
		err := fn()
		if err == nil {
			result.Success = true
			return result
		}
		result.Errors = append(result.Errors, err)
		if !IsRetryable(err) || result.Attempts == cfg.Attempts {
			return result
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Errors = append(result.Errors, ctx.Err())
			return result
		case <-timer.C:
		}
		if wait *= 2; wait > cfg.MaxBackoff {
			wait = cfg.MaxBackoff
		}
	}
	return result
}
