package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts is the number of attempts made before giving up on a request
	DefaultMaxAttempts = 20
	// DefaultRetryDelay is the fixed wait between attempts. The provider's rate
	// limit windows reset every 15 minutes, so a fixed wait rides them out.
	DefaultRetryDelay = 30 * time.Second
)

var (
	// ErrRetriesExhausted is matched by failures that used every attempt
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrUnexpectedStatus is matched by non-retryable status failures
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// RetryMode selects which failures are retried
type RetryMode string

const (
	// RetryAll retries every non-200 response and transport error alike
	RetryAll RetryMode = "all"
	// RetryTransient retries only 429, 5xx and transport errors; other
	// statuses such as 401 fail on the first attempt
	RetryTransient RetryMode = "transient"
)

// ParseRetryMode converts a configuration value into a RetryMode
func ParseRetryMode(s string) (RetryMode, error) {
	switch RetryMode(strings.ToLower(strings.TrimSpace(s))) {
	case RetryAll, "":
		return RetryAll, nil
	case RetryTransient:
		return RetryTransient, nil
	default:
		return "", fmt.Errorf("unknown retry mode: %s", s)
	}
}

// RetryPolicy bounds the retry loop of every request
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Mode        RetryMode
}

// DefaultRetryPolicy returns 20 attempts, 30 seconds apart, retrying everything
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultRetryDelay,
		Mode:        RetryAll,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) shouldRetry(status int, err error) bool {
	if p.Mode != RetryTransient {
		return true
	}
	if err != nil {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusError is returned when a status is not retried under the current mode
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Body, e.URL)
}

// Is reports whether target is ErrUnexpectedStatus
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// ExhaustedRetriesError is returned once every attempt failed
type ExhaustedRetriesError struct {
	URL        string
	Attempts   int
	LastStatus int
	LastErr    error
}

func (e *ExhaustedRetriesError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("request to %s failed after %d attempts: last status %d", e.URL, e.Attempts, e.LastStatus)
}

// Is reports whether target is ErrRetriesExhausted
func (e *ExhaustedRetriesError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.LastErr
}
