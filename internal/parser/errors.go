package parser

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrAllStrategiesFailed is returned when no attempt produced output.
var ErrAllStrategiesFailed = errors.New("all strategies failed")

// RateLimitError reports that a parsing engine refused work (HTTP 429).
// The runner opens the engine's circuit for RetryAfter.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Engine     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("engine %s rate limited (retry after %s): %v", e.Engine, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. Non-positive retryAfterSecs means 60s.
func NewRateLimitError(engine string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Engine:     engine,
	}
}

// ParseRetryAfterHeader reads a Retry-After header given in seconds.
// HTTP-date values and garbage yield 0.
func ParseRetryAfterHeader(val string) int {
	secs, err := strconv.Atoi(val)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
