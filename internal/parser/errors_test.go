package parser_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stmtrules/internal/parser"
)

func TestRateLimitError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("429 from upstream")
	rlErr := parser.NewRateLimitError("ml-enhanced", cause, 30)

	assert.Contains(t, rlErr.Error(), "ml-enhanced")
	assert.Contains(t, rlErr.Error(), "30s")
	assert.Equal(t, cause, errors.Unwrap(rlErr))
}

func TestRateLimitError_FoundThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("attempt 2: %w", parser.NewRateLimitError("regex-based", errors.New("busy"), 15))

	var target *parser.RateLimitError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "regex-based", target.Engine)
	assert.Equal(t, 15*time.Second, target.RetryAfter)
}

func TestNewRateLimitError_DefaultsToOneMinute(t *testing.T) {
	assert.Equal(t, time.Minute, parser.NewRateLimitError("basic", errors.New("x"), 0).RetryAfter)
	assert.Equal(t, time.Minute, parser.NewRateLimitError("basic", errors.New("x"), -5).RetryAfter)
}

func TestParseRetryAfterHeader(t *testing.T) {
	cases := map[string]int{
		"":                              0,
		"30":                            30,
		"-1":                            0,
		"Wed, 21 Oct 2015 07:28:00 GMT": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, parser.ParseRetryAfterHeader(in), "header %q", in)
	}
}
