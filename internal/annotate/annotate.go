// Package annotate turns C function bodies into prose descriptions by
// calling a text generation service. It hides which service behind the
// Describer interface and classifies every failure so callers can tell
// a transient outage from an exhausted quota or a garbage response.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Describer produces a description for one function's source text.
// Implementations must be safe for concurrent use.
type Describer interface {
	Describe(ctx context.Context, code string) (string, error)
	Name() string
	Close() error
}

// Options configures a Describer built by New.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string // openai-compatible endpoint, empty for the default
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// FailKind says why a description attempt failed.
type FailKind int

const (
	// FailUnavailable covers transport errors and 5xx answers. Worth
	// retrying.
	FailUnavailable FailKind = iota
	// FailQuota is a rate or quota rejection. Retrying immediately only
	// digs the hole deeper; the pool pauses instead.
	FailQuota
	// FailTimeout is a request that ran out of time. Worth retrying.
	FailTimeout
	// FailMalformed is an answer that arrived but could not be used.
	// Retrying tends to reproduce it, so it is final.
	FailMalformed
)

func (k FailKind) String() string {
	switch k {
	case FailUnavailable:
		return "unavailable"
	case FailQuota:
		return "quota-exceeded"
	case FailTimeout:
		return "timeout"
	case FailMalformed:
		return "malformed-response"
	default:
		return "unknown"
	}
}

// DescribeError is a classified annotation failure. RetryAfter carries
// the service's own back-off hint when it gave one.
type DescribeError struct {
	Kind       FailKind
	RetryAfter time.Duration
	Err        error
}

func (e *DescribeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DescribeError) Unwrap() error { return e.Err }

// Kind extracts the failure kind from an annotation error.
func Kind(err error) (FailKind, bool) {
	var de *DescribeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// Retryable reports whether another attempt at the same request could
// plausibly succeed.
func Retryable(err error) bool {
	k, ok := Kind(err)
	return ok && (k == FailUnavailable || k == FailTimeout)
}
