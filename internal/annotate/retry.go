package annotate

import (
	"context"
	"time"
)

// Retry wraps a Describer and reissues calls that failed transiently,
// doubling the delay between attempts. Quota and malformed failures
// return at once: quota pacing is the pool's job, and a malformed
// answer tends to reproduce itself.
type Retry struct {
	inner    Describer
	attempts int
	base     time.Duration
}

// WithRetry gives d up to attempts tries per call, waiting base before
// the second try and doubling from there.
func WithRetry(d Describer, attempts int, base time.Duration) *Retry {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	return &Retry{inner: d, attempts: attempts, base: base}
}

func (r *Retry) Describe(ctx context.Context, code string) (string, error) {
	var lastErr error
	delay := r.base
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		text, err := r.inner.Describe(ctx, code)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !Retryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (r *Retry) Name() string { return r.inner.Name() }

func (r *Retry) Close() error { return r.inner.Close() }
