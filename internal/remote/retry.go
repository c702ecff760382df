package remote

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry policy: a fixed budget of attempts with the delay doubling between
// each. Fatal errors (see IsFatal) abort immediately.
const (
	maxAttempts   = 3
	baseRetryWait = 500 * time.Millisecond
)

// withRetry runs op under the retry policy, classifying each failure. The
// classifier is injected so the policy is testable without a network; the
// client passes IsFatal.
func withRetry(ctx context.Context, base time.Duration, fatal func(error) bool, op func(context.Context) error) error {
	b := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(base))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if fatal(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}
