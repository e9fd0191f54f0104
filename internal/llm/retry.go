package llm

import (
	"context"
	"math/rand"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Retry policy shared by all adapters: up to 3 retries (4 attempts total),
// exponential backoff 0.5s * 2^attempt with +/-20% jitter. Retried:
// network errors, 429, 5xx. Never retried: other 4xx.
const (
	maxRetries       = 3
	retryJitterRatio = 0.2
)

// Var so tests can shrink the clock.
var baseRetryDelay = 500 * time.Millisecond

// backoffDelay returns the delay before retry number n (0-based).
func backoffDelay(n int) time.Duration {
	d := baseRetryDelay * (1 << n)
	jitter := 1 + retryJitterRatio*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}

// withRetry runs op under the retry policy. The operation's error decides
// retryability via shouldRetry; on exhaustion the last error is wrapped as
// a network fault carrying the final status/body text.
func withRetry[T any](ctx context.Context, what string, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			L_debug("llm: retrying", "what", what, "attempt", attempt+1, "delay", delay.Round(time.Millisecond))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, fault.Interrupted()
			}
		}

		v, err := op()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return zero, classifyPermanent(what, err)
		}
		L_warn("llm: transient failure", "what", what, "attempt", attempt+1, "error", err)
	}

	return zero, fault.Network(lastErr, "%s failed after %d attempts", what, maxRetries+1)
}
