package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
	"github.com/shubhsaxena/secondhand-assistant/internal/resilience"
)

// guarded runs fn behind the circuit breaker with retries and records its
// latency under the given query label.
func guarded[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, retryCfg resilience.RetryConfig, query string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()

	out, err := cb.Execute(func() (any, error) {
		var result T
		retryErr := resilience.Retry(ctx, retryCfg, func() error {
			var execErr error
			result, execErr = fn(ctx)
			return execErr
		})
		return result, retryErr
	})

	status := "success"
	if err != nil && !resilience.IsNonRetryable(err) {
		status = "error"
	}
	observability.PGQueryDuration.WithLabelValues(query, status).Observe(time.Since(start).Seconds())

	var zero T
	if err != nil {
		return zero, err
	}
	result, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("postgres %s: unexpected result type %T", query, out)
	}
	return result, nil
}
