// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerBackend wraps a ModelBackend with a circuit breaker so a batch
// does not keep paying the full call timeout against a dead API. Calls
// rejected while the circuit is open fail immediately and the extractor
// records the usual placeholder for them.
type BreakerBackend struct {
	inner ModelBackend
	cb    *gobreaker.CircuitBreaker[string]
}

// NewBreakerBackend wraps backend. The circuit opens after five
// consecutive failures and retries a single call after thirty seconds.
func NewBreakerBackend(backend ModelBackend) *BreakerBackend {
	settings := gobreaker.Settings{
		Name:    "model",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A canceled batch is not evidence that the API is down.
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerBackend{
		inner: backend,
		cb:    gobreaker.NewCircuitBreaker[string](settings),
	}
}

// Complete forwards to the wrapped backend through the circuit breaker.
func (b *BreakerBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.inner.Complete(ctx, prompt)
	})
}

// IsCircuitOpen reports whether err came from an open circuit rather than
// the model call itself.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
