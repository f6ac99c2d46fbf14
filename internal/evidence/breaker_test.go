// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"context"
	"fmt"
	"testing"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &mockBackend{err: fmt.Errorf("model unavailable")}
	b := NewBreakerBackend(inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := b.Complete(ctx, "p"); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}
	if inner.callCount() != 5 {
		t.Fatalf("inner calls = %d, want 5 before the circuit opens", inner.callCount())
	}

	_, err := b.Complete(ctx, "p")
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if inner.callCount() != 5 {
		t.Errorf("inner calls = %d, open circuit must not reach the backend", inner.callCount())
	}
}

func TestBreakerPassesSuccesses(t *testing.T) {
	inner := &mockBackend{response: goodResponse}
	b := NewBreakerBackend(inner)

	raw, err := b.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if raw != goodResponse {
		t.Errorf("response not forwarded")
	}
}
