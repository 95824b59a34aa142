package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})
	ctx := context.Background()
	boom := errors.New("provider down")

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(ctx, func() (interface{}, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: got %v, want provider error", i, err)
		}
	}

	if cb.State() != "open" {
		t.Fatalf("state after trip: got %q, want open", cb.State())
	}

	called := false
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		called = true
		return "ok", nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open circuit: got %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("function must not run while the circuit is open")
	}
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          1,
		Timeout:              10 * time.Millisecond,
		HalfOpenMaxSuccesses: 1,
	})
	ctx := context.Background()

	cb.Execute(ctx, func() (interface{}, error) { return nil, errors.New("fail") })
	if cb.State() != "open" {
		t.Fatalf("state: got %q, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	result, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("probe after timeout: %v", err)
	}
	if result != "ok" {
		t.Errorf("result: got %v", result)
	}
	if cb.State() != "closed" {
		t.Errorf("state after probe success: got %q, want closed", cb.State())
	}
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := NewCircuitBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if cb.State() != "closed" {
		t.Errorf("cancelled context should not affect breaker state, got %q", cb.State())
	}
}
