package ratelimiter

import (
	"context"
	"testing"
	"time"
)

// TestNew verifies limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		connsPerSecond uint
		burst          uint
	}{
		{name: "standard rate", connsPerSecond: 100, burst: 200},
		{name: "low rate", connsPerSecond: 1, burst: 2},
		{name: "unlimited (zero rate)", connsPerSecond: 0, burst: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.connsPerSecond, tt.burst)
			if limiter == nil {
				t.Fatal("New() returned nil")
			}
			if limiter.limiter == nil {
				t.Fatal("internal limiter is nil")
			}
		})
	}
}

// TestAllow verifies that Allow() enforces the configured burst.
func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("connection %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Fatal("connection should be rejected after burst exhausted")
	}

	// One token replenishes after 100ms at 10 conns/s.
	time.Sleep(110 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("connection should be allowed after token replenishment")
	}
}

// TestWaitCancellation verifies Wait respects context cancellation.
func TestWaitCancellation(t *testing.T) {
	limiter := New(1, 1)
	if !limiter.Allow() {
		t.Fatal("first connection should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait should fail when context expires before a token is available")
	}
}

// TestUnlimited verifies the zero-rate configuration never rejects.
func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatalf("unlimited limiter rejected connection %d", i)
		}
	}
}
