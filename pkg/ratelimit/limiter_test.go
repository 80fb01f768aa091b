package ratelimit

import (
	"context"
	"testing"
	"time"

	errs "friendgeo/pkg/errors"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("expected token %d to be available", i+1)
		}
	}
	if tb.Allow() {
		t.Error("expected bucket to be empty after burst")
	}

	tb.Reset()
	if !tb.Allow() {
		t.Error("expected tokens after reset")
	}
}

func TestTokenBucketWaitPaces(t *testing.T) {
	tb := NewTokenBucket(20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := tb.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// first token is immediate, the next two take ~50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("calls were not paced, elapsed %v", elapsed)
	}
}

func TestTokenBucketPause(t *testing.T) {
	tb := NewTokenBucket(1000, 10)
	tb.Pause(60 * time.Millisecond)

	if tb.Allow() {
		t.Error("Allow should refuse while paused")
	}

	start := time.Now()
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Wait returned before pause ended: %v", elapsed)
	}
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	tb.Pause(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tb.Wait(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatal("Unlimited refused a call")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait should surface a cancelled context")
	}
}

func TestPauseOnRateLimit(t *testing.T) {
	tb := NewTokenBucket(100, 1)

	PauseOnRateLimit(tb, errs.Transient(nil, "reset"), time.Hour)
	if !tb.Allow() {
		t.Fatal("transient errors must not pause the limiter")
	}

	PauseOnRateLimit(tb, errs.RateLimited("slow down"), time.Hour)
	if tb.Allow() {
		t.Fatal("expected limiter to be paused after a rate limit")
	}

	// limiters without Pause are left alone
	PauseOnRateLimit(Unlimited{}, errs.RateLimited("slow down"), time.Hour)
}
