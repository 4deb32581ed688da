package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWait_DelayElapses(t *testing.T) {
	l := New(20*time.Millisecond, nil)

	start := time.Now()
	if err := l.Wait(context.Background(), "crm"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected at least 20ms wait, got %s", elapsed)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New(10*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := l.Wait(ctx, "crm")
	if err == nil {
		t.Fatal("expected context error, got nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled wait took too long: %s", elapsed)
	}
}

func TestWait_ZeroDelayReturnsImmediately(t *testing.T) {
	l := New(0, nil)
	if err := l.Wait(context.Background(), "crm"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestDelay_PerProviderOverride(t *testing.T) {
	l := New(time.Second, map[string]time.Duration{"slow": 5 * time.Second})

	if got := l.Delay("slow"); got != 5*time.Second {
		t.Errorf("expected provider override 5s, got %s", got)
	}
	if got := l.Delay("other"); got != time.Second {
		t.Errorf("expected default 1s, got %s", got)
	}
}
