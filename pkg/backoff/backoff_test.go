package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicy_DelaySequence(t *testing.T) {
	p := DefaultPolicy()

	want := []time.Duration{
		0,
		1 * time.Second,
		4 * time.Second,
		9 * time.Second,
		15 * time.Second,
		15 * time.Second,
		15 * time.Second,
	}

	for failures, w := range want {
		if got := p.Delay(failures); got != w {
			t.Errorf("Delay(%d) = %v, want %v", failures, got, w)
		}
	}
}

func TestPolicy_Delay(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		failures int
		want     time.Duration
	}{
		{"negative failures", DefaultPolicy(), -3, 0},
		{"millisecond unit", Policy{Cap: 15 * time.Millisecond, Exponent: 2, Unit: time.Millisecond}, 3, 9 * time.Millisecond},
		{"millisecond unit capped", Policy{Cap: 15 * time.Millisecond, Exponent: 2, Unit: time.Millisecond}, 4, 15 * time.Millisecond},
		{"zero unit falls back to seconds", Policy{Cap: time.Minute, Exponent: 1}, 2, 2 * time.Second},
		{"huge failure count stays capped", DefaultPolicy(), 1 << 30, 15 * time.Second},
		{"linear exponent", Policy{Cap: time.Minute, Exponent: 1, Unit: time.Second}, 7, 7 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.failures); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.failures, got, tt.want)
			}
		})
	}
}

func TestSleep_Completes(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Sleep returned after %v, want >= 20ms", elapsed)
	}
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Sleep took %v after cancel", elapsed)
	}
}

func TestSleep_ZeroDelay(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep(0) on canceled ctx = %v, want context.Canceled", err)
	}
}
