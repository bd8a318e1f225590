package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNext(t *testing.T) {
	tests := []struct {
		current, max, want time.Duration
	}{
		{time.Second, 30 * time.Second, 2 * time.Second},
		{8 * time.Second, 30 * time.Second, 16 * time.Second},
		{16 * time.Second, 30 * time.Second, 30 * time.Second},
		{30 * time.Second, 30 * time.Second, 30 * time.Second},
		{15 * time.Second, 30 * time.Second, 30 * time.Second},
		{0, 30 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := Next(tt.current, tt.max); got != tt.want {
			t.Errorf("Next(%v, %v) = %v, want %v", tt.current, tt.max, got, tt.want)
		}
	}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	b := NewBackoff(time.Second, 5*time.Second)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.Fail(); got != w {
			t.Errorf("Fail #%d = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second)
	b.Fail()
	b.Fail()
	if b.Current() != 4*time.Second {
		t.Fatalf("Current = %v, want 4s", b.Current())
	}
	b.Reset()
	if got := b.Fail(); got != time.Second {
		t.Errorf("after Reset, Fail = %v, want 1s", got)
	}
}

func TestNewBackoff_MaxBelowInitial(t *testing.T) {
	b := NewBackoff(10*time.Second, time.Second)
	b.Fail()
	if got := b.Fail(); got != 10*time.Second {
		t.Errorf("Fail = %v, want 10s", got)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancellation")
	}
}

func TestSleep_Elapses(t *testing.T) {
	if err := Sleep(context.Background(), 5*time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
