package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/limbopet/brain/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingGenerator struct {
	calls atomic.Int32
}

func (g *countingGenerator) Generate(_ context.Context, _ model.JobType, _ map[string]any) (map[string]any, error) {
	g.calls.Add(1)
	return map[string]any{"ok": true}, nil
}

func TestGenerate_EnforcesMinDelay(t *testing.T) {
	inner := &countingGenerator{}
	gen := NewRateLimitedGenerator(inner, 100*time.Millisecond, discardLogger())
	ctx := context.Background()

	// First call should return immediately.
	if _, err := gen.Generate(ctx, model.JobDialogue, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}

	start := time.Now()
	if _, err := gen.Generate(ctx, model.JobDialogue, nil); err != nil {
		t.Fatalf("second call: %v", err)
	}
	elapsed := time.Since(start)

	// Allow 80ms for timer jitter.
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls.Load())
	}
}

func TestGenerate_ContextCancellation(t *testing.T) {
	inner := &countingGenerator{}
	gen := NewRateLimitedGenerator(inner, 5*time.Second, discardLogger())

	if _, err := gen.Generate(context.Background(), model.JobDialogue, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := gen.Generate(ctx, model.JobDialogue, nil)
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancellation took too long: %v", time.Since(start))
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner called after cancellation: %d calls", inner.calls.Load())
	}
}

func TestWrap_ZeroDelayIsPassthrough(t *testing.T) {
	inner := &countingGenerator{}
	if got := Wrap(inner, 0, discardLogger()); got != model.Generator(inner) {
		t.Errorf("Wrap(0) = %T, want inner generator", got)
	}
	if _, ok := Wrap(inner, time.Second, discardLogger()).(*RateLimitedGenerator); !ok {
		t.Error("Wrap(1s) did not rate limit")
	}
}

func TestGenerate_PropagatesInnerError(t *testing.T) {
	boom := errors.New("boom")
	gen := NewRateLimitedGenerator(failingGenerator{boom}, time.Millisecond, discardLogger())
	if _, err := gen.Generate(context.Background(), model.JobDialogue, nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

type failingGenerator struct{ err error }

func (g failingGenerator) Generate(context.Context, model.JobType, map[string]any) (map[string]any, error) {
	return nil, g.err
}
