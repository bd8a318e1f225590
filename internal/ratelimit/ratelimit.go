// Package ratelimit spaces out calls to a remote generator.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/limbopet/brain/internal/model"
)

var _ model.Generator = (*RateLimitedGenerator)(nil)

// RateLimitedGenerator is a decorator that enforces a minimum delay between
// consecutive Generate calls before delegating to the wrapped generator.
type RateLimitedGenerator struct {
	inner   model.Generator
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimitedGenerator wraps inner. The first call proceeds immediately;
// later calls wait until minDelay has passed since the previous one.
func NewRateLimitedGenerator(inner model.Generator, minDelay time.Duration, logger *slog.Logger) *RateLimitedGenerator {
	return &RateLimitedGenerator{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(minDelay), 1),
		logger:  logger,
	}
}

// Wrap returns inner unchanged when minDelay is not positive.
func Wrap(inner model.Generator, minDelay time.Duration, logger *slog.Logger) model.Generator {
	if minDelay <= 0 {
		return inner
	}
	return NewRateLimitedGenerator(inner, minDelay, logger)
}

func (g *RateLimitedGenerator) Generate(ctx context.Context, jobType model.JobType, input map[string]any) (map[string]any, error) {
	start := time.Now()
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		g.logger.Debug("generator rate limited", "job_type", jobType, "waited", waited.String())
	}
	return g.inner.Generate(ctx, jobType, input)
}
