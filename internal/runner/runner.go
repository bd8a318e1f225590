// Package runner owns the brain's main loop: pull a job, generate a result,
// submit it, and back off while the queue is unreachable.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/limbopet/brain/internal/model"
	"github.com/limbopet/brain/internal/retry"
)

// SleepFunc waits for d. It returns an error when ctx ends first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Runner processes jobs strictly one at a time.
type Runner struct {
	queue      model.JobQueue
	gen        model.Generator
	notifier   model.Notifier
	interval   time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
	sleep      SleepFunc
}

// New creates a runner that polls every interval and backs off up to
// maxBackoff while pulls fail.
func New(
	queue model.JobQueue,
	gen model.Generator,
	notifier model.Notifier,
	interval time.Duration,
	maxBackoff time.Duration,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		queue:      queue,
		gen:        gen,
		notifier:   notifier,
		interval:   interval,
		maxBackoff: maxBackoff,
		logger:     logger,
		sleep:      retry.Sleep,
	}
}

// SetSleeper replaces the wait used between iterations.
func (r *Runner) SetSleeper(fn SleepFunc) {
	r.sleep = fn
}

// Run loops until ctx is cancelled and returns the process exit status.
// With once set it handles at most one job: it returns 1 if the pull failed
// and 0 otherwise, including when the job itself failed.
func (r *Runner) Run(ctx context.Context, once bool) int {
	r.logger.Info("starting runner",
		"interval", r.interval.String(),
		"max_backoff", r.maxBackoff.String(),
		"once", once,
	)

	backoff := retry.NewBackoff(r.interval, r.maxBackoff)
	for {
		if ctx.Err() != nil {
			r.logger.Info("shutting down runner")
			return 0
		}

		job, err := r.queue.PullJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("shutting down runner")
				return 0
			}
			if once {
				r.notifier.PullFailed(err, 0)
				return 1
			}
			delay := backoff.Fail()
			r.notifier.PullFailed(err, delay)
			if r.sleep(ctx, delay) != nil {
				r.logger.Info("shutting down runner")
				return 0
			}
			continue
		}
		backoff.Reset()

		if job == nil {
			if once {
				return 0
			}
			if r.sleep(ctx, r.interval) != nil {
				r.logger.Info("shutting down runner")
				return 0
			}
			continue
		}

		r.handle(ctx, *job)
		if once {
			return 0
		}
	}
}

// handle generates and submits one job. Every job ends with exactly one
// accepted submission unless the queue rejects the failure report too, or
// shutdown interrupted generation; such a job is left for the queue to
// hand out again.
func (r *Runner) handle(ctx context.Context, job model.Job) {
	logger := r.logger.With("job_id", job.ID, "job_type", job.JobType)

	// A finished result is still submitted after shutdown begins; the queue
	// client's own timeout bounds it.
	submitCtx := context.WithoutCancel(ctx)

	if job.InputErr != nil {
		r.fail(submitCtx, job, job.InputErr)
		return
	}
	input := job.Input
	if input == nil {
		input = map[string]any{}
	}

	start := time.Now()
	result, err := r.gen.Generate(ctx, job.JobType, input)
	if err != nil && ctx.Err() != nil {
		logger.Warn("job abandoned on shutdown", "error", err)
		return
	}
	if err == nil {
		err = r.queue.SubmitJob(submitCtx, job.ID, model.Submission{Status: model.StatusDone, Result: result})
		if err == nil {
			logger.Debug("job submitted", "elapsed", time.Since(start).String())
			r.notifier.JobDone(job)
			return
		}
	}

	r.fail(submitCtx, job, err)
}

func (r *Runner) fail(ctx context.Context, job model.Job, err error) {
	r.notifier.JobFailed(job, err)
	if serr := r.queue.SubmitJob(ctx, job.ID, model.Submission{Status: model.StatusFailed, Error: err.Error()}); serr != nil {
		r.notifier.SubmitFailed(job, serr)
	}
}
