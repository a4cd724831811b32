package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voyagen/epgvault/internal/cache"
	"github.com/voyagen/epgvault/internal/logctx"
)

// JobSource yields queued refresh requests. Pop returns (nil, nil) on timeout.
type JobSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.RefreshJob, error)
}

// Runner is satisfied by *Pipeline.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Worker runs the pipeline once per dequeued refresh job.
type Worker struct {
	jobs    JobSource
	runner  Runner
	poll    time.Duration
	backoff time.Duration
}

// NewWorker returns a Worker polling jobs every five seconds.
func NewWorker(jobs JobSource, runner Runner) *Worker {
	return &Worker{jobs: jobs, runner: runner, poll: 5 * time.Second, backoff: 2 * time.Second}
}

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log := logctx.From(ctx).With(slog.String("component", "worker"))
	log.Info("worker_started")
	for {
		select {
		case <-ctx.Done():
			log.Info("worker_stopping")
			return
		default:
		}

		job, err := w.jobs.Pop(ctx, w.poll)
		if err != nil {
			log.Error("dequeue_failed", slog.Any("err", err))
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		jlog := log.With(slog.String("job_id", job.ID), slog.String("reason", job.Reason))
		jlog.Info("job_start", slog.Time("requested_at", job.RequestedAt))
		_, err = w.runner.Run(logctx.Into(ctx, jlog))
		switch {
		case err == nil:
			jlog.Info("job_done")
		case errors.Is(err, ErrRunInProgress):
			jlog.Warn("job_skipped", slog.Any("err", err))
		default:
			jlog.Error("job_failed", slog.Any("err", err))
		}
	}
}
