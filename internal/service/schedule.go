package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/voyagen/epgvault/internal/logctx"
)

// Schedule runs r once immediately and then on every tick of spec, a
// six-field cron expression with seconds, until ctx is cancelled.
func Schedule(ctx context.Context, spec string, r Runner) error {
	log := logctx.From(ctx).With(slog.String("component", "scheduler"))
	c := cron.New(cron.WithSeconds())

	tick := func(trigger string) {
		tlog := log.With(slog.String("trigger", trigger))
		if _, err := r.Run(logctx.Into(ctx, tlog)); err != nil {
			tlog.Error("scheduled_run_failed", slog.Any("err", err))
		}
	}
	if _, err := c.AddFunc(spec, func() { tick("cron") }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	tick("initial")
	c.Start()
	log.Info("scheduler_started", slog.String("spec", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("scheduler_stopped")
	return nil
}
