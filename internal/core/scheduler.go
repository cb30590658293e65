package core

// scheduler.go repeats runs on a fixed interval for long-lived deployments.
//
// A failed run is logged and the next tick tries again; only cancelling the
// context stops the loop. Runs never overlap: a run that outlasts the
// interval delays the next one instead of stacking up.

import (
	"context"
	"log/slog"
	"time"
)

// WatchFunc observes the outcome of each scheduled run. Exactly one of
// result and err is non-nil.
type WatchFunc func(result *RunResult, err error)

// Watch runs immediately, then every interval until ctx is cancelled.
// It returns ctx.Err().
func (r *Runner) Watch(ctx context.Context, interval time.Duration, observe WatchFunc) error {
	if interval <= 0 {
		interval = time.Hour
	}
	r.logger.Info("watch started", "interval", interval.String(), "profile", r.cfg.Profile.Name)

	r.runScheduled(ctx, observe)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("watch stopped")
			return ctx.Err()
		case <-ticker.C:
			r.runScheduled(ctx, observe)
		}
	}
}

// runScheduled performs one run and reports it; errors never escape.
func (r *Runner) runScheduled(ctx context.Context, observe WatchFunc) {
	result, err := r.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("scheduled run failed",
			"error", err,
			"code", ErrorCode(err),
			slog.Bool("fatal", IsFatal(err)),
		)
	}
	if observe != nil {
		observe(result, err)
	}
}
