package common

import (
	"context"
	"log/slog"
	randv2 "math/rand/v2"
	"runtime/debug"
	"time"
)

type PeriodicJob interface {
	Name() string
	Interval() time.Duration
	// NOTE: if no jitter is needed, return 1, not 0
	Jitter() time.Duration
	RunOnce(ctx context.Context) error
}

// safe wrapper (with recover()) over `go f()`
func RunAdHocFunc(ctx context.Context, f func(ctx context.Context) error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "Ad-hoc func crashed", "panic", rvr, "stack", string(debug.Stack()))
		}
	}()

	slog.Log(ctx, LevelTrace, "Running ad-hoc func")

	if err := f(ctx); err != nil {
		slog.ErrorContext(ctx, "Ad-hoc func failed", ErrAttr(err))
	}

	slog.Log(ctx, LevelTrace, "Ad-hoc func finished")
}

// RunPeriodicJob blocks until ctx is cancelled. The job runs one last time on
// cancellation so that the final state (e.g. metrics) is not lost.
func RunPeriodicJob(ctx context.Context, j PeriodicJob) {
	ctx = TraceContext(ctx, j.Name())

	slog.DebugContext(ctx, "Starting periodic job", "interval", j.Interval().String())

	for {
		delay := j.Interval() + time.Duration(randv2.Int64N(int64(max(j.Jitter(), 1))))
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			_ = timer.Stop()
			_ = RunPeriodicJobOnce(context.WithoutCancel(ctx), j)
			slog.DebugContext(ctx, "Periodic job finished")
			return

		case <-timer.C:
			_ = RunPeriodicJobOnce(ctx, j)
		}
	}
}

func RunPeriodicJobOnce(ctx context.Context, j PeriodicJob) (err error) {
	ctx = TraceContext(ctx, j.Name())

	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "Periodic job crashed", "panic", rvr, "stack", string(debug.Stack()))
		}
	}()

	slog.Log(ctx, LevelTrace, "Running periodic job once")

	if err = j.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic job failed", ErrAttr(err))
	}

	return err
}
