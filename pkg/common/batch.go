package common

import (
	"context"
	"log/slog"
	"time"
)

// ProcessBatchArray groups items from channel and passes them to processor when
// triggerSize items are pending or after delay without new items. Whatever is
// pending when the channel is closed or ctx is cancelled is processed before
// returning. A batch that keeps failing is dropped once it grows over maxBatchSize.
func ProcessBatchArray[T any](ctx context.Context, channel <-chan T, delay time.Duration, triggerSize, maxBatchSize int, processor func(context.Context, []T) error) {
	var batch []T
	slog.DebugContext(ctx, "Processing batch", "interval", delay.String())

	for running := true; running; {
		if len(batch) > maxBatchSize {
			slog.ErrorContext(ctx, "Dropping pending batch due to errors", "count", len(batch))
			batch = []T{}
		}

		select {
		case <-ctx.Done():
			running = false

		case item, ok := <-channel:
			if !ok {
				running = false
				break
			}

			batch = append(batch, item)

			if len(batch) >= triggerSize {
				slog.Log(ctx, LevelTrace, "Processing batch", "count", len(batch), "reason", "batch")
				if err := processor(ctx, batch); err == nil {
					batch = []T{}
				}
			}
		case <-time.After(delay):
			if len(batch) > 0 {
				slog.Log(ctx, LevelTrace, "Processing batch", "count", len(batch), "reason", "timeout")
				if err := processor(ctx, batch); err == nil {
					batch = []T{}
				}
			}
		}
	}

	if len(batch) > 0 {
		slog.Log(ctx, LevelTrace, "Processing batch", "count", len(batch), "reason", "shutdown")
		if err := processor(context.WithoutCancel(ctx), batch); err != nil {
			slog.ErrorContext(ctx, "Failed to process last batch", "count", len(batch), ErrAttr(err))
		}
	}

	slog.DebugContext(ctx, "Finished processing batch")
}
