package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
	"github.com/PrivateCaptcha/powsolver/pkg/solver"
)

const (
	DefaultInterval = 500 * time.Millisecond
)

// Stats is a snapshot of a running search
type Stats struct {
	Nonce    uint64
	Attempts uint64
	// hashes per second since the search started
	Rate    float64
	Elapsed time.Duration
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("nonce", s.Nonce),
		slog.Uint64("attempts", s.Attempts),
		slog.Int64("rate", int64(s.Rate)),
		slog.String("elapsed", s.Elapsed.String()))
}

// Throttled forwards at most one snapshot per Interval to Sink. A report for
// nonce 0 marks the start of a new search and resets the clock, so a single
// Throttled can be reused for sequential solves but not for concurrent ones.
type Throttled struct {
	Interval time.Duration
	Sink     func(ctx context.Context, stats Stats)
	now      func() time.Time
	lock     sync.Mutex
	start    time.Time
	last     time.Time
}

var _ solver.Reporter = (*Throttled)(nil)

func NewThrottled(interval time.Duration, sink func(ctx context.Context, stats Stats)) *Throttled {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Throttled{
		Interval: interval,
		Sink:     sink,
		now:      time.Now,
	}
}

func (t *Throttled) Report(ctx context.Context, nonce uint64) {
	t.lock.Lock()

	now := t.now()

	if nonce == 0 || t.start.IsZero() {
		t.start = now
		t.last = now
		t.lock.Unlock()
		return
	}

	if now.Sub(t.last) < t.Interval {
		t.lock.Unlock()
		return
	}

	t.last = now
	elapsed := now.Sub(t.start)
	t.lock.Unlock()

	// nonce has already been hashed when it is reported
	stats := Stats{
		Nonce:    nonce,
		Attempts: nonce + 1,
		Elapsed:  elapsed,
	}

	if seconds := elapsed.Seconds(); seconds > 0 {
		stats.Rate = float64(stats.Attempts) / seconds
	}

	if t.Sink != nil {
		t.Sink(ctx, stats)
	}
}

// Log is a Sink that writes progress at the trace level
func Log(ctx context.Context, stats Stats) {
	slog.Log(ctx, common.LevelTrace, "Solving in progress", "progress", stats)
}

// Logger reports every progress boundary without throttling
type Logger struct {
	Level slog.Level
}

var _ solver.Reporter = (*Logger)(nil)

func (l *Logger) Report(ctx context.Context, nonce uint64) {
	slog.Log(ctx, l.Level, "Solving in progress", "nonce", nonce)
}

// Multi fans a report out to every non-nil reporter, in order
type Multi []solver.Reporter

var _ solver.Reporter = (Multi)(nil)

func (m Multi) Report(ctx context.Context, nonce uint64) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, nonce)
		}
	}
}
