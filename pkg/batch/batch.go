package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
	"github.com/PrivateCaptcha/powsolver/pkg/solver"
	"golang.org/x/sync/errgroup"
)

const (
	maxLineSize          = 1024 * 1024
	defaultFlushInterval = 200 * time.Millisecond
	flushBatchSize       = 32
	maxPendingRecords    = 10_000
)

type ChallengeSolver interface {
	Solve(ctx context.Context, prefix string, targetHex string) (*solver.Result, error)
}

var _ ChallengeSolver = (*solver.Solver)(nil)
var _ ChallengeSolver = (*solver.CachedSolver)(nil)

// Challenge is one line of input
type Challenge struct {
	ID     string `json:"id"`
	Prefix string `json:"prefix"`
	Target string `json:"target"`
}

// Record is one line of output, written in completion order
type Record struct {
	ID        string `json:"id"`
	Nonce     string `json:"nonce,omitempty"`
	Exhausted bool   `json:"exhausted,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

type Summary struct {
	Total     int64
	Found     int64
	Exhausted int64
	Failed    int64
}

func (s *Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("total", s.Total),
		slog.Int64("found", s.Found),
		slog.Int64("exhausted", s.Exhausted),
		slog.Int64("failed", s.Failed))
}

// Runner solves independent challenges concurrently. Every challenge is still
// searched sequentially by a single worker, so results do not depend on Workers.
type Runner struct {
	Solver        ChallengeSolver
	Metrics       common.SolverMetrics
	Algorithm     string
	Workers       int
	FlushInterval time.Duration
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}

	return runtime.NumCPU()
}

func (r *Runner) flushInterval() time.Duration {
	if r.FlushInterval > 0 {
		return r.FlushInterval
	}

	return defaultFlushInterval
}

// Run reads challenges as JSON lines from in and writes a Record per challenge to out.
// A malformed or unsolvable challenge produces an error record and does not stop the batch.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (*Summary, error) {
	summary := &Summary{}
	records := make(chan *Record, 2*r.workers())
	writer := bufio.NewWriter(out)

	var writeErr error
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// records are drained after cancellation too
		common.ProcessBatchArray(context.WithoutCancel(ctx), records, r.flushInterval(), flushBatchSize, maxPendingRecords, func(bctx context.Context, batch []*Record) error {
			for _, record := range batch {
				if err := common.WriteJSONLine(bctx, writer, record); err != nil {
					writeErr = err
					return err
				}
			}
			if err := writer.Flush(); err != nil {
				writeErr = err
				return err
			}
			return nil
		})
	}()

	slog.DebugContext(ctx, "Starting batch", "workers", r.workers(), "algorithm", r.Algorithm)

	errs, gctx := errgroup.WithContext(ctx)
	errs.SetLimit(r.workers())

	lines := make(chan string)
	readErr := make(chan error, 1)
	go readLines(ctx, in, lines, readErr)

	lineNo := 0
	for running := true; running; {
		var line string
		var ok bool

		select {
		case <-ctx.Done():
			slog.WarnContext(ctx, "Batch cancelled, skipping remaining challenges", "line", lineNo)
			running = false
			continue
		case line, ok = <-lines:
			if !ok {
				running = false
				continue
			}
		}

		lineNo++

		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		atomic.AddInt64(&summary.Total, 1)

		challenge, err := parseChallenge(line, lineNo)
		if err != nil {
			slog.WarnContext(ctx, "Failed to parse challenge", "line", lineNo, common.ErrAttr(err))
			atomic.AddInt64(&summary.Failed, 1)
			records <- &Record{ID: challenge.ID, Error: err.Error()}
			continue
		}

		errs.Go(func() error {
			records <- r.solve(gctx, challenge, summary)
			return nil
		})
	}

	var scanErr error
	if ctx.Err() == nil {
		if scanErr = <-readErr; scanErr != nil {
			slog.ErrorContext(ctx, "Failed to read challenges", "line", lineNo, common.ErrAttr(scanErr))
		}
	}

	_ = errs.Wait()
	close(records)
	<-writerDone

	slog.InfoContext(ctx, "Finished batch", "summary", summary)

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	return summary, errors.Join(scanErr, writeErr)
}

// readLines stops when in is exhausted or ctx is cancelled. A read that blocks
// forever (an open terminal or pipe) leaves this goroutine parked until exit.
func readLines(ctx context.Context, in io.Reader, lines chan<- string, readErr chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}

	readErr <- scanner.Err()
}

func parseChallenge(line string, lineNo int) (*Challenge, error) {
	challenge := &Challenge{}
	if err := json.Unmarshal([]byte(line), challenge); err != nil {
		return &Challenge{ID: strconv.Itoa(lineNo)}, fmt.Errorf("line %d: %w", lineNo, err)
	}

	if len(challenge.ID) == 0 {
		challenge.ID = strconv.Itoa(lineNo)
	}

	return challenge, nil
}

func (r *Runner) solve(ctx context.Context, challenge *Challenge, summary *Summary) *Record {
	ctx = common.ChallengeContext(common.TraceContext(ctx, common.NewTraceID()), challenge.ID)

	t := time.Now()
	result, err := r.Solver.Solve(ctx, challenge.Prefix, challenge.Target)
	elapsed := time.Since(t)

	Observe(r.Metrics, r.Algorithm, result, err, elapsed)

	record := &Record{
		ID:        challenge.ID,
		ElapsedMs: elapsed.Milliseconds(),
	}

	if err != nil {
		atomic.AddInt64(&summary.Failed, 1)
		record.Error = err.Error()
		return record
	}

	if result.Exhausted {
		atomic.AddInt64(&summary.Exhausted, 1)
	} else {
		atomic.AddInt64(&summary.Found, 1)
	}

	record.Nonce = result.String()
	record.Exhausted = result.Exhausted

	slog.Log(ctx, common.LevelTrace, "Solved challenge", "nonce", record.Nonce, "exhausted", record.Exhausted,
		"elapsed", elapsed.String())

	return record
}

// Observe records the outcome of a single solve
func Observe(metrics common.SolverMetrics, algorithm string, result *solver.Result, err error, elapsed time.Duration) {
	if metrics == nil {
		return
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.ObserveSolved(algorithm, common.SolveResultCancelled, 0, elapsed)
	case err != nil:
		metrics.ObserveSolved(algorithm, common.SolveResultError, 0, elapsed)
	default:
		metrics.ObserveSolved(algorithm, result.Label(), result.Attempts, elapsed)
	}
}
