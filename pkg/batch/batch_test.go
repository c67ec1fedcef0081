package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
	"github.com/PrivateCaptcha/powsolver/pkg/solver"
)

var (
	maxTarget  = strings.Repeat("ff", 32)
	zeroTarget = strings.Repeat("00", 32)
)

type fakeMetrics struct {
	lock    sync.Mutex
	results map[string]int
}

func (m *fakeMetrics) ObserveSolved(algorithm string, result string, attempts uint64, elapsed time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.results == nil {
		m.results = make(map[string]int)
	}
	m.results[result]++
}

func (m *fakeMetrics) ObserveCacheHitRatio(ratio float64) {}

var _ common.SolverMetrics = (*fakeMetrics)(nil)

func readRecords(t *testing.T, out *bytes.Buffer) map[string]*Record {
	t.Helper()

	records := make(map[string]*Record)
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		record := &Record{}
		if err := json.Unmarshal(scanner.Bytes(), record); err != nil {
			t.Fatalf("Failed to parse output line %q: %v", scanner.Text(), err)
		}
		records[record.ID] = record
	}

	return records
}

func TestRunner(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		fmt.Sprintf(`{"id":"ok","prefix":"abc","target":"%s"}`, maxTarget),
		``,
		`{"id":"broken",`,
		`{"id":"bad-target","prefix":"abc","target":"zz"}`,
		fmt.Sprintf(`{"id":"short","prefix":"abc","target":"%s"}`, strings.Repeat("ff", 16)),
		fmt.Sprintf(`{"prefix":"no-id","target":"%s"}`, maxTarget),
	}, "\n")

	metrics := &fakeMetrics{}
	runner := &Runner{
		Solver:    solver.NewSolver(solver.SHA256, nil),
		Metrics:   metrics,
		Algorithm: solver.AlgorithmSHA256,
		Workers:   2,
	}

	var out bytes.Buffer
	summary, err := runner.Run(context.TODO(), strings.NewReader(input), &out)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Total != 5 || summary.Found != 2 || summary.Failed != 3 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	records := readRecords(t, &out)
	if len(records) != 5 {
		t.Fatalf("Unexpected number of records: %v", len(records))
	}

	if r := records["ok"]; r.Nonce != "0" || len(r.Error) > 0 {
		t.Errorf("Unexpected record: %+v", r)
	}

	// challenge without id is named after its line
	if r, ok := records["6"]; !ok || r.Nonce != "0" {
		t.Errorf("Record without id was not found: %+v", records)
	}

	if r := records["3"]; len(r.Error) == 0 {
		t.Errorf("Malformed line did not produce an error: %+v", r)
	}

	for _, id := range []string{"bad-target", "short"} {
		if r := records[id]; len(r.Error) == 0 || len(r.Nonce) > 0 {
			t.Errorf("Unexpected record for %v: %+v", id, r)
		}
	}

	if metrics.results[common.SolveResultFound] != 2 || metrics.results[common.SolveResultError] != 2 {
		t.Errorf("Unexpected metrics: %v", metrics.results)
	}
}

func TestRunnerWorkersDoNotAffectResults(t *testing.T) {
	t.Parallel()

	target, _ := solver.TargetFromDifficulty(8, 32)

	var lines []string
	for i := 0; i < 16; i++ {
		lines = append(lines, fmt.Sprintf(`{"id":"%d","prefix":"challenge-%d:","target":"%s"}`, i, i, target))
	}
	input := strings.Join(lines, "\n")

	run := func(workers int) map[string]*Record {
		runner := &Runner{
			Solver:  solver.NewSolver(solver.SHA256, nil),
			Workers: workers,
		}

		var out bytes.Buffer
		if _, err := runner.Run(context.TODO(), strings.NewReader(input), &out); err != nil {
			t.Fatal(err)
		}

		return readRecords(t, &out)
	}

	sequential := run(1)
	parallel := run(4)

	if len(sequential) != 16 || len(parallel) != 16 {
		t.Fatalf("Unexpected number of records: %v and %v", len(sequential), len(parallel))
	}

	for id, r := range sequential {
		if parallel[id].Nonce != r.Nonce {
			t.Errorf("Challenge %v: sequential nonce %v, parallel nonce %v", id, r.Nonce, parallel[id].Nonce)
		}

		if err := solver.VerifyString(solver.SHA256, "challenge-"+id+":", target.String(), r.Nonce); err != nil {
			t.Errorf("Challenge %v: nonce %v does not verify: %v", id, r.Nonce, err)
		}
	}
}

func TestRunnerExhausted(t *testing.T) {
	t.Parallel()

	metrics := &fakeMetrics{}
	runner := &Runner{
		Solver:  &solver.Solver{Algorithm: solver.SHA256, MaxNonce: 100},
		Metrics: metrics,
	}

	input := fmt.Sprintf(`{"id":"hard","prefix":"abc","target":"%s"}`, zeroTarget)

	var out bytes.Buffer
	summary, err := runner.Run(context.TODO(), strings.NewReader(input), &out)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Exhausted != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	records := readRecords(t, &out)
	if r := records["hard"]; !r.Exhausted || r.Nonce != "100" {
		t.Errorf("Unexpected record: %+v", r)
	}

	if metrics.results[common.SolveResultExhausted] != 1 {
		t.Errorf("Unexpected metrics: %v", metrics.results)
	}
}

func TestRunnerCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	metrics := &fakeMetrics{}
	runner := &Runner{
		Solver:  solver.NewSolver(solver.SHA256, nil),
		Metrics: metrics,
		Workers: 1,
	}

	input := fmt.Sprintf(`{"id":"a","prefix":"abc","target":"%s"}`+"\n"+`{"id":"b","prefix":"abc","target":"%s"}`, zeroTarget, zeroTarget)

	var out bytes.Buffer
	_, err := runner.Run(ctx, strings.NewReader(input), &out)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Unexpected error: %v", err)
	}

	for id, r := range readRecords(t, &out) {
		if len(r.Nonce) > 0 {
			t.Errorf("Challenge %v was solved after cancellation: %+v", id, r)
		}
	}

	if metrics.results[common.SolveResultFound] != 0 {
		t.Errorf("Unexpected metrics: %v", metrics.results)
	}
}

func TestRunnerCancelledWithOpenInput(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()

	go func() {
		_, _ = fmt.Fprintf(pw, `{"id":"stuck","prefix":"abc","target":"%s"}`+"\n", zeroTarget)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	metrics := &fakeMetrics{}
	runner := &Runner{
		Solver:  solver.NewSolver(solver.SHA256, nil),
		Metrics: metrics,
		Workers: 1,
	}

	type runResult struct {
		summary *Summary
		err     error
	}

	var out bytes.Buffer
	done := make(chan runResult, 1)
	go func() {
		summary, err := runner.Run(ctx, pr, &out)
		done <- runResult{summary, err}
	}()

	select {
	case res := <-done:
		if !errors.Is(res.err, context.Canceled) {
			t.Errorf("Unexpected error: %v", res.err)
		}

		if res.summary.Total != 1 || res.summary.Failed != 1 {
			t.Errorf("Unexpected summary: %+v", res.summary)
		}

		records := readRecords(t, &out)
		if r, ok := records["stuck"]; !ok || len(r.Error) == 0 {
			t.Errorf("Cancelled challenge has no error record: %+v", records)
		}

		if metrics.results[common.SolveResultCancelled] != 1 {
			t.Errorf("Unexpected metrics: %v", metrics.results)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation while input stays open")
	}
}

func TestRunnerCachedSolver(t *testing.T) {
	t.Parallel()

	cached, err := solver.NewCachedSolver(solver.NewSolver(solver.SHA256, nil), 10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	line := fmt.Sprintf(`{"id":"x","prefix":"abc","target":"%s"}`, maxTarget)
	runner := &Runner{Solver: cached, Workers: 1}

	var out bytes.Buffer
	summary, err := runner.Run(context.TODO(), strings.NewReader(line+"\n"+line), &out)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Found != 2 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	if cached.HitRatio() != 0.5 {
		t.Errorf("Unexpected hit ratio: %v", cached.HitRatio())
	}
}
