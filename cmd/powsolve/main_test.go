package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/PrivateCaptcha/powsolver/pkg/config"
	"github.com/PrivateCaptcha/powsolver/pkg/progress"
	"github.com/PrivateCaptcha/powsolver/pkg/solver"
)

// run() installs the default logger, so these tests are not parallel

var (
	maxTarget  = strings.Repeat("ff", 32)
	zeroTarget = strings.Repeat("00", 32)
)

func newTestApp(env map[string]string, opts options, stdin string) (*app, *bytes.Buffer) {
	stdout := &bytes.Buffer{}

	return &app{
		cfg:    config.NewEnvConfig(func(key string) string { return env[key] }),
		opts:   opts,
		stdin:  strings.NewReader(stdin),
		stdout: stdout,
		stderr: &bytes.Buffer{},
	}, stdout
}

func TestRunSingle(t *testing.T) {
	a, stdout := newTestApp(nil, options{prefix: "abc", target: maxTarget, difficulty: -1}, "")

	if err := a.run(context.TODO(), nil); err != nil {
		t.Fatal(err)
	}

	if stdout.String() != "0\n" {
		t.Errorf("Unexpected output: %q", stdout.String())
	}
}

func TestRunSingleDifficulty(t *testing.T) {
	testCases := []struct {
		env       map[string]string
		algorithm *solver.Algorithm
	}{
		{nil, solver.SHA256},
		{map[string]string{"POW_ALGORITHM": "blake2b-256"}, solver.Blake2b},
		{map[string]string{"POW_ALGORITHM": "blake2b-256"}, solver.SHA3},
	}

	for i, tc := range testCases {
		t.Run(fmt.Sprintf("difficulty_%v", i), func(t *testing.T) {
			opts := options{prefix: "abc", difficulty: 8}
			if tc.algorithm == solver.SHA3 {
				// flag wins over environment
				opts.algorithm = solver.AlgorithmSHA3
			}

			a, stdout := newTestApp(tc.env, opts, "")
			if err := a.run(context.TODO(), nil); err != nil {
				t.Fatal(err)
			}

			target, _ := solver.TargetFromDifficulty(8, 32)
			nonce := strings.TrimSpace(stdout.String())
			if err := solver.VerifyString(tc.algorithm, "abc", target.String(), nonce); err != nil {
				t.Errorf("Nonce %v does not verify with %v: %v", nonce, tc.algorithm, err)
			}
		})
	}
}

func TestRunSingleExhausted(t *testing.T) {
	env := map[string]string{"POW_MAX_NONCE": "10"}
	a, stdout := newTestApp(env, options{prefix: "abc", target: zeroTarget, difficulty: -1}, "")

	err := a.run(context.TODO(), nil)
	if !errors.Is(err, errExhausted) || exitCode(err) != exitExhausted {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stdout.String() != "10\n" {
		t.Errorf("Unexpected output: %q", stdout.String())
	}
}

func TestRunSingleReporters(t *testing.T) {
	a, stdout := newTestApp(nil, options{prefix: "abc", target: zeroTarget, difficulty: -1}, "")
	s := &solver.Solver{Algorithm: solver.SHA256, MaxNonce: 25_000}

	if err := a.runSingle(context.TODO(), s, nil); !errors.Is(err, errExhausted) {
		t.Fatalf("Unexpected error: %v", err)
	}

	reporters, ok := s.Reporter.(progress.Multi)
	if !ok || len(reporters) != 2 {
		t.Fatalf("Unexpected reporter: %T", s.Reporter)
	}

	if _, ok := reporters[0].(*progress.Throttled); !ok {
		t.Errorf("Unexpected first reporter: %T", reporters[0])
	}

	if _, ok := reporters[1].(*progress.Logger); !ok {
		t.Errorf("Unexpected second reporter: %T", reporters[1])
	}

	if stdout.String() != "25000\n" {
		t.Errorf("Unexpected output: %q", stdout.String())
	}
}

func TestRunErrors(t *testing.T) {
	testCases := []struct {
		opts options
		code int
		err  error
	}{
		{options{target: maxTarget, difficulty: -1, algorithm: "md5"}, exitUsage, solver.ErrUnknownAlgorithm},
		{options{difficulty: -1}, exitUsage, errUsage},
		{options{target: maxTarget, difficulty: 8}, exitUsage, errUsage},
		{options{difficulty: 300}, exitUsage, errUsage},
		{options{target: "zz", difficulty: -1}, exitSolver, solver.ErrInvalidTargetEncoding},
		{options{target: "ffff", difficulty: -1}, exitSolver, solver.ErrTargetLengthMismatch},
	}

	for i, tc := range testCases {
		t.Run(fmt.Sprintf("run_error_%v", i), func(t *testing.T) {
			a, _ := newTestApp(nil, tc.opts, "")

			err := a.run(context.TODO(), nil)
			if !errors.Is(err, tc.err) {
				t.Errorf("Actual error (%v) is different from expected (%v)", err, tc.err)
			}

			if code := exitCode(err); code != tc.code {
				t.Errorf("Actual exit code (%v) is different from expected (%v)", code, tc.code)
			}
		})
	}
}

func TestRunBatch(t *testing.T) {
	input := fmt.Sprintf(`{"id":"a","prefix":"abc","target":"%s"}`+"\n"+`{"id":"b","prefix":"abc","target":"zz"}`, maxTarget)
	a, stdout := newTestApp(map[string]string{"POW_WORKERS": "2"}, options{batch: true, difficulty: -1}, input)

	if err := a.run(context.TODO(), nil); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Unexpected output: %q", stdout.String())
	}

	if !strings.Contains(stdout.String(), `"id":"a","nonce":"0"`) {
		t.Errorf("Solution is missing from output: %q", stdout.String())
	}
}

func TestRunWithLocalServer(t *testing.T) {
	env := map[string]string{"POW_LOCAL_ADDRESS": "127.0.0.1:0"}
	a, stdout := newTestApp(env, options{prefix: "abc", target: maxTarget, difficulty: -1}, "")

	if err := a.run(context.TODO(), nil); err != nil {
		t.Fatal(err)
	}

	if stdout.String() != "0\n" {
		t.Errorf("Unexpected output: %q", stdout.String())
	}
}

func TestRunCancelledBySignal(t *testing.T) {
	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGTERM

	// unreachable target without a nonce limit only stops on cancellation
	a, stdout := newTestApp(nil, options{prefix: "abc", target: zeroTarget, difficulty: -1}, "")

	err := a.run(context.TODO(), signals)
	if !errors.Is(err, context.Canceled) || exitCode(err) != exitSolver {
		t.Errorf("Unexpected error: %v", err)
	}

	if stdout.Len() != 0 {
		t.Errorf("Unexpected output: %q", stdout.String())
	}
}

func TestExitCode(t *testing.T) {
	testCases := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{fmt.Errorf("%w: test", errUsage), exitUsage},
		{errExhausted, exitExhausted},
		{solver.ErrInvalidTargetEncoding, exitSolver},
		{context.Canceled, exitSolver},
	}

	for _, tc := range testCases {
		if code := exitCode(tc.err); code != tc.code {
			t.Errorf("Exit code for %v is %v, expected %v", tc.err, code, tc.code)
		}
	}
}
