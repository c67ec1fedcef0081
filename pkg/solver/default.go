package solver

import (
	"context"
	"sync/atomic"
)

var progressCallback atomic.Pointer[ReporterFunc]

// SetProgressCallback registers the process-wide progress callback used by
// SolveChallenge. A nil callback keeps the previous one.
func SetProgressCallback(callback func(nonce float64)) {
	if callback == nil {
		return
	}

	f := ReporterFunc(callback)
	progressCallback.Store(&f)
}

func defaultSolver() *Solver {
	s := &Solver{Algorithm: SHA256}
	if f := progressCallback.Load(); f != nil {
		s.Reporter = *f
	}
	return s
}

// SolveChallenge is the host entry point: SHA-256, no cancellation, the registered
// progress callback. On exhaustion it returns the maximum nonce, which cannot be told
// apart from a solution; use Solver.Solve to get Result.Exhausted.
func SolveChallenge(prefix string, targetHex string) (string, error) {
	result, err := defaultSolver().Solve(context.Background(), prefix, targetHex)
	if err != nil {
		return "", err
	}

	return result.String(), nil
}
