package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
)

const (
	// progress is reported for every nonce divisible by this value, starting from 0
	ProgressInterval = 10_000
	// a decimal uint64 never takes more than 20 characters
	maxNonceDigits = 20
)

type Result struct {
	Nonce     uint64
	Exhausted bool
	Attempts  uint64
	Elapsed   time.Duration
	Algorithm string
}

// String returns the nonce in base 10, "0" for zero
func (r *Result) String() string {
	return strconv.FormatUint(r.Nonce, 10)
}

func (r *Result) Label() string {
	if r.Exhausted {
		return common.SolveResultExhausted
	}

	return common.SolveResultFound
}

// Solver searches for the smallest nonce such that hash(prefix + decimal(nonce)) <= target.
// The search is sequential and strictly increasing from zero, so the result is
// reproducible for the same prefix, target and algorithm. A Solver holds no state
// between calls and can be shared by goroutines as long as its Reporter can.
type Solver struct {
	Algorithm *Algorithm
	Reporter  Reporter
	// MaxNonce bounds the search, zero means math.MaxUint64
	MaxNonce uint64
}

func NewSolver(algorithm *Algorithm, reporter Reporter) *Solver {
	return &Solver{
		Algorithm: algorithm,
		Reporter:  reporter,
	}
}

func (s *Solver) algorithm() *Algorithm {
	if s.Algorithm == nil {
		return SHA256
	}

	return s.Algorithm
}

func (s *Solver) maxNonce() uint64 {
	if s.MaxNonce == 0 {
		return math.MaxUint64
	}

	return s.MaxNonce
}

// Solve returns ErrInvalidTargetEncoding or ErrTargetLengthMismatch for a bad target and
// ctx.Err() if ctx is cancelled. Running out of nonces is not an error: the result
// then has Exhausted set and carries MaxNonce.
func (s *Solver) Solve(ctx context.Context, prefix string, targetHex string) (*Result, error) {
	target, err := ParseTarget(targetHex)
	if err != nil {
		slog.WarnContext(ctx, "Failed to decode target", "target", targetHex, common.ErrAttr(err))
		return nil, err
	}

	return s.SolveTarget(ctx, prefix, target)
}

func (s *Solver) SolveTarget(ctx context.Context, prefix string, target Target) (*Result, error) {
	alg := s.algorithm()
	hasher := alg.New()

	if size := hasher.Size(); len(target) != size {
		slog.WarnContext(ctx, "Target length mismatch", "algorithm", alg.Name, "target", len(target), "digest", size)
		return nil, fmt.Errorf("%w: %d bytes target for %d bytes %s digest", ErrTargetLengthMismatch, len(target), size, alg.Name)
	}

	maxNonce := s.maxNonce()
	slog.DebugContext(ctx, "Solving challenge", "algorithm", alg.Name, "prefix", len(prefix),
		"difficulty", target.LeadingZeroBits(), "maxNonce", maxNonce)

	candidate := make([]byte, len(prefix), len(prefix)+maxNonceDigits)
	copy(candidate, prefix)
	digest := make([]byte, 0, hasher.Size())
	startTime := time.Now()

	for nonce := uint64(0); ; nonce++ {
		candidate = strconv.AppendUint(candidate[:len(prefix)], nonce, 10)

		hasher.Reset()
		_, _ = hasher.Write(candidate)
		digest = hasher.Sum(digest[:0])

		if nonce%ProgressInterval == 0 {
			if err := ctx.Err(); err != nil {
				slog.DebugContext(ctx, "Solving cancelled", "nonce", nonce, common.ErrAttr(err))
				return nil, err
			}

			if s.Reporter != nil {
				s.Reporter.Report(ctx, nonce)
			}
		}

		if Meets(digest, target) {
			result := &Result{
				Nonce:     nonce,
				Attempts:  attempts(nonce),
				Elapsed:   time.Since(startTime),
				Algorithm: alg.Name,
			}
			slog.DebugContext(ctx, "Found solution", "nonce", nonce, "elapsed", result.Elapsed.String())
			return result, nil
		}

		// checked increment: never wrap around
		if nonce == maxNonce {
			result := &Result{
				Nonce:     maxNonce,
				Exhausted: true,
				Attempts:  attempts(nonce),
				Elapsed:   time.Since(startTime),
				Algorithm: alg.Name,
			}
			slog.WarnContext(ctx, "Reached maximum nonce value without finding solution", "nonce", maxNonce,
				"algorithm", alg.Name, "elapsed", result.Elapsed.String())
			return result, nil
		}
	}
}

func attempts(nonce uint64) uint64 {
	if nonce == math.MaxUint64 {
		return nonce
	}

	return nonce + 1
}
