package solver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

type cacheKey struct {
	algorithm string
	prefix    string
	target    string
}

func (ck cacheKey) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("algorithm", ck.algorithm),
		slog.Int("prefix", len(ck.prefix)),
		slog.String("target", ck.target))
}

// CachedSolver remembers solutions. Results only depend on algorithm, prefix and
// target, so a repeated challenge is answered without hashing. Exhausted results are
// never cached.
type CachedSolver struct {
	Solver  *Solver
	store   *otter.Cache[cacheKey, Result]
	counter *stats.Counter
}

func NewCachedSolver(s *Solver, maxCacheSize int, expiryTTL time.Duration) (*CachedSolver, error) {
	counter := stats.NewCounter()
	store, err := otter.New(&otter.Options[cacheKey, Result]{
		MaximumSize:      maxCacheSize,
		ExpiryCalculator: otter.ExpiryWriting[cacheKey, Result](expiryTTL),
		StatsRecorder:    counter,
	})
	if err != nil {
		return nil, err
	}

	return &CachedSolver{
		Solver:  s,
		store:   store,
		counter: counter,
	}, nil
}

func (c *CachedSolver) HitRatio() float64 {
	return c.counter.Snapshot().HitRatio()
}

func (c *CachedSolver) Solve(ctx context.Context, prefix string, targetHex string) (*Result, error) {
	target, err := ParseTarget(targetHex)
	if err != nil {
		slog.WarnContext(ctx, "Failed to decode target", "target", targetHex, common.ErrAttr(err))
		return nil, err
	}

	key := cacheKey{
		algorithm: c.Solver.algorithm().Name,
		prefix:    prefix,
		target:    strings.ToLower(targetHex),
	}

	if cached, found := c.store.GetIfPresent(key); found {
		slog.Log(ctx, common.LevelTrace, "Found solution in memory cache", "key", key, "nonce", cached.Nonce)
		result := cached
		result.Elapsed = 0
		return &result, nil
	}

	result, err := c.Solver.SolveTarget(ctx, prefix, target)
	if err != nil {
		return nil, err
	}

	if !result.Exhausted {
		c.store.Set(key, *result)
		slog.Log(ctx, common.LevelTrace, "Saved solution to memory cache", "key", key)
	}

	return result, nil
}
