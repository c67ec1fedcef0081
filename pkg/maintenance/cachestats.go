package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
)

type HitRatioSource interface {
	HitRatio() float64
}

// CacheStatsJob publishes the solution cache hit ratio
type CacheStatsJob struct {
	Cache   HitRatioSource
	Metrics common.SolverMetrics
	Period  time.Duration
}

var _ common.PeriodicJob = (*CacheStatsJob)(nil)

func (j *CacheStatsJob) Interval() time.Duration {
	if j.Period > 0 {
		return j.Period
	}

	return 15 * time.Second
}

func (j *CacheStatsJob) Jitter() time.Duration {
	return 1
}

func (j *CacheStatsJob) Name() string {
	return "cache_stats_job"
}

func (j *CacheStatsJob) RunOnce(ctx context.Context) error {
	ratio := j.Cache.HitRatio()
	slog.Log(ctx, common.LevelTrace, "Publishing cache stats", "hitRatio", ratio)
	j.Metrics.ObserveCacheHitRatio(ratio)
	return nil
}
