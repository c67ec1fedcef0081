package common

import (
	"context"
	"time"
)

type ConfigItem interface {
	Key() ConfigKey
	Value() string
}

type ConfigStore interface {
	Get(key ConfigKey) ConfigItem
	Update(ctx context.Context)
}

type SolverMetrics interface {
	ObserveSolved(algorithm string, result string, attempts uint64, elapsed time.Duration)
	ObserveCacheHitRatio(ratio float64)
}
