package monitoring

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	prometheus_metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

const (
	MetricsNamespaceSolver = "solver"
	MetricsNamespaceLocal  = "local"
	challengeSubsystem     = "challenge"
	cacheSubsystem         = "cache"
	algorithmLabel         = "algorithm"
	resultLabel            = "result"
	metricsHandlerID       = "metrics"
	liveHandlerID          = "live"
)

type Service struct {
	Registry       *prometheus.Registry
	httpMiddleware middleware.Middleware
	solvedCounter  *prometheus.CounterVec
	hashesCounter  *prometheus.CounterVec
	durationHisto  *prometheus.HistogramVec
	hitRatioGauge  prometheus.Gauge
}

var _ common.SolverMetrics = (*Service)(nil)

func Logged(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := time.Now()
		ctx, _ := common.TraceContextFunc(r.Context(), common.NewTraceID)

		slog.Log(ctx, common.LevelTrace, "Started request", "path", r.URL.Path, "method", r.Method)
		defer func() {
			slog.Log(ctx, common.LevelTrace, "Finished request", "path", r.URL.Path, "method", r.Method,
				"duration", time.Since(t).Milliseconds())
		}()

		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

func NewService() *Service {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	solvedCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespaceSolver,
			Subsystem: challengeSubsystem,
			Name:      "solved_total",
			Help:      "Total number of finished solves by outcome",
		},
		[]string{algorithmLabel, resultLabel},
	)
	reg.MustRegister(solvedCounter)

	hashesCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespaceSolver,
			Subsystem: challengeSubsystem,
			Name:      "hashes_total",
			Help:      "Total number of computed digests",
		},
		[]string{algorithmLabel},
	)
	reg.MustRegister(hashesCounter)

	durationHisto := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespaceSolver,
			Subsystem: challengeSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration of a single solve",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{algorithmLabel},
	)
	reg.MustRegister(durationHisto)

	hitRatioGauge := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespaceSolver,
			Subsystem: cacheSubsystem,
			Name:      "hit_ratio",
			Help:      "In-memory solution cache hit ratio",
		},
	)
	reg.MustRegister(hitRatioGauge)

	recorder := prometheus_metrics.NewRecorder(prometheus_metrics.Config{
		Prefix:          MetricsNamespaceLocal,
		Registry:        reg,
		DurationBuckets: []float64{.005, .01, .05, .1, .5, 1},
	})

	return &Service{
		Registry: reg,
		httpMiddleware: middleware.New(middleware.Config{
			// this is added as Service label
			Service:                MetricsNamespaceLocal,
			GroupedStatus:          true,
			DisableMeasureSize:     true,
			DisableMeasureInflight: true,
			Recorder:               recorder,
		}),
		solvedCounter: solvedCounter,
		hashesCounter: hashesCounter,
		durationHisto: durationHisto,
		hitRatioGauge: hitRatioGauge,
	}
}

func (s *Service) HandlerID(handlerID string) alice.Constructor {
	return func(h http.Handler) http.Handler {
		return std.Handler(handlerID, s.httpMiddleware, h)
	}
}

func (s *Service) ObserveSolved(algorithm string, result string, attempts uint64, elapsed time.Duration) {
	s.solvedCounter.With(prometheus.Labels{
		algorithmLabel: algorithm,
		resultLabel:    result,
	}).Inc()

	if attempts > 0 {
		s.hashesCounter.With(prometheus.Labels{
			algorithmLabel: algorithm,
		}).Add(float64(attempts))
	}

	s.durationHisto.With(prometheus.Labels{
		algorithmLabel: algorithm,
	}).Observe(elapsed.Seconds())
}

func (s *Service) ObserveCacheHitRatio(ratio float64) {
	s.hitRatioGauge.Set(ratio)
}

// Setup exposes metrics and liveness on the local (non-public) router
func (s *Service) Setup(mux *http.ServeMux) {
	chain := alice.New(common.Recovered, Logged)
	mux.Handle(http.MethodGet+" /"+common.MetricsEndpoint, chain.Append(s.HandlerID(metricsHandlerID)).Then(
		promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})))
	mux.Handle(http.MethodGet+" /"+common.LiveEndpoint, chain.Append(s.HandlerID(liveHandlerID), common.Traced).ThenFunc(common.LiveHandler))
}
