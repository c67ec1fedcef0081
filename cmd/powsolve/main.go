package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/batch"
	"github.com/PrivateCaptcha/powsolver/pkg/common"
	"github.com/PrivateCaptcha/powsolver/pkg/config"
	"github.com/PrivateCaptcha/powsolver/pkg/maintenance"
	"github.com/PrivateCaptcha/powsolver/pkg/monitoring"
	"github.com/PrivateCaptcha/powsolver/pkg/progress"
	"github.com/PrivateCaptcha/powsolver/pkg/solver"
)

const (
	_defaultCacheSize    = 1_000
	_defaultCacheTTL     = 1 * time.Hour
	_listenAttempts      = 5
	_listenMinBackoff    = 250 * time.Millisecond
	_listenMaxBackoff    = 2 * time.Second
	_localServerShutdown = 3 * time.Second
)

const (
	exitUsage     = 1
	exitSolver    = 2
	exitExhausted = 3
)

var (
	errUsage     = errors.New("invalid usage")
	errExhausted = errors.New("reached maximum nonce value without finding solution")
)

var (
	GitCommit      string
	prefixFlag     = flag.String("prefix", "", "Challenge prefix")
	targetFlag     = flag.String("target", "", "Challenge target (hex)")
	difficultyFlag = flag.Int("difficulty", -1, "Build target from the number of leading zero bits instead of -target")
	algorithmFlag  = flag.String("algorithm", "", "Digest algorithm (overrides POW_ALGORITHM)")
	batchFlag      = flag.Bool("batch", false, "Read JSON lines challenges from stdin")
	envFileFlag    = flag.String("env", "", "Path to .env file, 'stdin' or empty")
	versionFlag    = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	prefix     string
	target     string
	difficulty int
	algorithm  string
	batch      bool
}

type metricsService interface {
	common.SolverMetrics
	Setup(mux *http.ServeMux)
}

type app struct {
	cfg    common.ConfigStore
	env    *common.EnvMap
	opts   options
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, errExhausted):
		return exitExhausted
	default:
		return exitSolver
	}
}

func (a *app) algorithm() (*solver.Algorithm, error) {
	var item common.ConfigItem = &config.StaticItem{ConfigKey: common.AlgorithmKey, ConfigValue: a.opts.algorithm}
	if len(a.opts.algorithm) == 0 {
		item = a.cfg.Get(common.AlgorithmKey)
	}

	alg, err := solver.LookupAlgorithm(item.Value())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	return alg, nil
}

func (a *app) target(alg *solver.Algorithm) (string, error) {
	if a.opts.difficulty >= 0 {
		if len(a.opts.target) > 0 {
			return "", fmt.Errorf("%w: -target and -difficulty are mutually exclusive", errUsage)
		}

		t, err := solver.TargetFromDifficulty(a.opts.difficulty, alg.Size())
		if err != nil {
			return "", fmt.Errorf("%w: %w", errUsage, err)
		}

		return t.String(), nil
	}

	if len(a.opts.target) == 0 {
		return "", fmt.Errorf("%w: -target is required", errUsage)
	}

	return a.opts.target, nil
}

func listen(ctx context.Context, address string) (net.Listener, error) {
	var listener net.Listener

	err := common.RetryWithBackoff(ctx, _listenMinBackoff, _listenMaxBackoff, _listenAttempts, func(ctx context.Context) error {
		l, err := net.Listen("tcp", address)
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				return common.NewRetriableError(err)
			}
			return err
		}
		listener = l
		return nil
	})

	return listener, err
}

func (a *app) serveLocal(ctx context.Context, metrics metricsService) (*http.Server, error) {
	localAddress := a.cfg.Get(common.LocalAddressKey).Value()
	if len(localAddress) == 0 {
		slog.DebugContext(ctx, "Skipping serving local API")
		return nil, nil
	}

	if !common.IsLocalAddress(localAddress) {
		slog.WarnContext(ctx, "Local API is not bound to loopback", "address", localAddress)
	}

	listener, err := listen(ctx, localAddress)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to listen", "address", localAddress, common.ErrAttr(err))
		return nil, err
	}

	localRouter := http.NewServeMux()
	metrics.Setup(localRouter)

	localServer := &http.Server{
		Handler:           localRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go common.RunAdHocFunc(common.TraceContext(context.Background(), "local_server"), func(ctx context.Context) error {
		slog.InfoContext(ctx, "Serving local API", "address", listener.Addr().String())
		if err := localServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	return localServer, nil
}

func (a *app) handleSignals(ctx context.Context, signals <-chan os.Signal, cancel context.CancelFunc, logLevel *slog.LevelVar) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				slog.DebugContext(ctx, "Signals channel closed")
				return
			}
			slog.DebugContext(ctx, "Received signal", "signal", sig)
			switch sig {
			case syscall.SIGHUP:
				if a.env != nil {
					if uerr := a.env.Update(); uerr != nil {
						slog.ErrorContext(ctx, "Failed to update environment", common.ErrAttr(uerr))
					}
				}
				a.cfg.Update(ctx)
				common.SetLogLevel(logLevel, a.cfg.Get(common.StageKey).Value(), config.AsBool(a.cfg.Get(common.VerboseKey)))
			case syscall.SIGINT, syscall.SIGTERM:
				cancel()
				return
			}
		}
	}
}

func (a *app) run(ctx context.Context, signals <-chan os.Signal) error {
	stage := a.cfg.Get(common.StageKey).Value()
	verbose := config.AsBool(a.cfg.Get(common.VerboseKey))
	logLevel := common.SetupLogs(a.stderr, stage, verbose)

	alg, err := a.algorithm()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if signals != nil {
		go a.handleSignals(common.TraceContext(ctx, "signal_handler"), signals, cancel, logLevel)
	}

	var metrics metricsService = monitoring.NewStub()
	if len(a.cfg.Get(common.LocalAddressKey).Value()) > 0 {
		metrics = monitoring.NewService()
	}

	localServer, err := a.serveLocal(ctx, metrics)
	if err != nil {
		return err
	}
	if localServer != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), _localServerShutdown)
			defer cancel()
			if serr := localServer.Shutdown(shutdownCtx); serr != nil {
				slog.ErrorContext(ctx, "Failed to shutdown local API", common.ErrAttr(serr))
			}
		}()
	}

	s := &solver.Solver{
		Algorithm: alg,
		MaxNonce:  config.AsUint64(a.cfg.Get(common.MaxNonceKey), 0),
	}

	slog.DebugContext(ctx, "Starting", "version", GitCommit, "stage", stage, "algorithm", alg.Name, "batch", a.opts.batch)

	if a.opts.batch {
		return a.runBatch(ctx, s, metrics)
	}

	return a.runSingle(ctx, s, metrics)
}

func (a *app) runSingle(ctx context.Context, s *solver.Solver, metrics common.SolverMetrics) error {
	targetHex, err := a.target(s.Algorithm)
	if err != nil {
		return err
	}

	ctx = common.TraceContext(ctx, common.NewTraceID())
	interval := config.AsDuration(a.cfg.Get(common.ProgressIntervalKey), progress.DefaultInterval)
	s.Reporter = progress.Multi{
		progress.NewThrottled(interval, progress.Log),
		&progress.Logger{Level: common.LevelTrace},
	}

	t := time.Now()
	result, err := s.Solve(ctx, a.opts.prefix, targetHex)
	batch.Observe(metrics, s.Algorithm.Name, result, err, time.Since(t))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to solve challenge", common.ErrAttr(err))
		return err
	}

	fmt.Fprintln(a.stdout, result.String())

	if result.Exhausted {
		return errExhausted
	}

	slog.InfoContext(ctx, "Solved challenge", "nonce", result.Nonce, "attempts", result.Attempts,
		"elapsed", result.Elapsed.String())

	return nil
}

func (a *app) runBatch(ctx context.Context, s *solver.Solver, metrics common.SolverMetrics) error {
	s.Reporter = &progress.Logger{Level: common.LevelTrace}

	cached, err := solver.NewCachedSolver(s,
		config.AsInt(a.cfg.Get(common.CacheSizeKey), _defaultCacheSize),
		config.AsDuration(a.cfg.Get(common.CacheTTLKey), _defaultCacheTTL))
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	jobs := maintenance.NewJobs()
	jobs.Add(&maintenance.CacheStatsJob{Cache: cached, Metrics: metrics})
	jobs.Run(ctx)
	defer jobs.Shutdown()

	runner := &batch.Runner{
		Solver:    cached,
		Metrics:   metrics,
		Algorithm: s.Algorithm.Name,
		Workers:   config.AsInt(a.cfg.Get(common.WorkersKey), runtime.NumCPU()),
	}

	summary, err := runner.Run(ctx, a.stdin, a.stdout)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Processed challenges", "summary", summary)

	return nil
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Print(GitCommit)
		return
	}

	if *batchFlag && (*envFileFlag == common.EnvPathStdin) {
		fmt.Fprintf(os.Stderr, "%s: -batch and -env=stdin both read stdin\n", errUsage)
		os.Exit(exitUsage)
	}

	env, err := common.NewEnvMap(*envFileFlag, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(exitUsage)
	}

	a := &app{
		cfg: config.NewEnvConfig(env.Get),
		env: env,
		opts: options{
			prefix:     *prefixFlag,
			target:     *targetFlag,
			difficulty: *difficultyFlag,
			algorithm:  *algorithmFlag,
			batch:      *batchFlag,
		},
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	ctx := common.TraceContext(context.Background(), "main")
	if err := a.run(ctx, signals); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		signal.Stop(signals)
		os.Exit(exitCode(err))
	}
}
