package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"

	"github.com/okian/breedquiz/internal/adapters/dogapi"
	"github.com/okian/breedquiz/internal/adapters/http/api"
	"github.com/okian/breedquiz/internal/adapters/http/site"
	"github.com/okian/breedquiz/internal/adapters/http/swagger"
	"github.com/okian/breedquiz/internal/adapters/tui"
	service "github.com/okian/breedquiz/internal/app"
	"github.com/okian/breedquiz/internal/config"
	"github.com/okian/breedquiz/internal/domain/breeds"
	"github.com/okian/breedquiz/internal/domain/picker"
	"github.com/okian/breedquiz/internal/domain/round"
	"github.com/okian/breedquiz/internal/quizcheck"
	"github.com/okian/breedquiz/pkg/logger"
	"github.com/okian/breedquiz/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// Exit codes.
const (
	exitSuccess = 0
	exitRuntime = 1
	exitSetup   = 2
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the command-line interface.
type CLI struct {
	Version kong.VersionFlag `help:"Show version." short:"V"`
	Serve   ServeCmd         `cmd:"" help:"Serve the quiz over HTTP."`
	Play    PlayCmd          `cmd:"" help:"Play the quiz in this terminal."`
	Check   CheckCmd         `cmd:"" help:"Play many sessions against a running server and verify every round."`
}

// ServeCmd runs the HTTP API.
type ServeCmd struct {
	Addr string `help:"Listen address; overrides the configured addr." placeholder:":9080"`
}

// PlayCmd runs the terminal client.
type PlayCmd struct {
	Plain   bool   `help:"Force plain line mode even if stdout is a TTY." default:"false"`
	Seed    int64  `help:"Seed for option picking; overrides the configured random_seed."`
	LogFile string `help:"Append logs to this file. Logs are discarded otherwise." type:"path"`
}

// CheckCmd drives a running server end to end.
type CheckCmd struct {
	URL      string        `name:"url" help:"Base URL of the quiz server." default:"http://localhost:9080"`
	Sessions int           `help:"Number of sessions to play." default:"20"`
	Rounds   int           `help:"Rounds per session." default:"3"`
	Workers  int           `help:"Concurrent workers (default: CPU cores * 2)."`
	Timeout  time.Duration `help:"HTTP request timeout." default:"30s"`
	Verbose  bool          `help:"Log progress to stderr." short:"v"`
}

// Run loads configuration, starts the quiz service and serves until SIGINT
// or SIGTERM.
func (c *ServeCmd) Run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}

	if err := logger.InitWith(logger.Options{Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("serve: initialize logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()
	applyLogLevel(ctx, log, cfg.LogLevel)

	svc := newService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("serve: start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc, cfg, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// Run plays rounds against the dog API until the player quits.
func (p *PlayCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("play: %w", err)
	}
	if p.Seed != 0 {
		cfg.RandomSeed = p.Seed
	}

	// The full-screen UI owns stdout, so logs only go to a file.
	if p.LogFile != "" {
		f, err := os.OpenFile(p.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("play: open log file: %w", err)
		}
		defer f.Close()
		if err := logger.InitWith(logger.Options{Writer: f, Format: cfg.LogFormat}); err != nil {
			return fmt.Errorf("play: initialize logging: %w", err)
		}
		applyLogLevel(ctx, logger.Get(), cfg.LogLevel)
	}

	game := newGame(cfg, logger.NamedOrNop("play"))
	defer game.Close()

	return tui.Play(ctx, game, tui.Options{
		ForcePlain:    p.Plain,
		FeedbackDelay: cfg.FeedbackDelay(),
	})
}

// Run plays the configured sessions and prints a summary.
func (c *CheckCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Verbose {
		if err := logger.InitWith(logger.Options{Writer: os.Stderr}); err != nil {
			return fmt.Errorf("check: initialize logging: %w", err)
		}
		_ = logger.SetLevelString("debug")
	}

	_, err := quizcheck.Run(ctx, quizcheck.Config{
		BaseURL:  c.URL,
		Sessions: c.Sessions,
		Rounds:   c.Rounds,
		Workers:  c.Workers,
		Timeout:  c.Timeout,
		Out:      os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	return nil
}

// applyLogLevel applies the configured level, falling back to info.
func applyLogLevel(ctx context.Context, log logger.Logger, level string) {
	if err := logger.SetLevelString(level); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
}

func newDogClient(cfg *config.Config, log logger.Logger) *dogapi.Client {
	return dogapi.New(
		dogapi.WithBaseURL(cfg.DogAPIBaseURL),
		dogapi.WithTimeout(cfg.RequestTimeout()),
		dogapi.WithLogger(log.Named("dogapi")),
	)
}

func newService(cfg *config.Config, log logger.Logger) *service.Service {
	client := newDogClient(cfg, log)
	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithCatalogFetcher(client),
		service.WithImageFetcher(client),
		service.WithMaxSessions(cfg.MaxSessions),
		service.WithSessionTTL(cfg.SessionIdleTTL()),
		service.WithSweepInterval(cfg.SweepInterval()),
		service.WithRoundTimeout(cfg.RoundTimeout()),
		service.WithSeed(cfg.RandomSeed),
		service.WithStallOnEmptyCatalog(cfg.StallOnEmptyCatalog),
	)
}

// newRouter registers the API first; chi rejects middleware added after
// the first route.
func newRouter(ctx context.Context, svc *service.Service, cfg *config.Config, log logger.Logger) chi.Router {
	r := chi.NewRouter()
	api.NewServer(svc, svc,
		api.WithLogger(log.Named("api")),
		api.WithRequestTimeout(cfg.RequestTimeout()+cfg.RoundTimeout()),
	).Register(r)
	swagger.Register(ctx, r)
	site.Register(ctx, r)
	return r
}

func newGame(cfg *config.Config, log logger.Logger) *round.Controller {
	client := newDogClient(cfg, log)
	cache := breeds.New(client, breeds.WithLogger(log.Named("breeds")))

	var popts []picker.Option
	if cfg.RandomSeed != 0 {
		popts = append(popts, picker.WithSeed(cfg.RandomSeed))
	}
	return round.New(cache, picker.New(popts...), client,
		round.WithLogger(log.Named("round")),
		round.WithRoundTimeout(cfg.RoundTimeout()),
		round.WithStallOnEmptyCatalog(cfg.StallOnEmptyCatalog),
	)
}

// startSystemMetricsUpdater publishes runtime metrics every refresh interval.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater publishes service gauges every refresh interval.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if sessions, ok := stats["sessions"].(int); ok {
		metrics.UpdateSessionsActive(sessions)
	}
	if size, ok := stats["catalogSize"].(int); ok {
		metrics.UpdateCatalogSize(size)
	}
}

// exitCode maps command errors to process exit codes.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, config.ErrInvalidConfig) || errors.Is(err, config.ErrLoadConfig) {
		return exitSetup
	}
	return exitRuntime
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("breedquiz"),
		kong.Description("Guess the dog breed from a photo."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
