package quizcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/breedquiz/pkg/logger"
)

// ErrViolations reports that the server broke at least one round rule.
var ErrViolations = errors.New("quiz check found violations")

// Run checks the service health, plays cfg.Sessions sessions concurrently,
// verifies every round and prints a summary to cfg.Out.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg = withDefaults(cfg)
	log := logger.NamedOrNop("quizcheck")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting quiz check",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	runSessions(ctx, cfg, client, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(cfg.Out, stats)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if len(stats.Violations) > 0 {
		return stats, fmt.Errorf("%w: %d", ErrViolations, len(stats.Violations))
	}
	log.Info(ctx, "quiz check passed")
	return stats, nil
}

func withDefaults(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Sessions <= 0 {
		cfg.Sessions = DefaultSessions
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = DefaultRounds
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU() * WorkerChannelMultiplier
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RoundWait <= 0 {
		cfg.RoundWait = DefaultRoundWait
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	return cfg
}

func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	code, err := client.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", code)
	}
	return nil
}

// runSessions fans sessions out to a fixed worker pool.
func runSessions(ctx context.Context, cfg Config, client *HTTPClient, stats *Stats) {
	var (
		created, createFailed      int64
		ready, failed, stuck, sent int64

		mu         sync.Mutex
		violations []string
	)

	jobs := make(chan int, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				if ctx.Err() != nil {
					continue
				}
				rep := checkSession(ctx, cfg, client)
				if !rep.created {
					atomic.AddInt64(&createFailed, 1)
				} else {
					atomic.AddInt64(&created, 1)
				}
				atomic.AddInt64(&ready, int64(rep.ready))
				atomic.AddInt64(&failed, int64(rep.failed))
				atomic.AddInt64(&stuck, int64(rep.stuck))
				atomic.AddInt64(&sent, int64(rep.guesses))
				if len(rep.violations) > 0 {
					mu.Lock()
					violations = append(violations, rep.violations...)
					mu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for n := 0; n < cfg.Sessions; n++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- n:
			}
		}
	}()
	wg.Wait()

	stats.SessionsCreated = int(created)
	stats.SessionsFailed = int(createFailed)
	stats.RoundsReady = int(ready)
	stats.RoundsFailed = int(failed)
	stats.RoundsStuck = int(stuck)
	stats.GuessesSent = int(sent)
	stats.Violations = violations
}

func displayFinalStats(w io.Writer, stats *Stats) {
	var readyRate float64
	if total := stats.RoundsReady + stats.RoundsFailed + stats.RoundsStuck; total > 0 {
		readyRate = float64(stats.RoundsReady) / float64(total) * PercentageMultiplier
	}

	logger.NamedOrNop("quizcheck").Info(context.Background(), "final statistics",
		logger.Int("sessionsCreated", stats.SessionsCreated),
		logger.Int("sessionsFailed", stats.SessionsFailed),
		logger.Int("roundsReady", stats.RoundsReady),
		logger.Int("roundsFailed", stats.RoundsFailed),
		logger.Int("roundsStuck", stats.RoundsStuck),
		logger.Int("guessesSent", stats.GuessesSent),
		logger.Int("violations", len(stats.Violations)),
		logger.Duration("duration", stats.Duration),
	)

	_, _ = fmt.Fprintf(w, "sessions: %d created, %d failed\n", stats.SessionsCreated, stats.SessionsFailed)
	_, _ = fmt.Fprintf(w, "rounds:   %d ready, %d failed, %d stuck (%.1f%% ready)\n",
		stats.RoundsReady, stats.RoundsFailed, stats.RoundsStuck, readyRate)
	_, _ = fmt.Fprintf(w, "guesses:  %d\n", stats.GuessesSent)
	_, _ = fmt.Fprintf(w, "duration: %s\n", stats.Duration.Round(time.Millisecond))
	for _, v := range stats.Violations {
		_, _ = fmt.Fprintf(w, "violation: %s\n", v)
	}
}
