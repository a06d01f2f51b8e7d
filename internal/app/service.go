// Package service wires the quiz domain into sessions that the HTTP API and
// the terminal client drive.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/breedquiz/internal/adapters/dogapi"
	"github.com/okian/breedquiz/internal/adapters/repository"
	"github.com/okian/breedquiz/internal/domain/breeds"
	"github.com/okian/breedquiz/internal/domain/model"
	"github.com/okian/breedquiz/internal/domain/picker"
	"github.com/okian/breedquiz/internal/domain/round"
	"github.com/okian/breedquiz/pkg/logger"
)

// Session is the public view of one quiz session.
type Session struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	State     model.RoundState `json:"state"`
}

// GuessResult is the outcome of a guess against the current round.
type GuessResult struct {
	Correct bool   `json:"correct"`
	Round   uint64 `json:"round"`
}

// Service owns the shared breed cache and picker and one round controller
// per session.
type Service struct {
	mu sync.RWMutex

	// Upstream
	catalog breeds.CatalogFetcher
	images  round.ImageFetcher

	// Core components
	store  repository.Store
	cache  *breeds.Cache
	picker *picker.Picker

	// Configuration
	maxSessions   int
	sessionTTL    time.Duration
	sweepInterval time.Duration
	roundTimeout  time.Duration
	seed          int64
	stallOnEmpty  bool

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		maxSessions:   1000,
		sessionTTL:    30 * time.Minute,
		sweepInterval: time.Minute,
		roundTimeout:  15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the shared components and starts the idle-session sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.NamedOrNop("service")
	}

	s.logger.Info(ctx, "starting quiz service...")

	if s.catalog == nil || s.images == nil {
		client := dogapi.New(dogapi.WithLogger(s.logger.Named("dogapi")))
		if s.catalog == nil {
			s.catalog = client
		}
		if s.images == nil {
			s.images = client
		}
		s.logger.Info(ctx, "using dog api", logger.String("baseURL", client.BaseURL()))
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithMaxSessions(s.maxSessions))
	}
	if s.cache == nil {
		s.cache = breeds.New(s.catalog, breeds.WithLogger(s.logger.Named("breeds")))
	}
	if s.picker == nil {
		var popts []picker.Option
		if s.seed != 0 {
			popts = append(popts, picker.WithSeed(s.seed))
		}
		s.picker = picker.New(popts...)
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.sweepLoop(s.stopCh)

	s.started = true
	s.logger.Info(ctx, "quiz service started",
		logger.Int("maxSessions", s.maxSessions),
		logger.Duration("sessionTTL", s.sessionTTL),
		logger.Duration("roundTimeout", s.roundTimeout),
	)
	return nil
}

// Stop ends the sweeper and closes every session.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping quiz service...")
	s.wg.Wait()

	closed := 0
	for _, e := range s.store.List(ctx) {
		if _, err := s.store.Delete(ctx, e.ID); err == nil {
			e.Controller.Close()
			closed++
		}
	}
	s.logger.Info(ctx, "quiz service stopped", logger.Int("sessionsClosed", closed))
}

func (s *Service) sweepLoop(stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep closes sessions idle for longer than the session TTL and returns
// how many were removed.
func (s *Service) Sweep(ctx context.Context) int {
	store, err := s.running()
	if err != nil {
		return 0
	}
	expired := store.Sweep(ctx, time.Now().Add(-s.sessionTTL))
	for _, e := range expired {
		e.Controller.Close()
	}
	if len(expired) > 0 {
		s.logger.Info(ctx, "swept idle sessions", logger.Int("count", len(expired)))
	}
	return len(expired)
}

func (s *Service) running() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func (s *Service) controller(ctx context.Context, id string) (repository.Entry, error) {
	store, err := s.running()
	if err != nil {
		return repository.Entry{}, err
	}
	return store.Get(ctx, id)
}

// CreateSession registers a new session and starts its first round.
func (s *Service) CreateSession(ctx context.Context) (Session, error) {
	store, err := s.running()
	if err != nil {
		return Session{}, err
	}

	ctrl := round.New(s.cache, s.picker, s.images,
		round.WithLogger(s.logger.Named("round")),
		round.WithRoundTimeout(s.roundTimeout),
		round.WithStallOnEmptyCatalog(s.stallOnEmpty),
	)
	e, err := store.Create(ctx, ctrl)
	if err != nil {
		ctrl.Close()
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	ctrl.NextRound()

	s.logger.Debug(ctx, "session created", logger.String("session", e.ID))
	return Session{ID: e.ID, CreatedAt: e.CreatedAt, State: ctrl.State()}, nil
}

// Session returns the session and its current round state.
func (s *Service) Session(ctx context.Context, id string) (Session, error) {
	e, err := s.controller(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: e.ID, CreatedAt: e.CreatedAt, State: e.Controller.State()}, nil
}

// State returns the session's current round state.
func (s *Service) State(ctx context.Context, id string) (model.RoundState, error) {
	e, err := s.controller(ctx, id)
	if err != nil {
		return model.RoundState{}, err
	}
	return e.Controller.State(), nil
}

// NextRound supersedes the session's round and returns the loading state.
func (s *Service) NextRound(ctx context.Context, id string) (model.RoundState, error) {
	e, err := s.controller(ctx, id)
	if err != nil {
		return model.RoundState{}, err
	}
	e.Controller.NextRound()
	return e.Controller.State(), nil
}

// Guess checks guess against the session's current round. It returns
// ErrRoundNotReady while the round is loading or has failed.
func (s *Service) Guess(ctx context.Context, id, guess string) (GuessResult, error) {
	e, err := s.controller(ctx, id)
	if err != nil {
		return GuessResult{}, err
	}
	correct, n, ready := e.Controller.Guess(guess)
	if !ready {
		return GuessResult{Round: n}, ErrRoundNotReady
	}
	return GuessResult{Correct: correct, Round: n}, nil
}

// Subscribe streams the session's states until unsubscribed or the session ends.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan model.RoundState, func(), error) {
	e, err := s.controller(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := e.Controller.Subscribe()
	return ch, cancel, nil
}

// EndSession removes the session and closes its controller.
func (s *Service) EndSession(ctx context.Context, id string) error {
	store, err := s.running()
	if err != nil {
		return err
	}
	e, err := store.Delete(ctx, id)
	if err != nil {
		return err
	}
	e.Controller.Close()
	s.logger.Debug(ctx, "session ended", logger.String("session", id))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"maxSessions":  s.maxSessions,
		"sessionTTL":   s.sessionTTL.String(),
		"roundTimeout": s.roundTimeout.String(),
	}

	if s.started {
		stats["sessions"] = s.store.Count(context.Background())
		stats["catalogFetches"] = s.cache.Fetches()
		stats["catalogSize"] = s.cache.Len()
	}
	return stats
}
