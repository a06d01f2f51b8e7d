package service

import (
	"time"

	"github.com/okian/breedquiz/internal/adapters/repository"
	"github.com/okian/breedquiz/internal/domain/breeds"
	"github.com/okian/breedquiz/internal/domain/round"
	"github.com/okian/breedquiz/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCatalogFetcher sets where the breed catalog comes from.
func WithCatalogFetcher(f breeds.CatalogFetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.catalog = f
		}
	}
}

// WithImageFetcher sets where round images come from.
func WithImageFetcher(f round.ImageFetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.images = f
		}
	}
}

// WithStore replaces the session store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMaxSessions caps concurrent sessions. Zero means unbounded.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxSessions = n
		}
	}
}

// WithSessionTTL sets how long an untouched session survives.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithSweepInterval sets how often idle sessions are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithRoundTimeout bounds each round's loading.
func WithRoundTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.roundTimeout = d
		}
	}
}

// WithSeed makes option picking deterministic. Zero keeps a time seed.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithStallOnEmptyCatalog leaves rounds loading when no breeds exist.
func WithStallOnEmptyCatalog(stall bool) Option {
	return func(s *Service) {
		s.stallOnEmpty = stall
	}
}
