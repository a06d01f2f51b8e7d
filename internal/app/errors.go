package service

import (
	"errors"

	"github.com/okian/breedquiz/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrNotFound      = repository.ErrNotFound
	ErrCapacity      = repository.ErrCapacity
	ErrRoundNotReady = errors.New("round not ready for guesses")
)
