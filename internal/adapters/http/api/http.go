// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/breedquiz/internal/app"
	"github.com/okian/breedquiz/internal/domain/model"
	"github.com/okian/breedquiz/pkg/logger"
	"github.com/okian/breedquiz/pkg/metrics"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	CreateSession(ctx context.Context) (service.Session, error)
	Session(ctx context.Context, id string) (service.Session, error)
	NextRound(ctx context.Context, id string) (model.RoundState, error)
	Guess(ctx context.Context, id, guess string) (service.GuessResult, error)
	Subscribe(ctx context.Context, id string) (<-chan model.RoundState, func(), error)
	EndSession(ctx context.Context, id string) error
}

// Server wires HTTP routes for the quiz API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	streamHandler   *StreamHandler

	requestTimeout time.Duration
	logger         logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequestTimeout bounds non-streaming handlers.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		requestTimeout: 10 * time.Second,
		logger:         logger.NamedOrNop("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.sessionsHandler = NewSessionsHandler(deps, s.logger)
	s.streamHandler = NewStreamHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/sessions", func(r chi.Router) {
		// Streams outlive the request timeout.
		r.Get("/{id}/ws", s.streamHandler.HandleStream)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.requestTimeout))
			r.Post("/", s.sessionsHandler.HandleCreate)
			r.Get("/{id}", s.sessionsHandler.HandleGet)
			r.Delete("/{id}", s.sessionsHandler.HandleDelete)
			r.Post("/{id}/next", s.sessionsHandler.HandleNext)
			r.Post("/{id}/guess", s.sessionsHandler.HandleGuess)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
}

// Handler returns a router with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// stateResponse is a RoundState plus its derived status. The correct breed
// never leaves the server.
type stateResponse struct {
	model.RoundState
	Status model.Status `json:"status"`
}

func newStateResponse(s model.RoundState) stateResponse {
	if s.Options == nil {
		s.Options = []string{}
	}
	return stateResponse{RoundState: s, Status: s.Status()}
}

type sessionResponse struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	State     stateResponse `json:"state"`
}

func newSessionResponse(s service.Session) sessionResponse {
	return sessionResponse{ID: s.ID, CreatedAt: s.CreatedAt, State: newStateResponse(s.State)}
}

type guessRequest struct {
	Guess string `json:"guess"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, service.ErrCapacity):
		writeError(w, http.StatusTooManyRequests, "too_many_sessions", err)
	case errors.Is(err, service.ErrRoundNotReady):
		writeError(w, http.StatusConflict, "round_not_ready", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", errors.New(model.DefaultErrorMessage))
	}
}
