package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/breedquiz/pkg/logger"
)

const maxGuessBody = 4 << 10

// SessionsHandler serves the session lifecycle and round actions.
type SessionsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies, l logger.Logger) *SessionsHandler {
	return &SessionsHandler{deps: deps, logger: l}
}

// HandleCreate handles POST /sessions. The first round starts immediately.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.CreateSession(r.Context())
	if err != nil {
		h.logger.Warn(r.Context(), "create session failed", logger.Error(err))
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

// HandleGet handles GET /sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// HandleNext handles POST /sessions/{id}/next and returns the loading state.
func (h *SessionsHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.NextRound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newStateResponse(st))
}

// HandleGuess handles POST /sessions/{id}/guess with {"guess": "..."}.
func (h *SessionsHandler) HandleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxGuessBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeServiceError(w, fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
		return
	}
	if strings.TrimSpace(req.Guess) == "" {
		writeServiceError(w, fmt.Errorf("%w: missing guess", ErrBadRequest))
		return
	}

	res, err := h.deps.Guess(r.Context(), chi.URLParam(r, "id"), req.Guess)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleDelete handles DELETE /sessions/{id}.
func (h *SessionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.EndSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
