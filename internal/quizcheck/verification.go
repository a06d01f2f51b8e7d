package quizcheck

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type sessionReport struct {
	created bool
	ready   int
	failed  int
	stuck   int
	guesses int

	violations []string
}

func (r *sessionReport) violate(id, format string, args ...any) {
	r.violations = append(r.violations, fmt.Sprintf("session %s: ", id)+fmt.Sprintf(format, args...))
}

// checkSession plays one session: create, cfg.Rounds rounds, delete.
func checkSession(ctx context.Context, cfg Config, client *HTTPClient) sessionReport {
	var rep sessionReport

	var sess session
	code, err := client.do(ctx, http.MethodPost, "/sessions", nil, &sess)
	if err != nil || code != http.StatusCreated || sess.ID == "" {
		return rep
	}
	rep.created = true
	id := sess.ID
	prev := sess.State.Round

	for i := 0; i < cfg.Rounds && ctx.Err() == nil; i++ {
		if i > 0 {
			var st state
			code, err := client.do(ctx, http.MethodPost, "/sessions/"+id+"/next", nil, &st)
			if err != nil || code != http.StatusAccepted {
				rep.violate(id, "next round: status %d: %v", code, err)
				break
			}
			if st.Round <= prev {
				rep.violate(id, "next round number %d not after %d", st.Round, prev)
			}
			prev = st.Round
		}

		st, outcome := waitRound(ctx, cfg, client, id)
		switch outcome {
		case outcomeStuck:
			rep.stuck++
			continue
		case outcomeFailed:
			rep.failed++
			verifyFailedRound(ctx, client, id, st, &rep)
		case outcomeReady:
			rep.ready++
			verifyReadyRound(ctx, client, id, st, &rep)
		}
	}

	if code, err := client.do(ctx, http.MethodDelete, "/sessions/"+id, nil, nil); err != nil || code != http.StatusNoContent {
		rep.violate(id, "delete: status %d: %v", code, err)
		return rep
	}
	if code, err := client.do(ctx, http.MethodGet, "/sessions/"+id, nil, nil); err == nil && code != http.StatusNotFound {
		rep.violate(id, "deleted session still served with status %d", code)
	}
	return rep
}

// waitRound polls the session until its round leaves the loading state.
func waitRound(ctx context.Context, cfg Config, client *HTTPClient, id string) (state, string) {
	deadline := time.Now().Add(cfg.RoundWait)
	for {
		var sess session
		code, err := client.do(ctx, http.MethodGet, "/sessions/"+id, nil, &sess)
		if err == nil && code == http.StatusOK && !sess.State.Loading {
			if sess.State.ErrorMessage != "" {
				return sess.State, outcomeFailed
			}
			return sess.State, outcomeReady
		}
		if time.Now().After(deadline) {
			return sess.State, outcomeStuck
		}
		select {
		case <-ctx.Done():
			return sess.State, outcomeStuck
		case <-time.After(cfg.Poll):
		}
	}
}

// verifyReadyRound checks the option list and that exactly one option is
// accepted as the answer.
func verifyReadyRound(ctx context.Context, client *HTTPClient, id string, st state, rep *sessionReport) {
	if st.ImageURL == "" {
		rep.violate(id, "round %d ready without an image", st.Round)
	}
	if len(st.Options) == 0 || len(st.Options) > 3 {
		rep.violate(id, "round %d has %d options", st.Round, len(st.Options))
	}
	seen := make(map[string]struct{}, len(st.Options))
	for _, o := range st.Options {
		if _, dup := seen[o]; dup {
			rep.violate(id, "round %d repeats option %q", st.Round, o)
		}
		seen[o] = struct{}{}
	}

	correct := 0
	for _, o := range st.Options {
		var res guessResult
		code, err := client.do(ctx, http.MethodPost, "/sessions/"+id+"/guess", guessRequest{Guess: strings.ToUpper(o)}, &res)
		rep.guesses++
		if err != nil || code != http.StatusOK {
			rep.violate(id, "guess %q: status %d: %v", o, code, err)
			return
		}
		if res.Round != st.Round {
			rep.violate(id, "guess answered for round %d, want %d", res.Round, st.Round)
		}
		if res.Correct {
			correct++
		}
	}
	if correct != 1 {
		rep.violate(id, "round %d accepts %d of its options", st.Round, correct)
	}
}

// verifyFailedRound checks a failed round carries no options and rejects guesses.
func verifyFailedRound(ctx context.Context, client *HTTPClient, id string, st state, rep *sessionReport) {
	if len(st.Options) != 0 || st.ImageURL != "" {
		rep.violate(id, "failed round %d kept stale fields", st.Round)
	}
	code, err := client.do(ctx, http.MethodPost, "/sessions/"+id+"/guess", guessRequest{Guess: "poodle"}, nil)
	rep.guesses++
	if err == nil && code != http.StatusConflict {
		rep.violate(id, "guess on failed round %d: status %d, want %d", st.Round, code, http.StatusConflict)
	}
}
