package quizcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/breedquiz/internal/adapters/dogapi"
	"github.com/okian/breedquiz/internal/adapters/http/api"
	service "github.com/okian/breedquiz/internal/app"
)

// fakeDogCEO serves three breeds; image lookups fail when brokenImages is set.
func fakeDogCEO(brokenImages bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/breeds/list/all", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"akita":[],"beagle":[],"husky":[]},"status":"success"}`))
	})
	mux.HandleFunc("/api/breed/", func(w http.ResponseWriter, r *http.Request) {
		if brokenImages {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		breed := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/breed/"), "/images/random")
		_, _ = w.Write([]byte(`{"message":"https://images.dog.ceo/breeds/` + breed + `/1.jpg","status":"success"}`))
	})
	return httptest.NewServer(mux)
}

// quizServer runs the real service and API against upstream.
func quizServer(ctx context.Context, upstream string) (*httptest.Server, func()) {
	client := dogapi.New(dogapi.WithBaseURL(upstream), dogapi.WithTimeout(time.Second))
	svc := service.New(
		service.WithCatalogFetcher(client),
		service.WithImageFetcher(client),
		service.WithRoundTimeout(2*time.Second),
	)
	So(svc.Start(ctx), ShouldBeNil)

	r := chi.NewRouter()
	api.NewServer(svc, svc).Register(r)
	srv := httptest.NewServer(r)
	return srv, func() {
		srv.Close()
		svc.Stop()
	}
}

// lenientServer accepts every guess, which a correct server never does.
func lenientServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	ready := session{ID: "s1", State: state{Round: 1, ImageURL: "https://x/1.jpg", Options: []string{"akita", "pug"}, Status: "success"}}
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ready)
	})
	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ready)
	})
	mux.HandleFunc("POST /sessions/{id}/guess", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(guessResult{Correct: true, Round: 1})
	})
	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return httptest.NewServer(mux)
}

func TestRun(t *testing.T) {
	Convey("Given a quiz check run", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		var out bytes.Buffer

		Convey("When the server is healthy", func() {
			upstream := fakeDogCEO(false)
			defer upstream.Close()
			srv, stop := quizServer(ctx, upstream.URL)
			defer stop()

			stats, err := Run(ctx, Config{BaseURL: srv.URL + "/", Sessions: 5, Rounds: 2, Workers: 3, Out: &out})

			Convey("Then every round verifies", func() {
				So(err, ShouldBeNil)
				So(stats.SessionsCreated, ShouldEqual, 5)
				So(stats.SessionsFailed, ShouldEqual, 0)
				So(stats.RoundsReady, ShouldEqual, 10)
				So(stats.GuessesSent, ShouldEqual, 30)
				So(stats.Violations, ShouldBeEmpty)
				So(out.String(), ShouldContainSubstring, "sessions: 5 created, 0 failed")
				So(out.String(), ShouldContainSubstring, "100.0% ready")
			})
		})

		Convey("When image lookups fail upstream", func() {
			upstream := fakeDogCEO(true)
			defer upstream.Close()
			srv, stop := quizServer(ctx, upstream.URL)
			defer stop()

			stats, err := Run(ctx, Config{BaseURL: srv.URL, Sessions: 3, Rounds: 2, Workers: 2, Out: &out})

			Convey("Then rounds fail cleanly without violations", func() {
				So(err, ShouldBeNil)
				So(stats.RoundsFailed, ShouldEqual, 6)
				So(stats.RoundsReady, ShouldEqual, 0)
				So(stats.Violations, ShouldBeEmpty)
			})
		})

		Convey("When the server accepts every option", func() {
			srv := lenientServer()
			defer srv.Close()

			stats, err := Run(ctx, Config{BaseURL: srv.URL, Sessions: 1, Rounds: 1, Workers: 1, Out: &out})

			Convey("Then the run reports violations", func() {
				So(errors.Is(err, ErrViolations), ShouldBeTrue)
				So(stats.Violations, ShouldNotBeEmpty)
				So(out.String(), ShouldContainSubstring, "accepts 2 of its options")
				So(out.String(), ShouldContainSubstring, "deleted session still served")
			})
		})

		Convey("When the service is unhealthy", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			_, err := Run(ctx, Config{BaseURL: srv.URL, Out: &out})

			Convey("Then it fails before playing", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unexpected status: 503")
			})
		})
	})
}

func TestWithDefaults(t *testing.T) {
	Convey("Given an empty config", t, func() {
		cfg := withDefaults(Config{BaseURL: "http://quiz:9080/"})

		Convey("Then defaults are filled in", func() {
			So(cfg.BaseURL, ShouldEqual, "http://quiz:9080")
			So(cfg.Sessions, ShouldEqual, DefaultSessions)
			So(cfg.Rounds, ShouldEqual, DefaultRounds)
			So(cfg.Workers, ShouldBeGreaterThan, 0)
			So(cfg.Timeout, ShouldEqual, DefaultTimeout)
			So(cfg.RoundWait, ShouldEqual, DefaultRoundWait)
			So(cfg.Out, ShouldNotBeNil)
		})
	})
}
