package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/breedquiz/internal/config"
	"github.com/okian/breedquiz/pkg/logger"
)

// errExitCalled is a sentinel used to catch kong's os.Exit calls in tests.
var errExitCalled = errors.New("exit called")

func newParser(t *testing.T, cli *CLI, out *bytes.Buffer) *kong.Kong {
	t.Helper()
	k, err := kong.New(cli,
		kong.Name("breedquiz"),
		kong.Vars{"version": "v1.0.0 abc1234 2026-01-01T00:00:00Z"},
		kong.Writers(out, out),
		kong.Exit(func(int) { panic(errExitCalled) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

// fakeDogAPI serves a three-breed catalog and a fixed image per breed.
func fakeDogAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/breeds/list/all", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"poodle":["toy"],"beagle":[],"pug":[]},"status":"success"}`))
	})
	mux.HandleFunc("/api/breed/", func(w http.ResponseWriter, r *http.Request) {
		breed := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/breed/"), "/")[0]
		_, _ = fmt.Fprintf(w, `{"message":"https://images.dog.ceo/breeds/%s/1.jpg","status":"success"}`, breed)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCLI(t *testing.T) {
	t.Run("version flag prints version commit and date", func(t *testing.T) {
		var cli CLI
		var buf bytes.Buffer
		k := newParser(t, &cli, &buf)

		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected panic from --version flag")
			}
			err, ok := r.(error)
			if !ok || !errors.Is(err, errExitCalled) {
				panic(r)
			}
			for _, want := range []string{"v1.0.0", "abc1234", "2026-01-01T00:00:00Z"} {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("version output = %q, want to contain %q", buf.String(), want)
				}
			}
		}()

		k.Parse([]string{"--version"}) //nolint:errcheck // --version triggers panic via Exit hook
	})

	t.Run("serve accepts an address override", func(t *testing.T) {
		var cli CLI
		var buf bytes.Buffer
		ctx, err := newParser(t, &cli, &buf).Parse([]string{"serve", "--addr", ":8181"})
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if ctx.Command() != "serve" {
			t.Errorf("command = %q, want serve", ctx.Command())
		}
		if cli.Serve.Addr != ":8181" {
			t.Errorf("addr = %q, want :8181", cli.Serve.Addr)
		}
	})

	t.Run("play flags", func(t *testing.T) {
		var cli CLI
		var buf bytes.Buffer
		ctx, err := newParser(t, &cli, &buf).Parse([]string{"play", "--plain", "--seed", "7"})
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if ctx.Command() != "play" {
			t.Errorf("command = %q, want play", ctx.Command())
		}
		if !cli.Play.Plain || cli.Play.Seed != 7 || cli.Play.LogFile != "" {
			t.Errorf("play = %+v, want plain with seed 7", cli.Play)
		}
	})

	t.Run("check flags", func(t *testing.T) {
		var cli CLI
		var buf bytes.Buffer
		ctx, err := newParser(t, &cli, &buf).Parse([]string{"check", "--url", "http://quiz:9080", "--sessions", "5", "--timeout", "2s"})
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if ctx.Command() != "check" {
			t.Errorf("command = %q, want check", ctx.Command())
		}
		if cli.Check.URL != "http://quiz:9080" || cli.Check.Sessions != 5 || cli.Check.Rounds != 3 || cli.Check.Timeout != 2*time.Second {
			t.Errorf("check = %+v", cli.Check)
		}
	})

	t.Run("unknown command errors", func(t *testing.T) {
		var cli CLI
		var buf bytes.Buffer
		if _, err := newParser(t, &cli, &buf).Parse([]string{"fetch"}); err == nil {
			t.Error("expected error for unknown command")
		}
	})
}

func TestExitCode(t *testing.T) {
	convey.Convey("Given command errors", t, func() {
		convey.So(exitCode(nil), convey.ShouldEqual, exitSuccess)
		convey.So(exitCode(fmt.Errorf("serve: %w", config.ErrInvalidConfig)), convey.ShouldEqual, exitSetup)
		convey.So(exitCode(fmt.Errorf("play: %w", config.ErrLoadConfig)), convey.ShouldEqual, exitSetup)
		convey.So(exitCode(errors.New("listen tcp: address in use")), convey.ShouldEqual, exitRuntime)
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	upstream := fakeDogAPI(t)
	t.Setenv("BREEDQUIZ_ADDR", ":0")
	t.Setenv("BREEDQUIZ_DOG_API_BASE_URL", upstream.URL)
	t.Setenv("BREEDQUIZ_RANDOM_SEED", "42")

	convey.Convey("Given configuration from the environment", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.DogAPIBaseURL, convey.ShouldEqual, upstream.URL)
		convey.So(cfg.RandomSeed, convey.ShouldEqual, int64(42))

		convey.Convey("When the service and router are assembled", func() {
			svc := newService(cfg, logger.NewNop())
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			srv := httptest.NewServer(newRouter(ctx, svc, cfg, logger.NewNop()))
			defer srv.Close()

			convey.Convey("Then the client, health, docs and metrics are served", func() {
				for _, path := range []string{"/", "/static/quiz.js", "/healthz", "/api-docs", "/openapi.yaml", "/metrics", "/stats"} {
					resp, err := http.Get(srv.URL + path)
					convey.So(err, convey.ShouldBeNil)
					_ = resp.Body.Close()
					convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("Then a session plays a round against the dog API", func() {
				resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
				convey.So(err, convey.ShouldBeNil)
				var created struct {
					ID string `json:"id"`
				}
				convey.So(json.NewDecoder(resp.Body).Decode(&created), convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)
				convey.So(created.ID, convey.ShouldNotBeEmpty)

				var state struct {
					ImageURL string   `json:"image_url"`
					Options  []string `json:"options"`
				}
				deadline := time.Now().Add(3 * time.Second)
				for time.Now().Before(deadline) {
					resp, err := http.Get(srv.URL + "/sessions/" + created.ID)
					convey.So(err, convey.ShouldBeNil)
					var body struct {
						State json.RawMessage `json:"state"`
					}
					_ = json.NewDecoder(resp.Body).Decode(&body)
					_ = resp.Body.Close()
					_ = json.Unmarshal(body.State, &state)
					if state.ImageURL != "" {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				convey.So(state.ImageURL, convey.ShouldStartWith, "https://images.dog.ceo/breeds/")
				convey.So(len(state.Options), convey.ShouldEqual, 3)
			})

			convey.Convey("Then the metrics updaters run without panicking", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
				convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)

				short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
				defer stop()
				convey.So(func() { startSystemMetricsUpdater(short) }, convey.ShouldNotPanic)
				convey.So(func() { startServiceMetricsUpdater(short, svc) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When a terminal game is built", func() {
			game := newGame(cfg, logger.NewNop())
			defer game.Close()

			game.NextRound()
			convey.So(game.WaitIdle(ctx), convey.ShouldBeNil)

			convey.Convey("Then its first round is ready", func() {
				st := game.State()
				convey.So(st.ErrorMessage, convey.ShouldBeEmpty)
				convey.So(st.Options, convey.ShouldContain, st.CorrectBreed)
				convey.So(game.SubmitGuess(strings.ToUpper(st.CorrectBreed)), convey.ShouldBeTrue)
			})
		})
	})
}
