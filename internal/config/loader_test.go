package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/breedquiz/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"BREEDQUIZ_CONFIG",
	"BREEDQUIZ_ADDR",
	"BREEDQUIZ_LOG_LEVEL",
	"BREEDQUIZ_LOG_FORMAT",
	"BREEDQUIZ_DOG_API_BASE_URL",
	"BREEDQUIZ_ROUND_TIMEOUT_MS",
	"BREEDQUIZ_MAX_SESSIONS",
	"BREEDQUIZ_FEEDBACK_DELAY_MS",
	"BREEDQUIZ_RANDOM_SEED",
	"BREEDQUIZ_STALL_ON_EMPTY_CATALOG",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	t.Chdir(t.TempDir())

	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BREEDQUIZ_ADDR", ":8080")
			_ = os.Setenv("BREEDQUIZ_ROUND_TIMEOUT_MS", "500")
			_ = os.Setenv("BREEDQUIZ_MAX_SESSIONS", "3")
			_ = os.Setenv("BREEDQUIZ_RANDOM_SEED", "99")
			_ = os.Setenv("BREEDQUIZ_STALL_ON_EMPTY_CATALOG", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RoundTimeoutMS, convey.ShouldEqual, 500)
				convey.So(cfg.MaxSessions, convey.ShouldEqual, 3)
				convey.So(cfg.RandomSeed, convey.ShouldEqual, int64(99))
				convey.So(cfg.StallOnEmptyCatalog, convey.ShouldBeTrue)
				convey.So(cfg.FeedbackDelayMS, convey.ShouldEqual, 2000)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeTempFile(t, t.TempDir(), "quiz.yaml", `
addr: ":9090"
log_format: json
dog_api_base_url: "http://localhost:8000"
feedback_delay_ms: 750
`)
			_ = os.Setenv("BREEDQUIZ_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.DogAPIBaseURL, convey.ShouldEqual, "http://localhost:8000")
				convey.So(cfg.FeedbackDelayMS, convey.ShouldEqual, 750)
				convey.So(cfg.MaxSessions, convey.ShouldEqual, 1000)
			})

			convey.Convey("And env vars take precedence over the file", func() {
				_ = os.Setenv("BREEDQUIZ_ADDR", ":7070")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When the YAML file is missing", func() {
			_ = os.Setenv("BREEDQUIZ_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("BREEDQUIZ_LOG_LEVEL", "chatty")

			_, err := config.Load(ctx)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value has the wrong type", func() {
			_ = os.Setenv("BREEDQUIZ_MAX_SESSIONS", "lots")

			_, err := config.Load(ctx)

			convey.Convey("Then an invalid config error is returned", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestConfigLoader_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeTempFile(t, dir, ".env", "BREEDQUIZ_ADDR=:6060\nBREEDQUIZ_FEEDBACK_DELAY_MS=100\n")

	convey.Convey("Given a .env file in the working directory", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When nothing is set in the environment", func() {
			cfg, err := config.Load(context.Background())

			convey.Convey("Then the .env values apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.FeedbackDelayMS, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When the environment already sets a key", func() {
			_ = os.Setenv("BREEDQUIZ_ADDR", ":5050")
			cfg, err := config.Load(context.Background())

			convey.Convey("Then the environment wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":5050")
				convey.So(cfg.FeedbackDelayMS, convey.ShouldEqual, 100)
			})
		})
	})
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	convey.Convey("A missing .env file is not an error", t, func() {
		err := config.LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
		convey.So(err, convey.ShouldBeNil)
	})
}
