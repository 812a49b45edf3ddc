package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/funnel/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.PostQuizRoute, convey.ShouldEqual, "/inscricao")
				convey.So(cfg.Quiz, convey.ShouldHaveLength, 4)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FUNNEL_ADDR", ":8080")
			_ = os.Setenv("FUNNEL_QUEUE_SIZE", "64")
			_ = os.Setenv("FUNNEL_WORKER_COUNT", "4")
			_ = os.Setenv("FUNNEL_PIXEL_ENDPOINTS", "https://a.example/tr, https://b.example/collect")
			_ = os.Setenv("FUNNEL_PIXEL_TIMEOUT_MS", "750")

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.PixelEndpoints, convey.ShouldResemble, []string{"https://a.example/tr", "https://b.example/collect"})
				convey.So(cfg.PixelTimeout().Milliseconds(), convey.ShouldEqual, 750)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeTempFile(t, "funnel.yaml", `
addr: ":9090"
post_quiz_route: /obrigado
pixel_endpoints:
  - https://pixel.example/tr
quiz:
  - id: 1
    question: "Pronta?"
    options:
      - id: sim
        label: Sim
      - id: nao
        label: Não
`)
			_ = os.Setenv(config.EnvConfigFile, path)

			cfg, err := config.Load()

			convey.Convey("Then it should load from the file and replace the catalog", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.PostQuizRoute, convey.ShouldEqual, "/obrigado")
				convey.So(cfg.PixelEndpoints, convey.ShouldResemble, []string{"https://pixel.example/tr"})
				convey.So(cfg.Quiz, convey.ShouldHaveLength, 1)
				convey.So(cfg.Quiz[0].Options[1].Label, convey.ShouldEqual, "Não")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			})
		})

		convey.Convey("When a .env file, a YAML file and env vars all set addr", func() {
			dotenv := writeTempFile(t, ".env", "FUNNEL_ADDR=:7000\nFUNNEL_PIXEL_ID=px-1\nOTHER=ignored\n")
			yamlFile := writeTempFile(t, "funnel.yaml", "addr: \":7001\"\nworker_count: 8\n")
			_ = os.Setenv(config.EnvDotenvFile, dotenv)
			_ = os.Setenv(config.EnvConfigFile, yamlFile)

			cfg, err := config.Load()
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then YAML beats .env", func() {
				convey.So(cfg.Addr, convey.ShouldEqual, ":7001")
				convey.So(cfg.PixelID, convey.ShouldEqual, "px-1")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
			})

			convey.Convey("Then env beats YAML", func() {
				_ = os.Setenv("FUNNEL_ADDR", ":7002")
				cfg, err := config.Load()
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7002")
			})
		})

		convey.Convey("When the .env file does not exist", func() {
			_ = os.Setenv(config.EnvDotenvFile, filepath.Join(t.TempDir(), "missing.env"))

			cfg, err := config.Load()

			convey.Convey("Then it is skipped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the YAML file is invalid or missing", func() {
			_ = os.Setenv(config.EnvConfigFile, writeTempFile(t, "bad.yaml", `invalid: yaml: content: [`))
			cfg, err := config.Load()
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)

			_ = os.Setenv(config.EnvConfigFile, "/non/existent/file.yaml")
			cfg, err = config.Load()
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a numeric env var is not a number", func() {
			_ = os.Setenv("FUNNEL_QUEUE_SIZE", "invalid")

			cfg, err := config.Load()

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a route is relative", func() {
			_ = os.Setenv("FUNNEL_QUIZ_ROUTE", "quiz")

			cfg, err := config.Load()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "quiz_route")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the pixel timeout is not positive", func() {
			_ = os.Setenv("FUNNEL_PIXEL_TIMEOUT_MS", "0")

			_, err := config.Load()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		config.EnvConfigFile,
		config.EnvDotenvFile,
		"FUNNEL_ADDR",
		"FUNNEL_QUEUE_SIZE",
		"FUNNEL_WORKER_COUNT",
		"FUNNEL_PIXEL_ENDPOINTS",
		"FUNNEL_PIXEL_TIMEOUT_MS",
		"FUNNEL_PIXEL_ID",
		"FUNNEL_QUIZ_ROUTE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
