package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/oarbit/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.KFactor, convey.ShouldEqual, 32)
			convey.So(cfg.DefaultRating, convey.ShouldEqual, 1500)
			convey.So(cfg.RatingFloor, convey.ShouldEqual, 100)
			convey.So(cfg.TieBreak, convey.ShouldEqual, "input_order")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := map[string]func(c *config.Config){
			"addr must not be empty":              func(c *config.Config) { c.Addr = " " },
			"db_path must not be empty":           func(c *config.Config) { c.DBPath = "" },
			"k_factor must be positive":           func(c *config.Config) { c.KFactor = 0 },
			"rating_floor must not be negative":   func(c *config.Config) { c.RatingFloor = -1 },
			"default_rating must be above":        func(c *config.Config) { c.DefaultRating = 50 },
			"max_leaderboard_limit must be":       func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
			"queue_size must be at least 1":       func(c *config.Config) { c.QueueSize = 0 },
			"process_timeout_ms must be at least": func(c *config.Config) { c.ProcessTimeoutMS = 0 },
			"tie_break must be":                   func(c *config.Config) { c.TieBreak = "coin_flip" },
			"server_url must not be empty":        func(c *config.Config) { c.ServerURL = "" },
		}
		for msg, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, msg)
		}
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DBPath, convey.ShouldEqual, "oarbit.db")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("OARBIT_ADDR", ":8080")
			_ = os.Setenv("OARBIT_K_FACTOR", "24")
			_ = os.Setenv("OARBIT_RATING_FLOOR", "250.5")
			_ = os.Setenv("OARBIT_TIE_BREAK", "shared")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.KFactor, convey.ShouldEqual, 24)
				convey.So(cfg.RatingFloor, convey.ShouldEqual, 250.5)
				convey.So(cfg.TieBreak, convey.ShouldEqual, "shared")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
# team defaults
addr: ":9090"
db_path: "/tmp/oarbit-test.db"
k_factor: 40
max_leaderboard_limit: 25
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("OARBIT_CONFIG", tmpFile)
			_ = os.Setenv("OARBIT_ADDR", ":8081")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")                  // env
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/oarbit-test.db") // file
				convey.So(cfg.KFactor, convey.ShouldEqual, 40)                   // file
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 25)       // file
				convey.So(cfg.DefaultRating, convey.ShouldEqual, 1500)           // default
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("OARBIT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("OARBIT_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("OARBIT_QUEUE_SIZE", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded values fail validation", func() {
			_ = os.Setenv("OARBIT_DEFAULT_RATING", "90")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"OARBIT_CONFIG",
		"OARBIT_ADDR",
		"OARBIT_K_FACTOR",
		"OARBIT_RATING_FLOOR",
		"OARBIT_TIE_BREAK",
		"OARBIT_QUEUE_SIZE",
		"OARBIT_DEFAULT_RATING",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "oarbit-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
