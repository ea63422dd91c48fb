// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and OARBIT_ env vars.
// - External errors are wrapped with ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database holding sessions and ratings.
	DBPath string `koanf:"db_path"`

	// KFactor scales every rating delta.
	KFactor float64 `koanf:"k_factor"`

	// DefaultRating is assigned the first time an athlete is rated.
	DefaultRating float64 `koanf:"default_rating"`

	// RatingFloor is the lowest rating an athlete can fall to.
	RatingFloor float64 `koanf:"rating_floor"`

	// TieBreak decides how boats with identical effective times are ranked:
	// "input_order" or "shared".
	TieBreak string `koanf:"tie_break"`

	// MaxLeaderboardLimit caps GET /ratings?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// QueueSize bounds the processing job queue.
	QueueSize int `koanf:"queue_size"`

	// GuardSize bounds the processed-session guard; <= 0 means unbounded.
	GuardSize int `koanf:"guard_size"`

	// ProcessTimeoutMS bounds a single processing run.
	ProcessTimeoutMS int `koanf:"process_timeout_ms"`

	// ServerURL is the API the CLI talks to.
	ServerURL string `koanf:"server_url"`

	// RequestTimeoutMS bounds a single CLI request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBPath:              "oarbit.db",
		KFactor:             32,
		DefaultRating:       1500,
		RatingFloor:         100,
		TieBreak:            "input_order",
		MaxLeaderboardLimit: 100,
		QueueSize:           64,
		GuardSize:           0,
		ProcessTimeoutMS:    30_000,
		ServerURL:           "http://localhost:9080",
		RequestTimeoutMS:    60_000,
	}
}

// Validate reports the first invalid setting, wrapped with ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.KFactor <= 0:
		return fmt.Errorf("%w: k_factor must be positive", ErrInvalidConfig)
	case c.RatingFloor < 0:
		return fmt.Errorf("%w: rating_floor must not be negative", ErrInvalidConfig)
	case c.DefaultRating <= c.RatingFloor:
		return fmt.Errorf("%w: default_rating must be above rating_floor", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be at least 1", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be at least 1", ErrInvalidConfig)
	case c.ProcessTimeoutMS < 1:
		return fmt.Errorf("%w: process_timeout_ms must be at least 1", ErrInvalidConfig)
	case strings.TrimSpace(c.ServerURL) == "":
		return fmt.Errorf("%w: server_url must not be empty", ErrInvalidConfig)
	case c.RequestTimeoutMS < 0:
		return fmt.Errorf("%w: request_timeout_ms must not be negative", ErrInvalidConfig)
	}
	switch c.TieBreak {
	case "input_order", "shared":
	default:
		return fmt.Errorf("%w: tie_break must be input_order or shared", ErrInvalidConfig)
	}
	return nil
}
