// Package config loads the settings of a simulation run from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no env file is given and it exists.
const DefaultEnvFile = ".env"

// Config holds the settings of a run. Command line flags override them.
type Config struct {
	// MaxIterations limits the invocations per ReachTime call.
	MaxIterations int `env:"CURVESIM_MAX_ITERATIONS" envDefault:"1048576"`

	// LogEvents prints the lifecycle of every event to stderr.
	LogEvents bool `env:"CURVESIM_LOG_EVENTS"`

	// Record stores the event trace into a SQLite database.
	Record     bool   `env:"CURVESIM_RECORD"`
	RecordPath string `env:"CURVESIM_RECORD_PATH"`

	// SkipReschedules keeps reschedules out of the recorded trace.
	SkipReschedules bool `env:"CURVESIM_SKIP_RESCHEDULES"`

	// SamplePeriod samples every continuous curve with this period. The
	// samples go into the recording, or into SamplePath.csv otherwise.
	SamplePeriod float64 `env:"CURVESIM_SAMPLE_PERIOD"`
	SamplePath   string  `env:"CURVESIM_SAMPLE_PATH"`

	// Monitor serves the monitoring API while the simulation runs.
	Monitor     bool `env:"CURVESIM_MONITOR"`
	MonitorPort int  `env:"CURVESIM_MONITOR_PORT"`
	OpenBrowser bool `env:"CURVESIM_OPEN_BROWSER"`
}

// Load reads envFile into the environment, without overriding variables
// that are already set, and parses the configuration. An empty envFile means
// DefaultEnvFile, which may be missing.
func Load(envFile string) (Config, error) {
	var cfg Config

	err := loadEnvFile(envFile)
	if err != nil {
		return cfg, err
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MaxIterations <= 0 {
		return cfg, fmt.Errorf("CURVESIM_MAX_ITERATIONS must be positive, got %d",
			cfg.MaxIterations)
	}

	if cfg.SamplePeriod < 0 {
		return cfg, fmt.Errorf("CURVESIM_SAMPLE_PERIOD must not be negative, got %g",
			cfg.SamplePeriod)
	}

	return cfg, nil
}

func loadEnvFile(envFile string) error {
	optional := envFile == ""
	if optional {
		envFile = DefaultEnvFile
	}

	_, err := os.Stat(envFile)
	if optional && errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}

	return nil
}
