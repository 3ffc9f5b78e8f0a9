package app

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// SchemaPath is the HCL file declaring the sealed configuration object.
	SchemaPath string `env:"CONFGRID_SCHEMA"`
	// BaseDir is the directory the root module paths resolve against.
	// Includes written inside modules always resolve against the including
	// module's own directory instead.
	BaseDir string `env:"CONFGRID_BASE_DIR" envDefault:"."`
	// ModulePaths are the root modules to load, in order. A directory
	// expands to the module files beneath it.
	ModulePaths []string `env:"-"`

	LogFormat     string `env:"CONFGRID_LOG_FORMAT" envDefault:"text"`
	LogLevel      string `env:"CONFGRID_LOG_LEVEL" envDefault:"info"`
	Output        string `env:"CONFGRID_OUTPUT" envDefault:"text"`
	DedupeContent bool   `env:"CONFGRID_DEDUPE_CONTENT"`
}

// FromEnv returns a Config populated from CONFGRID_* environment variables
// and package defaults. CLI flags layer on top of it.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// NewConfig validates a Config and returns it ready for NewApp.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.SchemaPath == "" {
		return nil, errors.New("SchemaPath is a required configuration field and cannot be empty")
	}
	if len(cfg.ModulePaths) == 0 {
		return nil, errors.New("at least one module path is required")
	}
	if cfg.Output != "text" && cfg.Output != "json" {
		return nil, fmt.Errorf("invalid output format %q: must be 'text' or 'json'", cfg.Output)
	}
	return &cfg, nil
}
