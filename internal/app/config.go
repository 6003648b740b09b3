package app

import (
	"fmt"
	"os"

	"github.com/vk/reciperun/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Dir is where default recipe files are looked up and relative paths
	// given on the command line are resolved. Defaults to the working
	// directory.
	Dir string
	// File is an explicit recipe file or directory.
	File string
	// EnvFiles replace the dotenv files named by the recipe files.
	EnvFiles []string

	DryRun    bool
	KeepGoing bool
	Quiet     bool
	// Shell overrides the runtime chosen in the recipe files.
	Shell string

	HistoryPath string
	NoHistory   bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg.Dir = wd
	}

	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "warn"
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	if err := config.ValidateShell(cfg.Shell); err != nil {
		return nil, err
	}
	return &cfg, nil
}
