package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/dotenv"
	"github.com/vk/reciperun/internal/fsutil"
	"github.com/vk/reciperun/internal/ledger"
	"github.com/vk/reciperun/internal/registry"
	"github.com/vk/reciperun/internal/shell"
	"github.com/vk/reciperun/modules/fetch"
)

// Options inject the process surroundings of an App. Zero values select
// the real process streams, environment and collaborators.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	// Stderr receives logs and step echo lines.
	Stderr  io.Writer
	Environ []string

	Modules    []registry.Module
	Shell      shell.Runtime
	HTTPClient *http.Client
	History    ledger.Store
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	cfg      *Config
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
	overlay  dotenv.Overlay
	shell    shell.Runtime
	history  ledger.Store

	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	environ    []string
	httpClient *http.Client
}

// New loads the recipe files, validates them against the registered step
// kinds and prepares everything a run needs.
func New(ctx context.Context, cfg *Config, opts Options) (*App, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}
	if len(opts.Modules) == 0 {
		opts.Modules = coreModules
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = fetch.NewClient(0)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, opts.Stderr)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	files, err := fsutil.FindRecipeFiles(cfg.Dir, cfg.File)
	if err != nil {
		return nil, err
	}
	model, err := loadModel(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	logger.Debug("Recipes loaded.", "files", len(files), "recipes", len(model.Order))

	reg := registry.New(opts.Modules...)
	if err := reg.Validate(model); err != nil {
		return nil, fmt.Errorf("invalid recipes:\n%w", err)
	}
	logger.Debug("Registry validation passed.", "kinds", reg.Kinds())

	overlay, err := loadOverlay(cfg, model)
	if err != nil {
		return nil, err
	}

	rt := opts.Shell
	if rt == nil {
		name := model.Settings.Shell
		if cfg.Shell != "" {
			name = cfg.Shell
		}
		if rt, err = shell.New(name, model.Settings.ShellPath); err != nil {
			return nil, err
		}
	}
	logger.Debug("Shell runtime selected.", "runtime", rt.Name())

	history := opts.History
	if history == nil {
		history = newHistory(cfg, files)
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		model:      model,
		overlay:    overlay,
		shell:      rt,
		history:    history,
		stdin:      opts.Stdin,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
		environ:    opts.Environ,
		httpClient: opts.HTTPClient,
	}, nil
}

// loadOverlay reads the dotenv files. Files given on the command line must
// exist; files named by recipe files follow their dotenv_required setting.
func loadOverlay(cfg *Config, model *config.Model) (dotenv.Overlay, error) {
	if len(cfg.EnvFiles) > 0 {
		paths := make([]string, len(cfg.EnvFiles))
		for i, p := range cfg.EnvFiles {
			paths[i] = config.ResolvePath(cfg.Dir, p)
		}
		return dotenv.Load(paths, true)
	}
	return dotenv.Load(model.Settings.Dotenv, model.Settings.DotenvRequired)
}

func newHistory(cfg *Config, files []string) ledger.Store {
	if cfg.NoHistory {
		return ledger.NewMemoryStore()
	}
	path := cfg.HistoryPath
	switch {
	case path == "" && len(files) > 0:
		path = filepath.Join(filepath.Dir(files[0]), ledger.DefaultPath)
	case path == "":
		path = filepath.Join(cfg.Dir, ledger.DefaultPath)
	default:
		path = config.ResolvePath(cfg.Dir, path)
	}
	return ledger.NewSQLiteStore(path)
}

// Model returns the loaded recipe model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// Close releases the history store.
func (a *App) Close() error {
	return a.history.Close()
}
