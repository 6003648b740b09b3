package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/dotenv"
	"github.com/vk/reciperun/internal/registry"
	"github.com/vk/reciperun/internal/shell"
)

var echoColor = color.New(color.FgCyan)

// Options control one Executor.
type Options struct {
	// KeepGoing runs the remaining steps after a failure.
	KeepGoing bool
	// DryRun echoes every step without running it.
	DryRun bool
	// Quiet suppresses step echo lines.
	Quiet bool
	// Environ is the base process environment. Defaults to os.Environ().
	Environ []string
	// Overlay is the dotenv overlay, layered over Environ.
	Overlay    map[string]string
	Shell      shell.Runtime
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// Executor runs recipes from one loaded model.
type Executor struct {
	model    *config.Model
	registry *registry.Registry
	opts     Options
}

// New creates an Executor. Unset streams default to the process streams.
func New(model *config.Model, reg *registry.Registry, opts Options) *Executor {
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}
	if opts.Shell == nil {
		opts.Shell = shell.NewNative("")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Executor{model: model, registry: reg, opts: opts}
}

// Run executes the named recipe with extra pass-through args. It returns
// the exit code of the last executed step, or of the first failing one.
func (e *Executor) Run(ctx context.Context, name string, args []string) (int, error) {
	recipe, ok := e.model.Recipe(name)
	if !ok {
		return 1, recipeNotFound(name, e.model.Order)
	}

	ctx = ctxlog.With(ctx, "recipe", name)
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Running recipe.", "steps", len(recipe.Steps), "args", len(args))

	env, err := e.environment(recipe)
	if err != nil {
		return 1, fmt.Errorf("recipe %q: %w", name, err)
	}

	argTarget := e.extraArgsTarget(recipe)
	if len(args) > 0 && argTarget < 0 {
		return 2, fmt.Errorf("%w: %q has no shell or exec step", ErrArgsNotAccepted, name)
	}

	var firstFailure *CommandFailedError
	lastCode := 0
	for i, step := range recipe.Steps {
		if err := ctx.Err(); err != nil {
			return shell.CodeInterrupted, fmt.Errorf("recipe %q interrupted: %w", name, err)
		}

		var extra []string
		if i == argTarget {
			extra = args
		}
		code, err := e.runStep(ctx, recipe, i, step, env, extra)
		lastCode = code
		if code == 0 {
			continue
		}

		failure := &CommandFailedError{Recipe: name, Step: i + 1, Kind: step.Kind, Code: code, Err: err}
		if errors.Is(err, context.Canceled) {
			return code, failure
		}
		if !e.opts.KeepGoing && !recipe.ContinueOnError {
			logger.Debug("Recipe aborted.", "step", i+1, "code", code)
			return code, failure
		}
		logger.Warn("Step failed, continuing.", "step", i+1, "code", code, "error", err)
		if firstFailure == nil {
			firstFailure = failure
		}
	}

	if firstFailure != nil {
		return firstFailure.Code, firstFailure
	}
	logger.Info("🏁 Recipe finished.", "code", lastCode)
	return lastCode, nil
}

// runStep evaluates and runs one step.
func (e *Executor) runStep(ctx context.Context, recipe *config.Recipe, i int, step *config.Step, env map[string]string, extra []string) (int, error) {
	logger := ctxlog.FromContext(ctx).With("step", i+1, "kind", step.Kind)

	handler, ok := e.registry.Lookup(step.Kind)
	if !ok {
		return 1, fmt.Errorf("%s: unknown step kind %q", step.Source, step.Kind)
	}
	args, err := registry.EvalArgs(step, env)
	if err != nil {
		return 1, fmt.Errorf("%s: %w", step.Source, err)
	}

	e.echo(handler, args, extra)
	if e.opts.DryRun {
		return 0, nil
	}

	sc := &registry.StepContext{
		Recipe:     recipe.Name,
		Index:      i,
		Dir:        recipe.Dir,
		Env:        env,
		ExtraArgs:  extra,
		Shell:      e.opts.Shell,
		HTTPClient: e.opts.HTTPClient,
		Stdin:      e.opts.Stdin,
		Stdout:     e.opts.Stdout,
		Stderr:     e.opts.Stderr,
	}
	logger.Debug("Step started.")
	code, err := handler.Fn(ctxlog.WithLogger(ctx, logger), sc, args)
	if err != nil && code == 0 {
		code = 1
	}
	logger.Debug("Step finished.", "code", code)
	return code, err
}

// echo prints the `+ step` line to stderr.
func (e *Executor) echo(handler *registry.RegisteredStep, args registry.Args, extra []string) {
	if e.opts.Quiet && !e.opts.DryRun {
		return
	}
	line := ""
	if handler.Describe != nil {
		line = handler.Describe(args)
	}
	if len(extra) > 0 {
		if quoted, err := shell.QuoteArgs(extra); err == nil {
			line += " " + quoted
		}
	}
	echoColor.Fprintf(e.opts.Stderr, "+ %s\n", line)
}

// extraArgsTarget returns the index of the last step that accepts
// pass-through arguments, or -1.
func (e *Executor) extraArgsTarget(recipe *config.Recipe) int {
	for i := len(recipe.Steps) - 1; i >= 0; i-- {
		if h, ok := e.registry.Lookup(recipe.Steps[i].Kind); ok && h.AcceptsExtraArgs {
			return i
		}
	}
	return -1
}

// environment layers the process environment, the dotenv overlay, the
// recipe env and the recipe path_env, in that order.
func (e *Executor) environment(recipe *config.Recipe) (map[string]string, error) {
	base := dotenv.Merge(dotenv.FromEnviron(e.opts.Environ), e.opts.Overlay)

	recipeEnv := make(map[string]string, len(recipe.Env))
	for _, k := range sortedKeys(recipe.Env) {
		v, err := recipe.Env[k].Value(base)
		if err != nil {
			return nil, fmt.Errorf("env %q: %w", k, err)
		}
		s, err := config.AsString(v)
		if err != nil {
			return nil, fmt.Errorf("env %q: %w", k, err)
		}
		recipeEnv[k] = s
	}
	env := dotenv.Merge(base, recipeEnv)

	pathEnv := make(map[string]string, len(recipe.PathEnv))
	for _, k := range sortedKeys(recipe.PathEnv) {
		v, err := recipe.PathEnv[k].Value(env)
		if err != nil {
			return nil, fmt.Errorf("path_env %q: %w", k, err)
		}
		entries, err := config.AsStringList(v)
		if err != nil {
			return nil, fmt.Errorf("path_env %q: %w", k, err)
		}
		pathEnv[k] = dotenv.PrependPath(entries, env[k])
	}
	return dotenv.Merge(env, pathEnv), nil
}

func sortedKeys(m map[string]config.Expr) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
