package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/dotenv"
	"github.com/vk/reciperun/internal/shell"
)

// Module is the interface that every step module implements to be registered.
type Module interface {
	Register(r *Registry)
}

// ArgSpec describes one argument accepted by a step kind.
type ArgSpec struct {
	Name     string
	Required bool
}

// StepContext is everything a handler may use while running one step.
type StepContext struct {
	Recipe string
	// Index is the zero-based position of the step in its recipe.
	Index int
	Dir   string
	Env   map[string]string
	// ExtraArgs is only set for the last step that accepts pass-through
	// arguments.
	ExtraArgs  []string
	Shell      shell.Runtime
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// Environ returns the step environment as a KEY=value slice.
func (sc *StepContext) Environ() []string {
	return dotenv.Environ(sc.Env)
}

// RegisteredStep holds the compiled Go parts of a step kind.
type RegisteredStep struct {
	Description string
	Args        []ArgSpec
	// AcceptsExtraArgs marks kinds that take the CLI pass-through arguments.
	AcceptsExtraArgs bool
	// Fn runs the step and returns its exit code. A non-nil error with a
	// zero code is treated as exit code 1.
	Fn func(ctx context.Context, sc *StepContext, args Args) (int, error)
	// Describe renders the step for echo and dry-run output.
	Describe func(args Args) string
}

// Registry holds all registered step kinds of one application instance.
type Registry struct {
	steps map[string]*RegisteredStep
}

// New creates an empty registry and registers the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{steps: make(map[string]*RegisteredStep)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterStep registers the handler for kind. It panics if kind already exists.
func (r *Registry) RegisterStep(kind string, step *RegisteredStep) {
	if _, exists := r.steps[kind]; exists {
		panic(fmt.Sprintf("step kind '%s' already registered", kind))
	}
	if step.Fn == nil {
		panic(fmt.Sprintf("step kind '%s' has no handler function", kind))
	}
	slog.Debug("Registering step kind.", "kind", kind)
	r.steps[kind] = step
}

// Lookup returns the handler for kind and whether it exists.
func (r *Registry) Lookup(kind string) (*RegisteredStep, bool) {
	s, ok := r.steps[kind]
	return s, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.steps))
	for k := range r.steps {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate checks every step of every recipe against the registered
// argument schemas. All problems are reported together.
func (r *Registry) Validate(model *config.Model) error {
	var errs []error
	for _, name := range model.Order {
		recipe := model.Recipes[name]
		for i, step := range recipe.Steps {
			if err := r.validateStep(step); err != nil {
				errs = append(errs, fmt.Errorf("%s: recipe %q step %d: %w", step.Source, name, i+1, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) validateStep(step *config.Step) error {
	reg, ok := r.steps[step.Kind]
	if !ok {
		return fmt.Errorf("unknown step kind %q (known: %s)", step.Kind, strings.Join(r.Kinds(), ", "))
	}

	known := make(map[string]bool, len(reg.Args))
	var missing []string
	for _, spec := range reg.Args {
		known[spec.Name] = true
		if _, present := step.Args[spec.Name]; spec.Required && !present {
			missing = append(missing, spec.Name)
		}
	}
	var unknown []string
	for name := range step.Args {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)

	switch {
	case len(missing) > 0:
		return fmt.Errorf("%s: missing required argument(s): %s", step.Kind, strings.Join(missing, ", "))
	case len(unknown) > 0:
		return fmt.Errorf("%s: unsupported argument(s): %s", step.Kind, strings.Join(unknown, ", "))
	}
	return nil
}
