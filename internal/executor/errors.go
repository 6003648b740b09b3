package executor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agext/levenshtein"
	"github.com/vk/reciperun/internal/registry"
)

var (
	// ErrRecipeNotFound is returned for names missing from the recipe table.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrArgsNotAccepted is returned when pass-through arguments are given
	// to a recipe without a shell or exec step.
	ErrArgsNotAccepted = errors.New("recipe does not accept arguments")
	// ErrFetchFailed is re-exported so callers need only this package.
	ErrFetchFailed = registry.ErrFetchFailed
)

// CommandFailedError reports a step that exited non-zero.
type CommandFailedError struct {
	Recipe string
	// Step is the one-based position of the failing step.
	Step int
	Kind string
	Code int
	Err  error
}

// Error implements the error interface.
func (e *CommandFailedError) Error() string {
	msg := fmt.Sprintf("recipe %q: step %d (%s) failed with exit code %d", e.Recipe, e.Step, e.Kind, e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *CommandFailedError) Unwrap() error {
	return e.Err
}

// recipeNotFound builds the ErrRecipeNotFound error, suggesting the closest
// known name when one is near enough to be a typo.
func recipeNotFound(name string, known []string) error {
	if s := suggest(name, known); s != "" {
		return fmt.Errorf("%w: %q (did you mean %q?)", ErrRecipeNotFound, name, s)
	}
	return fmt.Errorf("%w: %q", ErrRecipeNotFound, name)
}

func suggest(name string, known []string) string {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)

	best, bestDist := "", 3
	for _, k := range sorted {
		if d := levenshtein.Distance(name, k, nil); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}
