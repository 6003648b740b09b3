// Package env provides the `env` step kind, which prints the effective step
// environment.
package env

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/reciperun/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnRunEnv prints KEY=value lines for the requested keys, or for every
// variable when no keys are given. Missing keys are skipped.
func OnRunEnv(ctx context.Context, sc *registry.StepContext, args registry.Args) (int, error) {
	keys, err := args.StringListOr("keys", nil)
	if err != nil {
		return 1, err
	}
	if keys == nil {
		for k := range sc.Env {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v, ok := sc.Env[k]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	if _, err := fmt.Fprint(sc.Stdout, b.String()); err != nil {
		return 1, fmt.Errorf("failed to write environment: %w", err)
	}
	return 0, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("env", &registry.RegisteredStep{
		Description: "Print the effective environment.",
		Args:        []registry.ArgSpec{{Name: "keys"}},
		Fn:          OnRunEnv,
		Describe: func(args registry.Args) string {
			keys, _ := args.StringListOr("keys", nil)
			return strings.TrimSpace("env " + strings.Join(keys, " "))
		},
	})
}
