// Package shell provides the `shell` step kind, which hands one command
// line to the configured shell runtime.
package shell

import (
	"context"

	"github.com/vk/reciperun/internal/registry"
	rt "github.com/vk/reciperun/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnRunShell is the handler for the `shell` step kind. Pass-through
// arguments are shell-quoted and appended to the line.
func OnRunShell(ctx context.Context, sc *registry.StepContext, args registry.Args) (int, error) {
	line, err := args.String("run")
	if err != nil {
		return 1, err
	}
	line, err = rt.AppendArgs(line, sc.ExtraArgs)
	if err != nil {
		return 2, err
	}
	return sc.Shell.Run(ctx, &rt.Command{
		Line:   line,
		Dir:    sc.Dir,
		Env:    sc.Environ(),
		Stdin:  sc.Stdin,
		Stdout: sc.Stdout,
		Stderr: sc.Stderr,
	})
}

func describe(args registry.Args) string {
	line, _ := args.String("run")
	return line
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("shell", &registry.RegisteredStep{
		Description:      "Run a command line through the shell.",
		Args:             []registry.ArgSpec{{Name: "run", Required: true}},
		AcceptsExtraArgs: true,
		Fn:               OnRunShell,
		Describe:         describe,
	})
}
