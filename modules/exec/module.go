// Package exec provides the `exec` step kind, which starts a program
// directly from an argument vector without any shell in between.
package exec

import (
	"context"
	"errors"
	"strings"

	"github.com/vk/reciperun/internal/registry"
	"github.com/vk/reciperun/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnRunExec is the handler for the `exec` step kind. Pass-through arguments
// are appended to argv unchanged.
func OnRunExec(ctx context.Context, sc *registry.StepContext, args registry.Args) (int, error) {
	argv, err := args.StringList("argv")
	if err != nil {
		return 1, err
	}
	if len(argv) == 0 {
		return 1, errors.New("argv must not be empty")
	}
	argv = append(argv[:len(argv):len(argv)], sc.ExtraArgs...)

	return shell.Exec(ctx, &shell.Command{
		Argv:   argv,
		Dir:    sc.Dir,
		Env:    sc.Environ(),
		Stdin:  sc.Stdin,
		Stdout: sc.Stdout,
		Stderr: sc.Stderr,
	})
}

func describe(args registry.Args) string {
	argv, err := args.StringList("argv")
	if err != nil {
		return "exec"
	}
	if quoted, err := shell.QuoteArgs(argv); err == nil {
		return quoted
	}
	return strings.Join(argv, " ")
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("exec", &registry.RegisteredStep{
		Description:      "Start a program directly, without a shell.",
		Args:             []registry.ArgSpec{{Name: "argv", Required: true}},
		AcceptsExtraArgs: true,
		Fn:               OnRunExec,
		Describe:         describe,
	})
}
