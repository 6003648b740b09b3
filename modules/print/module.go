package print

import (
	"context"
	"fmt"

	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnRunPrint is the handler for the `print` step kind.
func OnRunPrint(ctx context.Context, sc *registry.StepContext, args registry.Args) (int, error) {
	message, err := args.String("message")
	if err != nil {
		return 1, err
	}
	ctxlog.FromContext(ctx).Debug("Printing message.", "bytes", len(message))

	if _, err := fmt.Fprintln(sc.Stdout, message); err != nil {
		return 1, fmt.Errorf("failed to write message: %w", err)
	}
	return 0, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("print", &registry.RegisteredStep{
		Description: "Write a message to stdout.",
		Args:        []registry.ArgSpec{{Name: "message", Required: true}},
		Fn:          OnRunPrint,
		Describe: func(args registry.Args) string {
			msg, _ := args.String("message")
			return fmt.Sprintf("print %q", msg)
		},
	})
}
