// Package remove provides the `remove` step kind.
package remove

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnRunRemove deletes a file or a whole tree. A missing path is an error
// only when missing_ok is false.
func OnRunRemove(ctx context.Context, sc *registry.StepContext, args registry.Args) (int, error) {
	rel, err := args.String("path")
	if err != nil {
		return 1, err
	}
	missingOK, err := args.BoolOr("missing_ok", true)
	if err != nil {
		return 1, err
	}
	path := config.ResolvePath(sc.Dir, rel)
	if path == sc.Dir || path == "/" {
		return 1, fmt.Errorf("refusing to remove %q", path)
	}

	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && missingOK {
			ctxlog.FromContext(ctx).Debug("Nothing to remove.", "path", path)
			return 0, nil
		}
		return 1, fmt.Errorf("failed to stat '%s': %w", path, err)
	}
	if err := os.RemoveAll(path); err != nil {
		return 1, fmt.Errorf("failed to remove '%s': %w", path, err)
	}
	ctxlog.FromContext(ctx).Info("Removed path.", "path", path)
	return 0, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("remove", &registry.RegisteredStep{
		Description: "Remove a file or directory tree.",
		Args:        []registry.ArgSpec{{Name: "path", Required: true}, {Name: "missing_ok"}},
		Fn:          OnRunRemove,
		Describe: func(args registry.Args) string {
			p, _ := args.String("path")
			return "rm -rf " + p
		},
	})
}
