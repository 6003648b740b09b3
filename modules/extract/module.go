// Package extract provides the `extract` step kind, which unpacks zip and
// tar archives.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Format identifies an archive layout.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatTarGzip
	FormatTarZstd
)

// DetectFormat picks the archive format from the file name.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGzip
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZstd
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	default:
		return FormatUnknown
	}
}

// OnRunExtract unpacks archive into dir. Failures are reported with exit
// code 1 and wrap registry.ErrFetchFailed.
func OnRunExtract(ctx context.Context, sc *registry.StepContext, args registry.Args) (int, error) {
	archiveArg, err := args.String("archive")
	if err != nil {
		return 1, err
	}
	dirArg, err := args.String("dir")
	if err != nil {
		return 1, err
	}
	archive := config.ResolvePath(sc.Dir, archiveArg)
	dir := config.ResolvePath(sc.Dir, dirArg)
	logger := ctxlog.FromContext(ctx).With("archive", archive, "dir", dir)

	var stats Stats
	switch DetectFormat(archive) {
	case FormatZip:
		stats, err = extractZip(ctx, archive, dir)
	case FormatTar, FormatTarGzip, FormatTarZstd:
		stats, err = extractTar(ctx, archive, dir, DetectFormat(archive))
	default:
		err = fmt.Errorf("unsupported archive format for '%s'", archive)
	}
	if err != nil {
		return 1, fmt.Errorf("%w: %v", registry.ErrFetchFailed, err)
	}

	logger.Info("📦 Archive extracted.", "files", stats.Files, "size", humanize.Bytes(uint64(stats.Bytes)))
	return 0, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("extract", &registry.RegisteredStep{
		Description: "Unpack a zip or tar archive into a directory.",
		Args:        []registry.ArgSpec{{Name: "archive", Required: true}, {Name: "dir", Required: true}},
		Fn:          OnRunExtract,
		Describe: func(args registry.Args) string {
			a, _ := args.String("archive")
			d, _ := args.String("dir")
			return fmt.Sprintf("extract %s -> %s", a, d)
		},
	})
}
