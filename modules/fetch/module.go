// Package fetch provides the `fetch` step kind, which downloads a URL to a
// local file.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// defaultDest saves the download under its URL name in the working directory.
const defaultDest = "./"

// OnRunFetch downloads url to dest. Every failure is reported with exit
// code 1 and wraps registry.ErrFetchFailed. The body is written to a
// temporary file next to dest and renamed into place, so an interrupted
// download never leaves a truncated dest behind.
func OnRunFetch(ctx context.Context, sc *registry.StepContext, args registry.Args) (int, error) {
	url, err := args.String("url")
	if err != nil {
		return 1, err
	}
	rel, err := args.StringOr("dest", defaultDest)
	if err != nil {
		return 1, err
	}
	dest := destination(sc.Dir, rel, url)
	logger := ctxlog.FromContext(ctx).With("url", url, "dest", dest)

	client := sc.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1, fmt.Errorf("%w: failed to create request: %v", registry.ErrFetchFailed, err)
	}

	logger.Info("⬇️ Downloading.")
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 1, fmt.Errorf("%w: %v", registry.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 1, fmt.Errorf("%w: GET %s: %s", registry.ErrFetchFailed, url, resp.Status)
	}

	n, err := writeAtomic(dest, resp.Body)
	if err != nil {
		return 1, fmt.Errorf("%w: %v", registry.ErrFetchFailed, err)
	}

	logger.Info("Download complete.", "size", humanize.Bytes(uint64(n)), "elapsed", time.Since(start).Round(time.Millisecond))
	return 0, nil
}

// destination resolves dest against dir. A dest naming an existing
// directory, or ending in a separator, receives the last URL path element.
func destination(dir, dest, url string) string {
	resolved := config.ResolvePath(dir, dest)
	isDir := strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(filepath.Separator))
	if !isDir {
		if fi, err := os.Stat(resolved); err == nil && fi.IsDir() {
			isDir = true
		}
	}
	if !isDir {
		return resolved
	}
	name := path.Base(strings.SplitN(strings.SplitN(url, "?", 2)[0], "#", 2)[0])
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	return filepath.Join(resolved, name)
}

func writeAtomic(dest string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for '%s': %w", dest, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return n, fmt.Errorf("failed to read response body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to write '%s': %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return n, fmt.Errorf("failed to move download into place: %w", err)
	}
	return n, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("fetch", &registry.RegisteredStep{
		Description: "Download a URL to a local file.",
		Args:        []registry.ArgSpec{{Name: "url", Required: true}, {Name: "dest"}},
		Fn:          OnRunFetch,
		Describe: func(args registry.Args) string {
			url, _ := args.String("url")
			dest, _ := args.StringOr("dest", defaultDest)
			return fmt.Sprintf("fetch %s -> %s", url, dest)
		},
	})
}
