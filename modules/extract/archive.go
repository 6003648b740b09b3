package extract

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stats summarizes one extraction.
type Stats struct {
	Files int
	Bytes int64
}

// errEscapes is returned for entries that would land outside the target.
var errEscapes = errors.New("entry escapes the target directory")

// safeJoin joins an archive entry name onto dir, rejecting absolute names
// and any name that climbs out of dir.
func safeJoin(dir, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%q: %w", name, errEscapes)
	}
	target := filepath.Join(dir, filepath.FromSlash(name))
	if !within(dir, target) {
		return "", fmt.Errorf("%q: %w", name, errEscapes)
	}
	return target, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// rootDir creates dir and returns it with all symlinks resolved.
func rootDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(dir)
}

// checkTarget resolves the deepest existing parent of target on disk and
// rejects it when it lies outside root. A symlink already sitting at target
// is removed so the entry replaces it instead of writing through it.
func checkTarget(root, target string) error {
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	p := filepath.Dir(target)
	for {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			if !within(root, real) {
				return fmt.Errorf("%q: %w", target, errEscapes)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if _, lerr := os.Lstat(p); lerr == nil {
			// Dangling symlink.
			return fmt.Errorf("%q: %w", target, errEscapes)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return err
		}
		p = parent
	}
}

func extractZip(ctx context.Context, archive, dir string) (Stats, error) {
	var stats Stats
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return stats, fmt.Errorf("failed to open '%s': %w", archive, err)
	}
	defer zr.Close()
	root, err := rootDir(dir)
	if err != nil {
		return stats, err
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return stats, err
		}
		if err := checkTarget(root, target); err != nil {
			return stats, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return stats, err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return stats, fmt.Errorf("failed to open entry %q: %w", f.Name, err)
		}
		n, err := writeFile(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.Bytes += n
	}
	return stats, nil
}

func extractTar(ctx context.Context, archive, dir string, format Format) (Stats, error) {
	var stats Stats
	f, err := os.Open(archive)
	if err != nil {
		return stats, fmt.Errorf("failed to open '%s': %w", archive, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch format {
	case FormatTarGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return stats, fmt.Errorf("failed to read gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return stats, fmt.Errorf("failed to read zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	root, err := rootDir(dir)
	if err != nil {
		return stats, err
	}

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read tar entry: %w", err)
		}
		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return stats, err
		}
		if err := checkTarget(root, target); err != nil {
			return stats, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return stats, err
			}
		case tar.TypeReg:
			n, err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return stats, err
			}
			stats.Files++
			stats.Bytes += n
		case tar.TypeSymlink:
			if _, err := safeJoin(dir, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil || filepath.IsAbs(hdr.Linkname) {
				return stats, fmt.Errorf("symlink %q -> %q: %w", hdr.Name, hdr.Linkname, errEscapes)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return stats, err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return stats, err
			}
		default:
			// Devices, fifos and hard links are not needed by any archive we unpack.
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("failed to create '%s': %w", target, err)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed to write '%s': %w", target, err)
	}
	return n, nil
}
