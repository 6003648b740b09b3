package extract

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/reciperun/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

type entry struct {
	name string
	body string
	// link makes the entry a symlink (tar only).
	link string
}

var mujocoEntries = []entry{
	{name: "mujoco200_linux/bin/libmujoco200.so", body: "elf"},
	{name: "mujoco200_linux/include/mujoco.h", body: "#pragma once"},
}

func writeZip(t *testing.T, path string, entries []entry) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, e.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeTar(t *testing.T, w io.Writer, entries []entry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		if e.link != "" {
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: e.name, Mode: 0o777, Linkname: e.link, Typeflag: tar.TypeSymlink}))
			continue
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}))
		_, err := io.WriteString(tw, e.body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func writeArchive(t *testing.T, path string, entries []entry) {
	t.Helper()
	if DetectFormat(path) == FormatZip {
		writeZip(t, path, entries)
		return
	}
	var buf bytes.Buffer
	switch DetectFormat(path) {
	case FormatTar:
		writeTar(t, &buf, entries)
	case FormatTarGzip:
		gz := gzip.NewWriter(&buf)
		writeTar(t, gz, entries)
		require.NoError(t, gz.Close())
	case FormatTarZstd:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		writeTar(t, zw, entries)
		require.NoError(t, zw.Close())
	default:
		t.Fatalf("no writer for %s", path)
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestOnRunExtract_Formats(t *testing.T) {
	for _, name := range []string{"mujoco.zip", "mujoco.tar", "mujoco.tar.gz", "mujoco.tgz", "mujoco.tar.zst"} {
		t.Run(name, func(t *testing.T) {
			// --- Arrange ---
			dir := t.TempDir()
			writeArchive(t, filepath.Join(dir, name), mujocoEntries)
			sc := &registry.StepContext{Dir: dir}
			args := registry.Args{"archive": cty.StringVal(name), "dir": cty.StringVal("out/.mujoco")}

			// --- Act ---
			code, err := OnRunExtract(context.Background(), sc, args)

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, 0, code)
			for _, e := range mujocoEntries {
				data, err := os.ReadFile(filepath.Join(dir, "out", ".mujoco", filepath.FromSlash(e.name)))
				require.NoError(t, err)
				assert.Equal(t, e.body, string(data))
			}
		})
	}
}

func TestOnRunExtract_RejectsTraversal(t *testing.T) {
	for _, name := range []string{"evil.zip", "evil.tar.gz"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeArchive(t, filepath.Join(dir, name), []entry{{name: "../escaped.txt", body: "x"}})
			sc := &registry.StepContext{Dir: dir}

			code, err := OnRunExtract(context.Background(), sc, registry.Args{"archive": cty.StringVal(name), "dir": cty.StringVal("out")})

			require.Error(t, err)
			assert.ErrorIs(t, err, registry.ErrFetchFailed)
			assert.ErrorContains(t, err, "escapes the target directory")
			assert.Equal(t, 1, code)
			assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
		})
	}
}

func TestOnRunExtract_RejectsSymlinkChain(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need extra privileges on windows")
	}
	// --- Arrange ---
	// Each link looks harmless on its own; together d/x/y resolves to the
	// parent of the target directory.
	root := t.TempDir()
	writeArchive(t, filepath.Join(root, "chain.tar"), []entry{
		{name: "d/x", link: ".."},
		{name: "d/x/y", link: ".."},
		{name: "d/x/y/pwned", body: "x"},
	})
	sc := &registry.StepContext{Dir: root}

	// --- Act ---
	code, err := OnRunExtract(context.Background(), sc, registry.Args{"archive": cty.StringVal("chain.tar"), "dir": cty.StringVal("out")})

	// --- Assert ---
	require.ErrorIs(t, err, registry.ErrFetchFailed)
	assert.ErrorContains(t, err, "escapes the target directory")
	assert.Equal(t, 1, code)
	assert.NoFileExists(t, filepath.Join(root, "pwned"))
	assert.NoFileExists(t, filepath.Join(root, "out", "pwned"))
}

func TestOnRunExtract_ReplacesExistingSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need extra privileges on windows")
	}
	root := t.TempDir()
	outside := filepath.Join(root, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "out"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "out", "config.txt")))
	writeArchive(t, filepath.Join(root, "cfg.tar"), []entry{{name: "config.txt", body: "new"}})
	sc := &registry.StepContext{Dir: root}

	code, err := OnRunExtract(context.Background(), sc, registry.Args{"archive": cty.StringVal("cfg.tar"), "dir": cty.StringVal("out")})

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
	data, err = os.ReadFile(filepath.Join(root, "out", "config.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestOnRunExtract_Failures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.zip"), []byte("not a zip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.rar"), []byte("rar"), 0o644))

	for _, name := range []string{"missing.zip", "corrupt.zip", "data.rar"} {
		t.Run(name, func(t *testing.T) {
			sc := &registry.StepContext{Dir: dir}

			code, err := OnRunExtract(context.Background(), sc, registry.Args{"archive": cty.StringVal(name), "dir": cty.StringVal("out")})

			require.ErrorIs(t, err, registry.ErrFetchFailed)
			assert.Equal(t, 1, code)
		})
	}
}

func TestSafeJoin(t *testing.T) {
	dir := filepath.FromSlash("/tmp/x")

	testCases := []struct {
		name    string
		wantErr bool
	}{
		{name: "a/b.txt"},
		{name: "a/../b.txt"},
		{name: "./c"},
		{name: "../b.txt", wantErr: true},
		{name: "a/../../b.txt", wantErr: true},
		{name: "/etc/passwd", wantErr: true},
		{name: `..\win.txt`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := safeJoin(dir, tc.name)
			if tc.wantErr {
				assert.ErrorIs(t, err, errEscapes)
				return
			}
			assert.NoError(t, err)
		})
	}
}
