// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultRecipeFiles are probed, in order, when no recipe file is given.
var DefaultRecipeFiles = []string{"recipes.hcl", "recipes.yaml", "recipes.yml"}

// RecipeExtensions are the file extensions recognized as recipe files.
var RecipeExtensions = []string{".hcl", ".yaml", ".yml"}

// FindFilesByExtension recursively searches the given root path for all files ending
// with one of the specified extensions. Results are sorted so that merging
// several files is deterministic.
func FindFilesByExtension(rootPath string, extensions ...string) ([]string, error) {
	if len(extensions) == 0 {
		panic("at least one extension is required")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, ext := range extensions {
			if strings.HasSuffix(d.Name(), ext) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// FindRecipeFiles expands path into the list of recipe files it denotes. An
// empty path probes DefaultRecipeFiles in dir.
func FindRecipeFiles(dir, path string) ([]string, error) {
	if path == "" {
		for _, name := range DefaultRecipeFiles {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return []string{candidate}, nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error accessing %s: %w", candidate, err)
			}
		}
		return nil, fmt.Errorf("no recipe file found in %s (looked for %s)", dir, strings.Join(DefaultRecipeFiles, ", "))
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing recipe path %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := FindFilesByExtension(path, RecipeExtensions...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no recipe files found under %s", path)
	}
	return files, nil
}
