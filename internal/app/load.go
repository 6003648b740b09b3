package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/hcl"
	"github.com/vk/reciperun/internal/yamlcfg"
)

// loaderFor picks the loader for a recipe file by its extension.
func loaderFor(path string) (config.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return hcl.NewLoader(), nil
	case ".yaml", ".yml":
		return yamlcfg.NewLoader(), nil
	default:
		return nil, fmt.Errorf("unsupported recipe file %q: expected .hcl, .yaml or .yml", path)
	}
}

// loadModel loads every file with its own loader and merges the results in
// the order given.
func loadModel(ctx context.Context, files []string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	model := config.NewModel()
	for _, f := range files {
		loader, err := loaderFor(f)
		if err != nil {
			return nil, err
		}
		m, err := loader.Load(ctx, f)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(m); err != nil {
			return nil, err
		}
		logger.Debug("Recipe file loaded.", "file", f, "recipes", len(m.Order))
	}
	return model, nil
}
