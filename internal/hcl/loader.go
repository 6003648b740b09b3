package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/dotenv"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	// environ feeds `env.*` references in file-level settings, which are
	// evaluated at load time. Defaults to os.Environ.
	environ func() []string
}

// NewLoader creates a new HCL recipe loader.
func NewLoader() *Loader {
	return &Loader{environ: os.Environ}
}

var fileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "dotenv"},
		{Name: "dotenv_required"},
		{Name: "shell"},
		{Name: "shell_path"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "recipe", LabelNames: []string{"name"}},
	},
}

var recipeSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "env"},
		{Name: "path_env"},
		{Name: "dir"},
		{Name: "continue_on_error"},
		{Name: "commands"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "step", LabelNames: []string{"kind"}},
	},
}

// Load parses every given .hcl file and merges them into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	parser := hclparse.NewParser()
	model := config.NewModel()

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}

		file, diags := parser.ParseHCLFile(abs)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
		}

		fileModel, err := l.translateFile(file, filepath.Dir(abs))
		if err != nil {
			return nil, err
		}
		fileModel.Files = []string{abs}
		if err := model.Merge(fileModel); err != nil {
			return nil, err
		}
		logger.Debug("HCL file loaded.", "file", abs, "recipes", len(fileModel.Order))
	}

	logger.Debug("HCL loading complete.", "recipes", len(model.Order), "dotenv_files", len(model.Settings.Dotenv))
	return model, nil
}

// translateFile decodes one parsed file into a model of its own.
func (l *Loader) translateFile(file *hcl.File, baseDir string) (*config.Model, error) {
	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	model := config.NewModel()
	settingsCtx := evalContext(dotenv.FromEnviron(l.environ()))

	if attr, ok := content.Attributes["dotenv"]; ok {
		files, err := staticStringList(attr, settingsCtx)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			model.Settings.Dotenv = append(model.Settings.Dotenv, config.ResolvePath(baseDir, f))
		}
	} else {
		model.Settings.Dotenv = []string{filepath.Join(baseDir, ".env")}
	}
	if attr, ok := content.Attributes["dotenv_required"]; ok {
		v, err := staticBool(attr, settingsCtx)
		if err != nil {
			return nil, err
		}
		model.Settings.DotenvRequired = v
	}
	if attr, ok := content.Attributes["shell"]; ok {
		v, err := staticString(attr, settingsCtx)
		if err != nil {
			return nil, err
		}
		if err := config.ValidateShell(v); err != nil {
			return nil, fmt.Errorf("%s: %w", source(attr.Range), err)
		}
		model.Settings.Shell = v
	}
	if attr, ok := content.Attributes["shell_path"]; ok {
		v, err := staticString(attr, settingsCtx)
		if err != nil {
			return nil, err
		}
		model.Settings.ShellPath = v
	}

	for _, block := range content.Blocks {
		recipe, err := l.translateRecipe(block, baseDir, settingsCtx)
		if err != nil {
			return nil, err
		}
		if err := model.Add(recipe); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// source formats a range as file:line.
func source(r hcl.Range) string {
	return fmt.Sprintf("%s:%d", r.Filename, r.Start.Line)
}
