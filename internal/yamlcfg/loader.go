// Package yamlcfg implements config.Loader for YAML recipe files.
//
// String values are expanded with shell parameter syntax ($NAME, ${NAME},
// ${NAME:-default}) against the invocation environment when a step runs.
// Shell command lines are the exception: they reach the shell verbatim and
// the shell expands them with the same environment.
package yamlcfg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/ctxlog"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML recipe loader.
func NewLoader() *Loader {
	return &Loader{}
}

type fileDoc struct {
	Dotenv         *[]string `yaml:"dotenv"`
	DotenvRequired bool      `yaml:"dotenv_required"`
	Shell          string    `yaml:"shell"`
	ShellPath      string    `yaml:"shell_path"`
	Recipes        yaml.Node `yaml:"recipes"`
}

type recipeDoc struct {
	Description     string              `yaml:"description"`
	Env             map[string]string   `yaml:"env"`
	PathEnv         map[string][]string `yaml:"path_env"`
	Dir             string              `yaml:"dir"`
	ContinueOnError bool                `yaml:"continue_on_error"`
	Commands        []string            `yaml:"commands"`
	Steps           []yaml.Node         `yaml:"steps"`
}

// Load parses every given YAML file and merges them into one model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	model := config.NewModel()
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file %s: %w", path, err)
		}

		fileModel, err := translateFile(data, abs)
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
		}
		if err := model.Merge(fileModel); err != nil {
			return nil, err
		}
		logger.Debug("YAML file loaded.", "file", abs, "recipes", len(fileModel.Order))
	}
	return model, nil
}

func translateFile(data []byte, file string) (*config.Model, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(file)
	model := config.NewModel()
	model.Files = []string{file}

	if doc.Dotenv == nil {
		model.Settings.Dotenv = []string{filepath.Join(baseDir, ".env")}
	} else {
		for _, f := range *doc.Dotenv {
			expanded, err := shell.Expand(f, os.Getenv)
			if err != nil {
				return nil, fmt.Errorf("dotenv %q: %w", f, err)
			}
			model.Settings.Dotenv = append(model.Settings.Dotenv, config.ResolvePath(baseDir, expanded))
		}
	}
	if err := config.ValidateShell(doc.Shell); err != nil {
		return nil, err
	}
	model.Settings.DotenvRequired = doc.DotenvRequired
	model.Settings.Shell = doc.Shell
	model.Settings.ShellPath = doc.ShellPath

	if doc.Recipes.Kind == 0 {
		return model, nil
	}
	if doc.Recipes.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s:%d: recipes must be a mapping", file, doc.Recipes.Line)
	}
	// Content alternates key and value nodes; walking it keeps file order.
	for i := 0; i+1 < len(doc.Recipes.Content); i += 2 {
		keyNode, valNode := doc.Recipes.Content[i], doc.Recipes.Content[i+1]
		recipe, err := translateRecipe(keyNode, valNode, file, baseDir)
		if err != nil {
			return nil, err
		}
		if err := model.Add(recipe); err != nil {
			return nil, err
		}
	}
	return model, nil
}

func translateRecipe(keyNode, valNode *yaml.Node, file, baseDir string) (*config.Recipe, error) {
	var rd recipeDoc
	if err := valNode.Decode(&rd); err != nil {
		return nil, fmt.Errorf("recipe %q: %w", keyNode.Value, err)
	}

	r := &config.Recipe{
		Name:            keyNode.Value,
		Description:     rd.Description,
		Env:             make(map[string]config.Expr, len(rd.Env)),
		PathEnv:         make(map[string]config.Expr, len(rd.PathEnv)),
		Dir:             config.ResolvePath(baseDir, rd.Dir),
		ContinueOnError: rd.ContinueOnError,
		Source:          fmt.Sprintf("%s:%d", file, keyNode.Line),
	}
	for k, v := range rd.Env {
		r.Env[k] = expr{raw: v}
	}
	for k, v := range rd.PathEnv {
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		r.PathEnv[k] = expr{raw: items}
	}

	if len(rd.Commands) > 0 && len(rd.Steps) > 0 {
		return nil, fmt.Errorf("%s: recipe %q: use either commands or steps, not both", r.Source, r.Name)
	}
	for i, line := range rd.Commands {
		r.Steps = append(r.Steps, &config.Step{
			Kind:   "shell",
			Args:   map[string]config.Expr{"run": expr{raw: line, verbatim: true}},
			Source: fmt.Sprintf("%s#commands[%d]", r.Source, i),
		})
	}
	for i := range rd.Steps {
		step, err := translateStep(&rd.Steps[i], file)
		if err != nil {
			return nil, fmt.Errorf("recipe %q: %w", r.Name, err)
		}
		r.Steps = append(r.Steps, step)
	}
	return r, nil
}

// translateStep decodes a single-key mapping `{kind: {args}}`.
func translateStep(node *yaml.Node, file string) (*config.Step, error) {
	src := fmt.Sprintf("%s:%d", file, node.Line)
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, fmt.Errorf("%s: a step must be a mapping with exactly one key naming its kind", src)
	}

	var args map[string]any
	if err := node.Content[1].Decode(&args); err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	step := &config.Step{
		Kind:   node.Content[0].Value,
		Args:   make(map[string]config.Expr, len(args)),
		Source: src,
	}
	for name, raw := range args {
		step.Args[name] = expr{raw: raw, verbatim: step.Kind == "shell" && name == "run"}
	}
	return step, nil
}
