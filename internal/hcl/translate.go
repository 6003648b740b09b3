package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/reciperun/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// translateRecipe converts a `recipe` block into the agnostic model.
func (l *Loader) translateRecipe(block *hcl.Block, baseDir string, staticCtx *hcl.EvalContext) (*config.Recipe, error) {
	content, diags := block.Body.Content(recipeSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	r := &config.Recipe{
		Name:    block.Labels[0],
		Env:     make(map[string]config.Expr),
		PathEnv: make(map[string]config.Expr),
		Dir:     baseDir,
		Source:  source(block.DefRange),
	}

	if attr, ok := content.Attributes["description"]; ok {
		v, err := staticString(attr, staticCtx)
		if err != nil {
			return nil, err
		}
		r.Description = v
	}
	if attr, ok := content.Attributes["dir"]; ok {
		v, err := staticString(attr, staticCtx)
		if err != nil {
			return nil, err
		}
		r.Dir = config.ResolvePath(baseDir, v)
	}
	if attr, ok := content.Attributes["continue_on_error"]; ok {
		v, err := staticBool(attr, staticCtx)
		if err != nil {
			return nil, err
		}
		r.ContinueOnError = v
	}
	if attr, ok := content.Attributes["env"]; ok {
		if err := translateMap(attr, r.Env); err != nil {
			return nil, err
		}
	}
	if attr, ok := content.Attributes["path_env"]; ok {
		if err := translateMap(attr, r.PathEnv); err != nil {
			return nil, err
		}
	}

	attr, hasCommands := content.Attributes["commands"]
	if hasCommands && len(content.Blocks) > 0 {
		return nil, fmt.Errorf("%s: recipe %q: use either commands or step blocks, not both", r.Source, r.Name)
	}
	if hasCommands {
		items, diags := hcl.ExprList(attr.Expr)
		if diags.HasErrors() {
			return nil, diags
		}
		for _, item := range items {
			r.Steps = append(r.Steps, &config.Step{
				Kind:   "shell",
				Args:   map[string]config.Expr{"run": expr{e: item}},
				Source: source(item.Range()),
			})
		}
	}

	for _, sb := range content.Blocks {
		step, err := translateStep(sb)
		if err != nil {
			return nil, err
		}
		r.Steps = append(r.Steps, step)
	}
	return r, nil
}

// translateStep converts a `step "<kind>"` block. Its attributes stay
// unevaluated until the step runs.
func translateStep(block *hcl.Block) (*config.Step, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	step := &config.Step{
		Kind:   block.Labels[0],
		Args:   make(map[string]config.Expr, len(attrs)),
		Source: source(block.DefRange),
	}
	for name, attr := range attrs {
		step.Args[name] = expr{e: attr.Expr}
	}
	return step, nil
}

// translateMap splits an object constructor into per-key deferred
// expressions. Keys must be static.
func translateMap(attr *hcl.Attribute, into map[string]config.Expr) error {
	pairs, diags := hcl.ExprMap(attr.Expr)
	if diags.HasErrors() {
		return diags
	}
	for _, pair := range pairs {
		key, diags := pair.Key.Value(nil)
		if diags.HasErrors() {
			return diags
		}
		name, err := config.AsString(key)
		if err != nil {
			return fmt.Errorf("%s: %q key: %w", source(pair.Key.Range()), attr.Name, err)
		}
		into[name] = expr{e: pair.Value}
	}
	return nil
}

func staticValue(attr *hcl.Attribute, ctx *hcl.EvalContext) (cty.Value, error) {
	v, diags := attr.Expr.Value(ctx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return v, nil
}

func staticString(attr *hcl.Attribute, ctx *hcl.EvalContext) (string, error) {
	v, err := staticValue(attr, ctx)
	if err != nil {
		return "", err
	}
	s, err := config.AsString(v)
	if err != nil {
		return "", fmt.Errorf("%s: %q: %w", source(attr.Range), attr.Name, err)
	}
	return s, nil
}

func staticBool(attr *hcl.Attribute, ctx *hcl.EvalContext) (bool, error) {
	v, err := staticValue(attr, ctx)
	if err != nil {
		return false, err
	}
	b, err := config.AsBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %q: %w", source(attr.Range), attr.Name, err)
	}
	return b, nil
}

func staticStringList(attr *hcl.Attribute, ctx *hcl.EvalContext) ([]string, error) {
	v, err := staticValue(attr, ctx)
	if err != nil {
		return nil, err
	}
	list, err := config.AsStringList(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q: %w", source(attr.Range), attr.Name, err)
	}
	return list, nil
}
