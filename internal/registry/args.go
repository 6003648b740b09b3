package registry

import (
	"fmt"
	"sort"

	"github.com/vk/reciperun/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// Args are the evaluated arguments of one step.
type Args map[string]cty.Value

// EvalArgs evaluates every argument of step against env.
func EvalArgs(step *config.Step, env map[string]string) (Args, error) {
	names := make([]string, 0, len(step.Args))
	for name := range step.Args {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make(Args, len(step.Args))
	for _, name := range names {
		v, err := step.Args[name].Value(env)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		args[name] = v
	}
	return args, nil
}

// Has reports whether name was set to a non-null value.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && !v.IsNull()
}

// String returns a required string argument.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok {
		return "", fmt.Errorf("argument %q is required", name)
	}
	s, err := config.AsString(v)
	if err != nil {
		return "", fmt.Errorf("argument %q: %w", name, err)
	}
	return s, nil
}

// StringOr returns an optional string argument.
func (a Args) StringOr(name, def string) (string, error) {
	if !a.Has(name) {
		return def, nil
	}
	return a.String(name)
}

// StringList returns a required list-of-strings argument.
func (a Args) StringList(name string) ([]string, error) {
	v, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("argument %q is required", name)
	}
	list, err := config.AsStringList(v)
	if err != nil {
		return nil, fmt.Errorf("argument %q: %w", name, err)
	}
	return list, nil
}

// StringListOr returns an optional list-of-strings argument.
func (a Args) StringListOr(name string, def []string) ([]string, error) {
	if !a.Has(name) {
		return def, nil
	}
	return a.StringList(name)
}

// BoolOr returns an optional bool argument.
func (a Args) BoolOr(name string, def bool) (bool, error) {
	if !a.Has(name) {
		return def, nil
	}
	b, err := config.AsBool(a[name])
	if err != nil {
		return false, fmt.Errorf("argument %q: %w", name, err)
	}
	return b, nil
}
