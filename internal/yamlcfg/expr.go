package yamlcfg

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"mvdan.cc/sh/v3/shell"
)

// expr adapts a decoded YAML value to config.Expr. Strings are expanded
// unless verbatim is set.
type expr struct {
	raw      any
	verbatim bool
}

// Value implements config.Expr.
func (x expr) Value(env map[string]string) (cty.Value, error) {
	lookup := func(name string) string { return env[name] }
	return toCty(x.raw, lookup, x.verbatim)
}

func toCty(v any, lookup func(string) string, verbatim bool) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		if verbatim {
			return cty.StringVal(t), nil
		}
		s, err := shell.Expand(t, lookup)
		if err != nil {
			return cty.NilVal, fmt.Errorf("expanding %q: %w", t, err)
		}
		return cty.StringVal(s), nil
	case bool:
		return cty.BoolVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case uint64:
		return cty.NumberUIntVal(t), nil
	case float64:
		return cty.NumberFloatVal(t), nil
	case []any:
		if len(t) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(t))
		for i, el := range t {
			cv, err := toCty(el, lookup, verbatim)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = cv
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(t) == 0 {
			return cty.EmptyObjectVal, nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make(map[string]cty.Value, len(t))
		for _, k := range keys {
			cv, err := toCty(t[k], lookup, verbatim)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported YAML value of type %T", v)
	}
}
