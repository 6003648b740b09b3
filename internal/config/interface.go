// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Loader is the interface for a format-specific recipe file loader.
type Loader interface {
	// Load parses the given files and translates them into the
	// format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Expr is an argument whose value is computed from the environment of the
// invocation at the moment the step runs.
type Expr interface {
	Value(env map[string]string) (cty.Value, error)
}

// Literal is an Expr with a fixed value.
type Literal struct {
	V cty.Value
}

// Value implements Expr.
func (l Literal) Value(map[string]string) (cty.Value, error) {
	return l.V, nil
}

// String returns a literal string Expr.
func String(s string) Expr {
	return Literal{V: cty.StringVal(s)}
}

// AsString converts v to a Go string.
func AsString(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", fmt.Errorf("value must not be null")
	}
	if !v.IsWhollyKnown() {
		return "", fmt.Errorf("value is not known")
	}
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("expected a string: %w", err)
	}
	return sv.AsString(), nil
}

// AsStringList converts a list, set or tuple value to a slice of strings.
func AsStringList(v cty.Value) ([]string, error) {
	if v.IsNull() {
		return nil, fmt.Errorf("value must not be null")
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	lv, err := convert.Convert(v, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("expected a list of strings: %w", err)
	}
	if lv.LengthInt() == 0 {
		return []string{}, nil
	}
	out := make([]string, 0, lv.LengthInt())
	for i, el := range lv.AsValueSlice() {
		if el.IsNull() {
			return nil, fmt.Errorf("element %d must not be null", i)
		}
		out = append(out, el.AsString())
	}
	return out, nil
}

// AsBool converts v to a Go bool.
func AsBool(v cty.Value) (bool, error) {
	if v.IsNull() {
		return false, fmt.Errorf("value must not be null")
	}
	bv, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("expected a bool: %w", err)
	}
	return bv.True(), nil
}
