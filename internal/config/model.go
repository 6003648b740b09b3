// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"fmt"
	"path/filepath"
)

// Shell runtime names accepted in Settings.Shell.
const (
	ShellNative  = "native"
	ShellVirtual = "virtual"
)

// Settings are the file-level options of a recipe file.
type Settings struct {
	// Dotenv lists overlay files, already resolved against the directory of
	// the file that declared them.
	Dotenv []string
	// DotenvRequired turns a missing dotenv file into a load error.
	DotenvRequired bool
	Shell          string
	ShellPath      string
}

// Model is the unified representation of every recipe file loaded for one
// invocation.
type Model struct {
	Settings Settings
	Recipes  map[string]*Recipe
	// Order keeps declaration order for listing.
	Order []string
	Files []string
}

// Recipe is a named, ordered sequence of steps.
type Recipe struct {
	Name        string
	Description string
	// Env values must evaluate to strings.
	Env map[string]Expr
	// PathEnv values must evaluate to lists of strings; they are joined with
	// the OS list separator and prepended to any inherited value.
	PathEnv         map[string]Expr
	Dir             string
	ContinueOnError bool
	Steps           []*Step
	Source          string
}

// Step is one unit of a recipe. Kind selects the registered handler.
type Step struct {
	Kind   string
	Args   map[string]Expr
	Source string
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{Recipes: make(map[string]*Recipe)}
}

// Add inserts r, rejecting names that are already defined.
func (m *Model) Add(r *Recipe) error {
	if r.Name == "" {
		return fmt.Errorf("%s: recipe name must not be empty", r.Source)
	}
	if prev, exists := m.Recipes[r.Name]; exists {
		return fmt.Errorf("%s: recipe %q already defined at %s", r.Source, r.Name, prev.Source)
	}
	m.Recipes[r.Name] = r
	m.Order = append(m.Order, r.Name)
	return nil
}

// Recipe looks a recipe up by name.
func (m *Model) Recipe(name string) (*Recipe, bool) {
	r, ok := m.Recipes[name]
	return r, ok
}

// Merge folds other into m. Recipes must stay unique across files. Dotenv
// files accumulate in load order; scalar settings from later files win.
func (m *Model) Merge(other *Model) error {
	for _, name := range other.Order {
		if err := m.Add(other.Recipes[name]); err != nil {
			return err
		}
	}
	m.Settings.Dotenv = append(m.Settings.Dotenv, other.Settings.Dotenv...)
	m.Settings.DotenvRequired = m.Settings.DotenvRequired || other.Settings.DotenvRequired
	if other.Settings.Shell != "" {
		m.Settings.Shell = other.Settings.Shell
	}
	if other.Settings.ShellPath != "" {
		m.Settings.ShellPath = other.Settings.ShellPath
	}
	m.Files = append(m.Files, other.Files...)
	return nil
}

// ResolvePath anchors a relative path at base. Empty paths resolve to base.
func ResolvePath(base, path string) string {
	if path == "" {
		return base
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// ValidateShell reports whether name is a known shell runtime.
func ValidateShell(name string) error {
	switch name {
	case "", ShellNative, ShellVirtual:
		return nil
	default:
		return fmt.Errorf("unknown shell %q: must be %q or %q", name, ShellNative, ShellVirtual)
	}
}
