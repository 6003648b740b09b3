package shell

import (
	"context"
	"os/exec"
)

// DefaultShellPath is the host shell used by Native when none is configured.
const DefaultShellPath = "/bin/sh"

// Native runs lines with a host shell.
type Native struct {
	Path string
}

// NewNative returns a Native runtime using path, or DefaultShellPath.
func NewNative(path string) *Native {
	if path == "" {
		path = DefaultShellPath
	}
	return &Native{Path: path}
}

// Name implements Runtime.
func (n *Native) Name() string { return "native" }

// Run implements Runtime.
func (n *Native) Run(ctx context.Context, cmd *Command) (int, error) {
	c := exec.CommandContext(ctx, n.Path, "-c", cmd.Line)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	return exitCode(ctx, c.Run())
}
