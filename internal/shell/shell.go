// Package shell runs command lines and programs on behalf of recipe steps.
//
// Two runtimes are available. Native hands the line to a host shell
// (`/bin/sh -c` by default). Virtual interprets it with the embedded POSIX
// shell from mvdan.cc/sh, which needs no host shell and behaves the same on
// every platform. Both report the exit status as an int; a non-nil error is
// only returned when the command could not be started or was interrupted.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"

	"mvdan.cc/sh/v3/syntax"
)

// Exit codes used when no process exit status is available. A child killed
// by a signal reports CodeSignalBase plus the signal number.
const (
	CodeStartFailure = 1
	CodeNotFound     = 127
	CodeInterrupted  = 130
	CodeTimeout      = 124
	CodeSignalBase   = 128
)

// Command describes one invocation.
type Command struct {
	// Line is interpreted by the shell. Ignored by Exec.
	Line string
	// Argv is executed directly, without a shell.
	Argv   []string
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runtime executes shell lines.
type Runtime interface {
	Name() string
	Run(ctx context.Context, cmd *Command) (int, error)
}

// New returns the runtime registered under name. shellPath only applies to
// the native runtime.
func New(name, shellPath string) (Runtime, error) {
	switch name {
	case "", "native":
		return NewNative(shellPath), nil
	case "virtual":
		return NewVirtual(), nil
	default:
		return nil, fmt.Errorf("unknown shell runtime %q", name)
	}
}

// Exec runs cmd.Argv directly.
func Exec(ctx context.Context, cmd *Command) (int, error) {
	if len(cmd.Argv) == 0 {
		return CodeStartFailure, errors.New("empty argv")
	}
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	return exitCode(ctx, c.Run())
}

// exitCode maps the error of exec.Cmd.Run to an exit status.
func exitCode(ctx context.Context, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return CodeInterrupted, ctx.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return CodeTimeout, ctx.Err()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return CodeSignalBase + int(ws.Signal()), nil
		}
		if ee.ExitCode() < 0 {
			return CodeStartFailure, nil
		}
		return ee.ExitCode(), nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return CodeNotFound, err
	}
	return CodeStartFailure, err
}

// QuoteArgs renders args as shell words that survive re-parsing unchanged.
func QuoteArgs(args []string) (string, error) {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		q, err := syntax.Quote(a, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote argument %q: %w", a, err)
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}

// AppendArgs appends shell-quoted args to line.
func AppendArgs(line string, args []string) (string, error) {
	if len(args) == 0 {
		return line, nil
	}
	quoted, err := QuoteArgs(args)
	if err != nil {
		return "", err
	}
	return line + " " + quoted, nil
}
