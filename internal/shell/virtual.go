package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Virtual interprets lines with the embedded mvdan.cc/sh interpreter.
type Virtual struct {
	parser *syntax.Parser
}

// NewVirtual returns a Virtual runtime.
func NewVirtual() *Virtual {
	return &Virtual{parser: syntax.NewParser(syntax.Variant(syntax.LangBash))}
}

// Name implements Runtime.
func (v *Virtual) Name() string { return "virtual" }

// Run implements Runtime.
func (v *Virtual) Run(ctx context.Context, cmd *Command) (int, error) {
	file, err := v.parser.Parse(strings.NewReader(cmd.Line), "")
	if err != nil {
		// Same status bash reports for a syntax error.
		return 2, fmt.Errorf("parse %q: %w", cmd.Line, err)
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(cmd.Env...)),
		interp.StdIO(cmd.Stdin, cmd.Stdout, cmd.Stderr),
	}
	if cmd.Dir != "" {
		opts = append(opts, interp.Dir(cmd.Dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return CodeStartFailure, err
	}

	err = runner.Run(ctx, file)
	if err == nil {
		return 0, nil
	}
	var status interp.ExitStatus
	if errors.As(err, &status) {
		if ctx.Err() != nil {
			return CodeInterrupted, ctx.Err()
		}
		return int(status), nil
	}
	if ctx.Err() != nil {
		return CodeInterrupted, ctx.Err()
	}
	return CodeStartFailure, err
}
