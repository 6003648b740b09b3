package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/vk/reciperun/internal/ctxlog"
	"github.com/vk/reciperun/internal/executor"
	"github.com/vk/reciperun/internal/ledger"
)

var (
	nameColor   = color.New(color.FgCyan, color.Bold)
	failedColor = color.New(color.FgRed)
)

// Run executes the named recipe and returns the exit code the process
// should terminate with.
func (a *App) Run(ctx context.Context, name string, args []string) (int, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "recipe", name)

	exec := executor.New(a.model, a.registry, executor.Options{
		KeepGoing:  a.cfg.KeepGoing,
		DryRun:     a.cfg.DryRun,
		Quiet:      a.cfg.Quiet,
		Environ:    a.environ,
		Overlay:    a.overlay,
		Shell:      a.shell,
		HTTPClient: a.httpClient,
		Stdin:      a.stdin,
		Stdout:     a.stdout,
		Stderr:     a.stderr,
	})

	entry := ledger.NewEntry(name, args, time.Now())
	code, err := exec.Run(ctx, name, args)
	entry.Finish(code, err, time.Now())

	if !a.cfg.DryRun && !errors.Is(err, executor.ErrRecipeNotFound) {
		a.record(context.WithoutCancel(ctx), entry)
	}
	a.logger.Debug("App.Run method finished.", "code", code)
	return code, err
}

// record stores entry in the history. Failures are logged, never returned.
func (a *App) record(ctx context.Context, entry ledger.Entry) {
	if err := a.history.Init(ctx); err != nil {
		a.logger.Warn("Run history unavailable.", "error", err)
		return
	}
	if err := a.history.Record(ctx, entry); err != nil {
		a.logger.Warn("Failed to record run.", "id", entry.ID, "error", err)
	}
}

// List writes the recipe names with their descriptions, in file order.
func (a *App) List(w io.Writer) error {
	width := 0
	for _, name := range a.model.Order {
		width = max(width, len(name))
	}
	for _, name := range a.model.Order {
		r := a.model.Recipes[name]
		padded := fmt.Sprintf("%-*s", width, name)
		line := nameColor.Sprint(padded)
		if r.Description != "" {
			line += "  " + r.Description
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// History writes the latest limit runs, newest first.
func (a *App) History(ctx context.Context, w io.Writer, limit int) error {
	if err := a.history.Init(ctx); err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	entries, err := a.history.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}
	for _, e := range entries {
		status := fmt.Sprintf("exit %d", e.ExitCode)
		if e.ExitCode != 0 {
			status = failedColor.Sprint(status)
		}
		_, err := fmt.Fprintf(w, "%-16s %-8s %-10s %s\n",
			humanize.Time(e.StartedAt), status, e.Duration.Round(time.Millisecond), e.Command())
		if err != nil {
			return err
		}
	}
	return nil
}
