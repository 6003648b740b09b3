package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPath is the history database location, relative to the directory
// of the first recipe file.
const DefaultPath = ".reciperun/history.db"

// Entry is the record of one recipe run.
type Entry struct {
	ID        string
	Recipe    string
	Args      []string
	StartedAt time.Time
	Duration  time.Duration
	ExitCode  int
	// Error is the failure message, empty for successful runs.
	Error string
}

// NewEntry starts an entry for recipe with a fresh ID.
func NewEntry(recipe string, args []string, startedAt time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Recipe:    recipe,
		Args:      append([]string(nil), args...),
		StartedAt: startedAt.UTC(),
	}
}

// Finish fills in the outcome of the run.
func (e *Entry) Finish(code int, err error, now time.Time) {
	e.Duration = now.Sub(e.StartedAt)
	e.ExitCode = code
	if err != nil {
		e.Error = err.Error()
	}
}

// Command renders the invocation the entry records.
func (e Entry) Command() string {
	return strings.TrimSpace(e.Recipe + " " + strings.Join(e.Args, " "))
}

// Store persists run entries.
type Store interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
