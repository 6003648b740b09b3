// Package testutil provides an end-to-end harness that runs the reciperun
// command against recipe files written to a temporary directory.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/reciperun/internal/app"
	"github.com/vk/reciperun/internal/cli"
	"github.com/vk/reciperun/internal/ledger"
	"github.com/vk/reciperun/internal/shell"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Stdout string
	Stderr string
	// Code is the process exit code the command would terminate with.
	Code int
	Err  error
	// Dir is the temporary directory holding the recipe files.
	Dir     string
	History *ledger.MemoryStore
}

// Options tune a harness run.
type Options struct {
	// Environ defaults to HOME pointing into Dir.
	Environ    []string
	HTTPClient *http.Client
	// Shell defaults to the virtual runtime.
	Shell shell.Runtime
}

// RunCLI writes files into a fresh directory and runs the command with
// `-f <dir>` followed by args.
func RunCLI(t *testing.T, files map[string]string, args ...string) *HarnessResult {
	t.Helper()
	return RunCLIWithOptions(context.Background(), t, files, Options{}, args...)
}

// RunCLIWithOptions is RunCLI with a caller-provided context and options.
func RunCLIWithOptions(ctx context.Context, t *testing.T, files map[string]string, opts Options, args ...string) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	if opts.Environ == nil {
		opts.Environ = []string{"HOME=" + filepath.Join(dir, "home"), "PATH=" + os.Getenv("PATH")}
	}
	if opts.Shell == nil {
		opts.Shell = shell.NewVirtual()
	}

	stdout, stderr := &SafeBuffer{}, &SafeBuffer{}
	history := ledger.NewMemoryStore()
	cmd := cli.NewRootCmd(stdout, stderr, app.Options{
		Environ:    opts.Environ,
		Shell:      opts.Shell,
		HTTPClient: opts.HTTPClient,
		History:    history,
	})
	cmd.SetArgs(append([]string{"-f", dir}, args...))
	err := cmd.ExecuteContext(ctx)

	if os.Getenv("RECIPERUN_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), stderr.String())
	}

	return &HarnessResult{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Code:    exitCode(err),
		Err:     err,
		Dir:     dir,
		History: history,
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
