package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/reciperun/internal/ledger"
	"github.com/vk/reciperun/internal/registry"
	"github.com/vk/reciperun/internal/shell"
	shfields "mvdan.cc/sh/v3/shell"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// spawnRecorder is a shell.Runtime that records the argument vector of
// every command line instead of spawning it.
type spawnRecorder struct {
	mu    sync.Mutex
	argvs [][]string
	envs  [][]string
	code  int
}

func (r *spawnRecorder) Name() string { return "recorder" }

func (r *spawnRecorder) Run(_ context.Context, cmd *shell.Command) (int, error) {
	argv, err := shfields.Fields(cmd.Line, nil)
	if err != nil {
		return 2, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.argvs = append(r.argvs, argv)
	r.envs = append(r.envs, cmd.Env)
	return r.code, nil
}

// testEnv holds the collaborators a test app was built with.
type testEnv struct {
	Stdout  *SafeBuffer
	Stderr  *SafeBuffer
	History *ledger.MemoryStore
}

// writeFile writes content to dir/name and returns the full path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// SetupAppTest creates a new app instance for system testing. opts may
// override any collaborator; output streams and history are always
// captured.
func SetupAppTest(t *testing.T, cfg Config, opts Options, modules ...registry.Module) (*App, *testEnv) {
	t.Helper()

	env := &testEnv{Stdout: &SafeBuffer{}, Stderr: &SafeBuffer{}, History: ledger.NewMemoryStore()}
	opts.Stdin = &bytes.Buffer{}
	opts.Stdout = env.Stdout
	opts.Stderr = env.Stderr
	opts.History = env.History
	opts.Modules = modules
	if opts.Environ == nil {
		opts.Environ = []string{"HOME=" + t.TempDir(), "PATH=" + os.Getenv("PATH")}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}

	c, err := NewConfig(cfg)
	require.NoError(t, err)
	testApp, err := New(context.Background(), c, opts)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = testApp.Close()
		if os.Getenv("RECIPERUN_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), env.Stderr.String())
		}
	})

	return testApp, env
}
