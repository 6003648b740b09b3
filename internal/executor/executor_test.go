package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/reciperun/internal/config"
	"github.com/vk/reciperun/internal/registry"
	"github.com/vk/reciperun/internal/shell"
	"github.com/zclconf/go-cty/cty"
)

// recordingShell is a shell.Runtime that records every line it is asked to
// run and answers with a scripted exit code.
type recordingShell struct {
	lines []string
	envs  [][]string
	dirs  []string
	codes map[string]int
}

func (r *recordingShell) Name() string { return "recording" }

func (r *recordingShell) Run(_ context.Context, cmd *shell.Command) (int, error) {
	r.lines = append(r.lines, cmd.Line)
	r.envs = append(r.envs, cmd.Env)
	r.dirs = append(r.dirs, cmd.Dir)
	return r.codes[cmd.Line], nil
}

// testModule registers a minimal shell kind and a failing kind.
type testModule struct{}

func (testModule) Register(r *registry.Registry) {
	r.RegisterStep("shell", &registry.RegisteredStep{
		Args:             []registry.ArgSpec{{Name: "run", Required: true}},
		AcceptsExtraArgs: true,
		Fn: func(ctx context.Context, sc *registry.StepContext, args registry.Args) (int, error) {
			line, err := args.String("run")
			if err != nil {
				return 1, err
			}
			line, err = shell.AppendArgs(line, sc.ExtraArgs)
			if err != nil {
				return 1, err
			}
			return sc.Shell.Run(ctx, &shell.Command{Line: line, Dir: sc.Dir, Env: sc.Environ()})
		},
		Describe: func(args registry.Args) string {
			s, _ := args.String("run")
			return s
		},
	})
	r.RegisterStep("broken", &registry.RegisteredStep{
		Fn: func(context.Context, *registry.StepContext, registry.Args) (int, error) {
			return 0, errors.New("handler exploded")
		},
		Describe: func(registry.Args) string { return "broken" },
	})
}

func shellStep(line string) *config.Step {
	return &config.Step{Kind: "shell", Args: map[string]config.Expr{"run": config.String(line)}, Source: "test"}
}

func newModel(t *testing.T, recipes ...*config.Recipe) *config.Model {
	t.Helper()
	m := config.NewModel()
	for _, r := range recipes {
		require.NoError(t, m.Add(r))
	}
	return m
}

func newExecutor(m *config.Model, rt shell.Runtime, opts Options) (*Executor, *bytes.Buffer) {
	var stderr bytes.Buffer
	opts.Shell = rt
	opts.Stderr = &stderr
	if opts.Stdout == nil {
		opts.Stdout = &bytes.Buffer{}
	}
	if opts.Environ == nil {
		opts.Environ = []string{"PATH=/usr/bin", "HOME=/home/dev"}
	}
	return New(m, registry.New(testModule{}), opts), &stderr
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string)
	for _, e := range environ {
		k, v, _ := strings.Cut(e, "=")
		m[k] = v
	}
	return m
}

func TestRun_ExecutesStepsInDeclaredOrder(t *testing.T) {
	// --- Arrange ---
	recipes := []*config.Recipe{
		{Name: "a", Dir: "/w", Steps: []*config.Step{shellStep("a1"), shellStep("a2"), shellStep("a3")}},
		{Name: "b", Dir: "/w", Steps: []*config.Step{shellStep("b1"), shellStep("b2")}},
	}
	m := newModel(t, recipes...)

	for _, r := range recipes {
		t.Run(r.Name, func(t *testing.T) {
			rt := &recordingShell{}
			exec, stderr := newExecutor(m, rt, Options{})

			// --- Act ---
			code, err := exec.Run(context.Background(), r.Name, nil)

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, 0, code)
			var want []string
			for _, s := range r.Steps {
				v, _ := s.Args["run"].Value(nil)
				want = append(want, v.AsString())
			}
			assert.Equal(t, want, rt.lines)
			for _, line := range want {
				assert.Contains(t, stderr.String(), "+ "+line)
			}
		})
	}
}

func TestRun_UnknownRecipe(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "getdeps"}, &config.Recipe{Name: "run"})

	for _, name := range []string{"", "rn", "getdep", "deploy", "RUN", "run "} {
		t.Run(fmt.Sprintf("%q", name), func(t *testing.T) {
			rt := &recordingShell{}
			exec, _ := newExecutor(m, rt, Options{})

			code, err := exec.Run(context.Background(), name, nil)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRecipeNotFound)
			assert.NotEqual(t, 0, code)
			assert.Empty(t, rt.lines)
		})
	}
}

func TestRun_UnknownRecipeSuggestsClosest(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "getdeps"}, &config.Recipe{Name: "run"})
	exec, _ := newExecutor(m, &recordingShell{}, Options{})

	_, err := exec.Run(context.Background(), "getdep", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "getdeps"?`)
}

func TestRun_AbortsOnFirstFailure(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{shellStep("one"), shellStep("two"), shellStep("three")}})
	rt := &recordingShell{codes: map[string]int{"two": 3}}
	exec, _ := newExecutor(m, rt, Options{})

	code, err := exec.Run(context.Background(), "r", nil)

	require.Error(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, []string{"one", "two"}, rt.lines)

	var failed *CommandFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 2, failed.Step)
	assert.Equal(t, 3, failed.Code)
	assert.Equal(t, "shell", failed.Kind)
}

func TestRun_KeepGoingReportsFirstFailure(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{shellStep("one"), shellStep("two"), shellStep("three")}})
	rt := &recordingShell{codes: map[string]int{"one": 4, "two": 5}}
	exec, _ := newExecutor(m, rt, Options{KeepGoing: true})

	code, err := exec.Run(context.Background(), "r", nil)

	require.Error(t, err)
	assert.Equal(t, 4, code)
	assert.Equal(t, []string{"one", "two", "three"}, rt.lines)
}

func TestRun_RecipeContinueOnError(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", ContinueOnError: true, Steps: []*config.Step{shellStep("one"), shellStep("two")}})
	rt := &recordingShell{codes: map[string]int{"one": 1}}
	exec, _ := newExecutor(m, rt, Options{})

	code, _ := exec.Run(context.Background(), "r", nil)

	assert.Equal(t, 1, code)
	assert.Equal(t, []string{"one", "two"}, rt.lines)
}

func TestRun_HandlerErrorWithZeroCodeFails(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{{Kind: "broken"}, shellStep("after")}})
	rt := &recordingShell{}
	exec, _ := newExecutor(m, rt, Options{})

	code, err := exec.Run(context.Background(), "r", nil)

	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "handler exploded")
	assert.Empty(t, rt.lines)
}

func TestRun_EnvironmentPropagation(t *testing.T) {
	// --- Arrange ---
	m := newModel(t, &config.Recipe{
		Name: "r",
		Env: map[string]config.Expr{
			"WORK_DIR": exprFunc(func(env map[string]string) (cty.Value, error) {
				return cty.StringVal(env["HOME"] + "/log"), nil
			}),
		},
		PathEnv: map[string]config.Expr{
			"PYTHONPATH": config.Literal{V: cty.TupleVal([]cty.Value{cty.StringVal("."), cty.StringVal("lib")})},
		},
		Steps: []*config.Step{shellStep("one"), shellStep("two"), shellStep("three")},
	})
	rt := &recordingShell{}
	exec, _ := newExecutor(m, rt, Options{
		Environ: []string{"HOME=/home/dev", "PYTHONPATH=/opt/py", "SEED=0"},
		Overlay: map[string]string{"SEED": "1", "MUJOCO_GL": "egl"},
	})

	// --- Act ---
	code, err := exec.Run(context.Background(), "r", nil)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	require.Len(t, rt.envs, 3)
	sep := string(os.PathListSeparator)
	for i, environ := range rt.envs {
		env := envMap(environ)
		assert.Equal(t, "1", env["SEED"], "step %d", i+1)
		assert.Equal(t, "egl", env["MUJOCO_GL"], "step %d", i+1)
		assert.Equal(t, "/home/dev/log", env["WORK_DIR"], "step %d", i+1)
		assert.Equal(t, "."+sep+"lib"+sep+"/opt/py", env["PYTHONPATH"], "step %d", i+1)
	}
}

func TestRun_ExtraArgsGoToLastArgStep(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{shellStep("prep"), shellStep("python train.py"), {Kind: "broken"}}})
	rt := &recordingShell{}
	exec, _ := newExecutor(m, rt, Options{KeepGoing: true})

	_, _ = exec.Run(context.Background(), "r", []string{"--seed", "2"})

	require.Len(t, rt.lines, 2)
	assert.Equal(t, "prep", rt.lines[0])
	assert.Equal(t, "python train.py --seed 2", rt.lines[1])
}

func TestRun_ExtraArgsRejectedWithoutTarget(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{{Kind: "broken"}}})
	exec, _ := newExecutor(m, &recordingShell{}, Options{})

	code, err := exec.Run(context.Background(), "r", []string{"x"})

	require.ErrorIs(t, err, ErrArgsNotAccepted)
	assert.Equal(t, 2, code)
}

func TestRun_DryRunExecutesNothing(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{shellStep("rm -rf build"), shellStep("make")}})
	rt := &recordingShell{}
	exec, stderr := newExecutor(m, rt, Options{DryRun: true, Quiet: true})

	code, err := exec.Run(context.Background(), "r", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, rt.lines)
	assert.Contains(t, stderr.String(), "+ rm -rf build")
	assert.Contains(t, stderr.String(), "+ make")
}

func TestRun_QuietSuppressesEcho(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{shellStep("make")}})
	exec, stderr := newExecutor(m, &recordingShell{}, Options{Quiet: true})

	_, err := exec.Run(context.Background(), "r", nil)

	require.NoError(t, err)
	assert.Empty(t, stderr.String())
}

func TestRun_CanceledContextStopsBeforeNextStep(t *testing.T) {
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{shellStep("one")}})
	rt := &recordingShell{}
	exec, _ := newExecutor(m, rt, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, err := exec.Run(ctx, "r", nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, shell.CodeInterrupted, code)
	assert.Empty(t, rt.lines)
}

func TestRun_ArgumentEvaluationError(t *testing.T) {
	failing := exprFunc(func(map[string]string) (cty.Value, error) { return cty.NilVal, errors.New("no such variable") })
	m := newModel(t, &config.Recipe{Name: "r", Steps: []*config.Step{{Kind: "shell", Args: map[string]config.Expr{"run": failing}, Source: "recipes.hcl:9"}}})
	exec, _ := newExecutor(m, &recordingShell{}, Options{})

	code, err := exec.Run(context.Background(), "r", nil)

	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "recipes.hcl:9")
	assert.Contains(t, err.Error(), "no such variable")
}

// exprFunc adapts a function to config.Expr.
type exprFunc func(env map[string]string) (cty.Value, error)

func (f exprFunc) Value(env map[string]string) (cty.Value, error) { return f(env) }
