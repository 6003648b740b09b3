package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/reciperun/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// writeHCL writes content to dir/name and returns the full path.
func writeHCL(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestLoader(environ ...string) *Loader {
	return &Loader{environ: func() []string { return environ }}
}

func evalString(t *testing.T, e config.Expr, env map[string]string) string {
	t.Helper()
	v, err := e.Value(env)
	require.NoError(t, err)
	s, err := config.AsString(v)
	require.NoError(t, err)
	return s
}

func TestLoad_CommandsAndSteps(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	path := writeHCL(t, dir, "recipes.hcl", `
dotenv = [".env", "secrets.env"]
shell  = "virtual"

recipe "getdeps" {
  description = "Fetch the simulator"
  step "fetch" {
    url  = "https://example.com/mujoco.zip"
    dest = "mujoco.zip"
  }
  step "extract" {
    archive = "mujoco.zip"
    dir     = "${env.HOME}/.mujoco"
  }
  step "remove" {
    path = "mujoco.zip"
  }
}

recipe "run" {
  dir      = "work"
  env      = { MUJOCO_GL = "egl", TAG = upper(env.USER) }
  path_env = { PYTHONPATH = [".", "lib"] }
  commands = [
    "echo one",
    "python train.py --seed ${env.SEED}",
  ]
}
`)

	// --- Act ---
	model, err := newTestLoader().Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"getdeps", "run"}, model.Order)
	assert.Equal(t, []string{filepath.Join(dir, ".env"), filepath.Join(dir, "secrets.env")}, model.Settings.Dotenv)
	assert.Equal(t, config.ShellVirtual, model.Settings.Shell)

	getdeps, ok := model.Recipe("getdeps")
	require.True(t, ok)
	assert.Equal(t, "Fetch the simulator", getdeps.Description)
	assert.Equal(t, dir, getdeps.Dir)
	require.Len(t, getdeps.Steps, 3)
	assert.Equal(t, "fetch", getdeps.Steps[0].Kind)
	assert.Equal(t, "extract", getdeps.Steps[1].Kind)
	assert.Equal(t, "remove", getdeps.Steps[2].Kind)
	assert.Equal(t, "/home/dev/.mujoco", evalString(t, getdeps.Steps[1].Args["dir"], map[string]string{"HOME": "/home/dev"}))
	assert.Contains(t, getdeps.Steps[0].Source, "recipes.hcl:")

	run, ok := model.Recipe("run")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "work"), run.Dir)
	require.Len(t, run.Steps, 2)
	assert.Equal(t, "shell", run.Steps[0].Kind)
	assert.Equal(t, "echo one", evalString(t, run.Steps[0].Args["run"], nil))
	assert.Equal(t, "python train.py --seed 1", evalString(t, run.Steps[1].Args["run"], map[string]string{"SEED": "1"}))
	assert.Equal(t, "egl", evalString(t, run.Env["MUJOCO_GL"], nil))
	assert.Equal(t, "DEV", evalString(t, run.Env["TAG"], map[string]string{"USER": "dev"}))

	pv, err := run.PathEnv["PYTHONPATH"].Value(nil)
	require.NoError(t, err)
	list, err := config.AsStringList(pv)
	require.NoError(t, err)
	assert.Equal(t, []string{".", "lib"}, list)
}

func TestLoad_DefaultDotenv(t *testing.T) {
	dir := t.TempDir()
	path := writeHCL(t, dir, "recipes.hcl", `recipe "noop" { commands = ["true"] }`)

	model, err := newTestLoader().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, ".env")}, model.Settings.Dotenv)
	assert.False(t, model.Settings.DotenvRequired)
}

func TestLoad_SettingsSeeProcessEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeHCL(t, dir, "recipes.hcl", `
dotenv          = ["${env.CONF_DIR}/run.env"]
dotenv_required = true
`)

	model, err := newTestLoader("CONF_DIR=/etc/reciperun").Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/reciperun/run.env"}, model.Settings.Dotenv)
	assert.True(t, model.Settings.DotenvRequired)
}

func TestLoad_MissingEnvReferenceFailsAtRunTime(t *testing.T) {
	dir := t.TempDir()
	path := writeHCL(t, dir, "recipes.hcl", `recipe "r" { commands = ["echo ${env.NOPE}"] }`)

	model, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err, "references are resolved when the step runs")

	r, _ := model.Recipe("r")
	_, err = r.Steps[0].Args["run"].Value(map[string]string{"OTHER": "x"})
	require.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "syntax error",
			files:   map[string]string{"a.hcl": `recipe "r" {`},
			wantErr: "failed to parse HCL file",
		},
		{
			name: "commands and steps mixed",
			files: map[string]string{"a.hcl": `
recipe "r" {
  commands = ["true"]
  step "print" { message = "x" }
}`},
			wantErr: "use either commands or step blocks",
		},
		{
			name:    "unknown recipe attribute",
			files:   map[string]string{"a.hcl": `recipe "r" { command = "true" }`},
			wantErr: "Unsupported argument",
		},
		{
			name:    "unknown shell",
			files:   map[string]string{"a.hcl": `shell = "fish"`},
			wantErr: `unknown shell "fish"`,
		},
		{
			name: "duplicate across files",
			files: map[string]string{
				"a.hcl": `recipe "run" { commands = ["true"] }`,
				"b.hcl": `recipe "run" { commands = ["false"] }`,
			},
			wantErr: `recipe "run" already defined`,
		},
		{
			name:    "step with nested block",
			files:   map[string]string{"a.hcl": `recipe "r" { step "shell" { inner {} } }`},
			wantErr: "Unexpected",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			var paths []string
			for _, name := range []string{"a.hcl", "b.hcl"} {
				if content, ok := tc.files[name]; ok {
					paths = append(paths, writeHCL(t, dir, name, content))
				}
			}

			_, err := newTestLoader().Load(context.Background(), paths...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestEvalContext_Functions(t *testing.T) {
	ctx := evalContext(map[string]string{"A": "x"})

	assert.Contains(t, ctx.Functions, "join")
	assert.Equal(t, cty.StringVal("x"), ctx.Variables["env"].Index(cty.StringVal("A")))
}
