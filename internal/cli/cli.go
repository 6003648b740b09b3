package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vk/reciperun/internal/app"
	"github.com/vk/reciperun/internal/executor"
)

// Version is printed by --version. Overridden at build time.
var Version = "dev"

var sectionTitleColor = color.New(color.FgBlue, color.Bold)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// usageError marks an error as a command-line misuse (exit code 2).
func usageError(err error) error {
	return &ExitError{Code: 2, Message: "reciperun: " + err.Error()}
}

type flags struct {
	file        string
	envFiles    []string
	dryRun      bool
	keepGoing   bool
	quiet       bool
	shell       string
	list        bool
	history     int
	historyPath string
	noHistory   bool
	logLevel    string
	logFormat   string
}

// NewRootCmd builds the reciperun command. Output goes to stdout; logs,
// echo lines and diagnostics go to stderr.
func NewRootCmd(stdout, stderr io.Writer, opts app.Options) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:     "reciperun [flags] RECIPE [ARGS...]",
		Version: Version,
		Short:   "Run named command recipes",
		Long: `reciperun runs named recipes: fixed, ordered sequences of commands and
built-in steps declared in recipes.hcl or recipes.yaml.

Everything after the recipe name is passed to the recipe's last shell or
exec step.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, &f, stdout, stderr, opts)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetHelpFunc(helpFunc)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	fs := cmd.Flags()
	fs.SetInterspersed(false)
	fs.StringVarP(&f.file, "file", "f", "", "Recipe file or directory (default: recipes.hcl, recipes.yaml or recipes.yml)")
	fs.StringArrayVar(&f.envFiles, "env-file", nil, "Dotenv file to load instead of the ones named by the recipe file (repeatable)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Print the steps without running them")
	fs.BoolVar(&f.keepGoing, "keep-going", false, "Run the remaining steps after a failure")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Do not echo steps before running them")
	fs.StringVar(&f.shell, "shell", "", "Shell runtime: 'native' or 'virtual'")
	fs.BoolVarP(&f.list, "list", "l", false, "List recipes and exit")
	fs.IntVar(&f.history, "history", 0, "Show the last N recorded runs and exit")
	fs.StringVar(&f.historyPath, "history-db", "", "Run history database (default: .reciperun/history.db next to the recipe file)")
	fs.BoolVar(&f.noHistory, "no-history", false, "Do not record this run")
	fs.StringVar(&f.logLevel, "log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	return cmd
}

func run(cmd *cobra.Command, args []string, f *flags, stdout, stderr io.Writer, opts app.Options) error {
	slog.Debug("CLI arguments parsed.", "args", args)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := app.NewConfig(app.Config{
		File:        f.file,
		EnvFiles:    f.envFiles,
		DryRun:      f.dryRun,
		KeepGoing:   f.keepGoing,
		Quiet:       f.quiet,
		Shell:       f.shell,
		HistoryPath: f.historyPath,
		NoHistory:   f.noHistory,
		LogLevel:    strings.ToLower(f.logLevel),
		LogFormat:   strings.ToLower(f.logFormat),
	})
	if err != nil {
		return usageError(err)
	}

	showHistory := cmd.Flags().Changed("history")
	if showHistory && f.history <= 0 {
		return usageError(errors.New("--history must be a positive number"))
	}
	if !f.list && !showHistory && len(args) == 0 {
		_ = cmd.Help()
		return &ExitError{Code: 2, Message: "reciperun: no recipe given"}
	}

	opts.Stdout = stdout
	opts.Stderr = stderr
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return &ExitError{Code: 1, Message: "reciperun: " + err.Error()}
	}
	defer a.Close()

	switch {
	case f.list:
		return a.List(stdout)
	case showHistory:
		return a.History(ctx, stdout, f.history)
	}

	code, err := a.Run(ctx, args[0], args[1:])
	if code == 0 && err == nil {
		return nil
	}
	if code == 0 {
		code = 1
	}
	msg := fmt.Sprintf("reciperun: exit code %d", code)
	if err != nil {
		msg = "reciperun: " + err.Error()
	}
	if errors.Is(err, executor.ErrArgsNotAccepted) {
		code = 2
	}
	return &ExitError{Code: code, Message: msg}
}

// helpFunc prints help with colored section titles.
func helpFunc(cmd *cobra.Command, _ []string) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	}

	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	help.WriteString("\n")
	fmt.Fprintf(&help, "  %s\n\n", cmd.Use)

	help.WriteString(sectionTitleColor.Sprint("Flags:"))
	help.WriteString("\n")
	help.WriteString(cmd.Flags().FlagUsages())

	fmt.Fprint(cmd.OutOrStdout(), help.String())
}
