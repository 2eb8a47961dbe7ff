package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/makeomatic/internal/app"
	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configFile   string
	verbose      bool
	ignoreConfig bool
	workDir      string
}

// exitError carries the exit code of a finished run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// newMom creates the application. Tests replace it to inject adapters.
var newMom = app.New

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "mom",
		Short: "Make-O-Matic build runner",
		Long: `mom runs build scripts: it checks out a project, builds it in every
configuration and matching environment, and reports the result.

Exit codes: 0 success, 1 build error, 2 configuration error,
3 internal error, 130 interrupted.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "additional configuration file (YAML or TOML)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug messages")
	root.PersistentFlags().BoolVarP(&g.ignoreConfig, "ignore-configuration-files", "i", false, "do not read the configuration files")
	root.PersistentFlags().StringVarP(&g.workDir, "directory", "C", "", "create the build folder in this directory")

	root.AddCommand(
		newBuildCmd(g),
		newDescribeCmd(g),
		newQueryCmd(g),
		newPrintCmd(g),
		newQueueCmd(g),
		newVersionCmd(),
	)
	return root
}

// runOptions starts the options of a run from the global flags.
func (g *globalOptions) runOptions(script string) app.RunOptions {
	opts := app.NewRunOptions(script)
	opts.ConfigFile = g.configFile
	opts.Verbose = g.verbose
	opts.IgnoreConfigFiles = g.ignoreConfig
	opts.WorkDir = g.workDir
	return opts
}

// Execute runs the command line and returns the process exit code. An
// interrupt or termination signal cancels the running build.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, newRootCmd(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, args []string, errOut io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return builderr.ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			printErrorTo(errOut, ee.err)
		}
		return ee.code
	}
	printErrorTo(errOut, err)
	if builderr.KindOf(err) == builderr.KindFramework && !isClassified(err) {
		// Usage errors from the flag parser.
		return builderr.ExitConfigurationError
	}
	return builderr.ExitCode(err)
}

func isClassified(err error) bool {
	var be *builderr.Error
	var ce builderr.Classified
	return errors.As(err, &be) || errors.As(err, &ce)
}

// formatError returns the message shown for err, with kind, phase and
// details for build errors.
func formatError(err error) string {
	var be *builderr.Error
	if errors.As(err, &be) {
		return be.Format()
	}
	return err.Error()
}

func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// finish turns the result of a run into the command's error.
func finish(res app.Result) error {
	if res.Code == builderr.ExitSuccess {
		return nil
	}
	return &exitError{code: res.Code, err: res.Err}
}
