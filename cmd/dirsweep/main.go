package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"dirsweep/internal/exitcodes"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	// SIGINT and SIGTERM cancel the walk or the scheduler gracefully
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitcodes.Success
	}

	if debug, _ := root.PersistentFlags().GetBool("debug"); debug {
		fmt.Fprintln(stderr, wrapError(err).ErrorStack())
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if errors.Is(err, errNoQuery) {
		return exitcodes.InvalidConfig
	}
	return exitcodes.ForError(err)
}

// wrapError captures a stack trace for --debug output
func wrapError(err error) *errors.Error {
	var wrapped *errors.Error
	if errors.As(err, &wrapped) {
		return wrapped
	}
	return errors.Wrap(err, 1)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dirsweep",
		Short: "Recursive directory tree deletion with counts, history and metrics",
		Long: `dirsweep deletes directory trees depth-first and reports how many
directories, files and bytes were removed.

Use "delete" for a one-off deletion, "run" to sweep configured targets on a
schedule and "history" to query past sweeps.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().Bool("debug", false, "Print stack traces for errors")

	root.AddCommand(newDeleteCmd(), newRunCmd(), newHistoryCmd(), newTokenCmd())
	return root
}
