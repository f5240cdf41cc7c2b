package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/fleetdash/fleetdash/internal/ui"
)

var shellCmd = &cobra.Command{
	Use:   "shell <server>",
	Short: "Open an interactive shell on a fleet server",
	Long: `Open an interactive login shell on a registered server.

The session uses a dedicated connection outside the shared pool, so a
long-lived shell never blocks other commands and closing it never tears
down a pooled connection.

Examples:
  fleetdash shell gpu-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return shellCommand(args[0])
	},
}

// shellSession is the subset of the SSH client the shell command needs.
// The pool hands back its handle interface; the interactive PTY request is
// asserted separately because mocks don't implement it.
type shellSession interface {
	Shell(stdin io.Reader, stdout, stderr io.Writer, cols, rows int) error
}

func shellCommand(server string) error {
	app, err := getApp()
	if err != nil {
		return err
	}

	client, release, err := app.pool.CreateStandalone(server)
	if err != nil {
		return err
	}
	defer release()

	sh, ok := client.(shellSession)
	if !ok {
		return errors.New(errors.ErrConn,
			"This connection does not support interactive sessions", "")
	}

	fd := int(os.Stdin.Fd())
	cols, rows := 80, 24
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil {
			cols, rows = w, h
		}

		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrExec,
				"Failed to switch the terminal to raw mode", "")
		}
		defer term.Restore(fd, oldState)
	}

	fmt.Printf("%s Connected to %s (%s). Exit the shell to return.\r\n",
		ui.Success(ui.SymbolSuccess), client.Name(), client.Addr())

	if err := sh.Shell(os.Stdin, os.Stdout, os.Stderr, cols, rows); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Shell session on '%s' ended abnormally", server), "")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
