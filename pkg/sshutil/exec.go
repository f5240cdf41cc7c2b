package sshutil

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/fleetdash/fleetdash/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the collected output.
// Exit code is -1 if the command couldn't be executed at all. A non-zero
// exit code with nil error means the command ran but failed.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return c.ExecContext(context.Background(), cmd)
}

// ExecContext runs a command with a caller-supplied deadline. Both streams
// are always drained fully into buffers; a handle that produced a
// partially-read stream would corrupt later reads when reused.
//
// On deadline the session is torn down and a TIMEOUT error returned; the
// remote process state is unknown at that point.
func (c *Client) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrConn,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		// Closing the session unblocks Run; the goroutine drains into done.
		session.Close()
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1,
			errors.WrapWithCode(ctx.Err(), errors.ErrTimeout,
				fmt.Sprintf("Command timed out: %s", cmd),
				"The remote process may still be running.")
	}

	exitCode = 0
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
			err = nil // Command ran, just had non-zero exit
		} else {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1,
				errors.WrapWithCode(err, errors.ErrExec,
					fmt.Sprintf("Failed to execute command: %s", cmd),
					"Check if the command exists on the remote host.")
		}
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// Shell starts an interactive shell with a PTY sized to the caller's
// terminal. The caller owns stdin/stdout/stderr and blocks until the remote
// shell exits.
func (c *Client) Shell(stdin io.Reader, stdout, stderr io.Writer, cols, rows int) error {
	session, err := c.Client.NewSession()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConn,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if cols <= 0 {
		cols = 120
	}
	if rows <= 0 {
		rows = 30
	}

	if err := session.RequestPty("xterm-256color", rows, cols, modes); err != nil {
		return errors.WrapWithCode(err, errors.ErrConn,
			"Failed to allocate PTY for shell",
			"The remote host may not support pseudo-terminals.")
	}

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Shell(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConn,
			"Failed to start shell",
			"Check if your user has shell access on the remote host.")
	}

	return session.Wait()
}
