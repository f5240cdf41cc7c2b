package sshutil

import "context"

// SSHClient is the handle contract the pool and executor work against.
// Both the real Client and the testing mock satisfy this interface, which is
// what lets pool and executor tests run without a network.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecContext is Exec with a caller-supplied deadline.
	ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// Name returns the server name this client is connected to.
	Name() string

	// Addr returns the resolved host:port address.
	Addr() string
}
