// Package exec is the synchronous remote-command contract on top of the
// connection pool. Callers (GPU telemetry, the CLI exec command) go through
// Execute and treat the outcome as a value, never an error path.
package exec

import (
	"context"
	"time"

	"github.com/fleetdash/fleetdash/internal/logger"
	"github.com/fleetdash/fleetdash/pkg/sshutil"
)

// DefaultTimeout applies when a caller passes a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// Result is the complete outcome of one remote command. Immutable, produced
// once per Execute call, never partially filled.
type Result struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// HandleSource is the slice of the pool the executor needs.
type HandleSource interface {
	Get(name string) (sshutil.SSHClient, error)
}

// Executor runs commands on named servers with bounded timeouts.
type Executor struct {
	pool HandleSource
	log  logger.Logger
}

// New creates an executor on top of a handle source.
func New(pool HandleSource, log logger.Logger) *Executor {
	if log == nil {
		log = logger.NewEnvLogger("[exec]")
	}
	return &Executor{pool: pool, log: log}
}

// Execute runs command on serverName with a hard deadline and returns a
// structured result. It never returns an error: no handle, deadline
// exceeded, and transport failures all fold into
// {Success:false, ExitCode:-1, Stderr:<cause>}.
func (e *Executor) Execute(serverName, command string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := e.pool.Get(serverName)
	if err != nil {
		e.log.Debug("execute on %s failed to get handle: %v", serverName, err)
		return failure(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stdout, stderr, exitCode, err := client.ExecContext(ctx, command)
	if err != nil {
		e.log.Debug("execute on %s failed: %v", serverName, err)
		return Result{
			Success:  false,
			Stdout:   string(stdout),
			Stderr:   errString(err, stderr),
			ExitCode: -1,
		}
	}

	return Result{
		Success:  exitCode == 0,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		ExitCode: exitCode,
	}
}

func failure(err error) Result {
	return Result{Success: false, Stderr: err.Error(), ExitCode: -1}
}

// errString prefers the error message but keeps any stderr the command
// produced before dying.
func errString(err error, stderr []byte) string {
	if len(stderr) > 0 {
		return err.Error() + "\n" + string(stderr)
	}
	return err.Error()
}
