package gpu

import (
	"strings"
	"time"

	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/fleetdash/fleetdash/internal/exec"
)

// DefaultQueryTimeout bounds the remote nvidia-smi run. The query is cheap;
// a host that can't answer quickly is effectively down.
const DefaultQueryTimeout = 10 * time.Second

// Runner executes a command on a named server. Satisfied by *exec.Executor.
type Runner interface {
	Execute(serverName, command string, timeout time.Duration) exec.Result
}

// Collector fetches GPU telemetry over the execution layer.
type Collector struct {
	run     Runner
	timeout time.Duration
}

// NewCollector creates a collector over the given runner.
func NewCollector(run Runner) *Collector {
	return &Collector{run: run, timeout: DefaultQueryTimeout}
}

// Collect queries nvidia-smi on the named server and returns one Device per
// GPU. A healthy host without a GPU yields an empty slice and no error;
// transport problems yield an error.
func (c *Collector) Collect(serverName string) ([]Device, error) {
	res := c.run.Execute(serverName, Query, c.timeout)
	if !res.Success {
		// A missing nvidia-smi binary is a GPU-less host, not a failure.
		combined := strings.ToLower(res.Stdout + res.Stderr)
		if strings.Contains(combined, "not found") || strings.Contains(combined, "no devices") {
			return nil, nil
		}
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = "nvidia-smi query failed"
		}
		return nil, errors.New(errors.ErrExec,
			"GPU query on '"+serverName+"' failed: "+msg,
			"Check that the server is reachable: fleetdash exec "+serverName+" uptime")
	}

	devices, err := ParseNvidiaSMI(res.Stdout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			"GPU query on '"+serverName+"' returned unparseable output",
			"Check the nvidia-smi driver version on the server")
	}
	return devices, nil
}
