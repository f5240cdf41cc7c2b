package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/fleetdash/fleetdash/internal/exec"
)

var execTimeoutFlag string

var execCmd = &cobra.Command{
	Use:   "exec <server> <command>",
	Short: "Run a command on a fleet server",
	Long: `Execute a command on a registered server over a pooled SSH connection.

The process exit code mirrors the remote command's exit code.

Examples:
  fleetdash exec gpu-01 "nvidia-smi"
  fleetdash exec gpu-01 "ls -la /data" --timeout 10s
  fleetdash exec gpu-01 uptime --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execCommand(args[0], args[1:])
	},
}

func execCommand(server string, cmdArgs []string) error {
	timeout, err := parseTimeout(execTimeoutFlag, exec.DefaultTimeout)
	if err != nil {
		return err
	}

	app, err := getApp()
	if err != nil {
		return err
	}

	result := app.executor.Execute(server, strings.Join(cmdArgs, " "), timeout)

	if jsonFlag {
		if err := WriteJSONSuccess(os.Stdout, result); err != nil {
			return err
		}
	} else {
		if result.Stdout != "" {
			fmt.Print(result.Stdout)
		}
		if result.Stderr != "" {
			fmt.Fprint(os.Stderr, result.Stderr)
		}
	}

	if result.ExitCode != 0 {
		code := result.ExitCode
		if code < 0 {
			code = 1
		}
		return errors.NewExitError(code)
	}
	return nil
}

// parseTimeout parses a duration flag, falling back to def when empty.
func parseTimeout(flag string, def time.Duration) (time.Duration, error) {
	if flag == "" {
		return def, nil
	}
	d, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	return d, nil
}

func init() {
	execCmd.Flags().StringVar(&execTimeoutFlag, "timeout", "", "command timeout (e.g. 10s, 2m; default 30s)")
	rootCmd.AddCommand(execCmd)
}
