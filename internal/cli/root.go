// Package cli implements the fleetdash command-line interface.
//
// The package is organized around Cobra commands, with each command
// delegating to the service packages for the actual work:
//
//	fleetdash servers [add|rm]       - Manage the server registry
//	fleetdash exec <server> <cmd>    - Run a command on a fleet host
//	fleetdash shell <server>         - Interactive shell on a fleet host
//	fleetdash gpu <server>           - GPU telemetry snapshot
//	fleetdash forward ...            - Manage port forwards
//
// Global flags (--config, --json, --debug) are defined on the root command.
// Commands share one app instance carrying the server store, the connection
// pool, the executor, and the tunnel supervisor; it is built lazily on first
// use and torn down after the command returns.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fleetdash/fleetdash/internal/config"
	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/fleetdash/fleetdash/internal/exec"
	"github.com/fleetdash/fleetdash/internal/forward"
	"github.com/fleetdash/fleetdash/internal/gpu"
	"github.com/fleetdash/fleetdash/internal/logger"
	"github.com/fleetdash/fleetdash/internal/pool"
)

// Global flags
var (
	configFlag  string
	jsonFlag    bool
	debugFlag   bool
	versionInfo = struct{ version, commit, date string }{"dev", "none", "unknown"}
)

var rootCmd = &cobra.Command{
	Use:   "fleetdash",
	Short: "GPU fleet remote access from the terminal",
	Long: `fleetdash manages SSH access to a fleet of GPU servers: run commands,
open shells, read GPU telemetry, and forward tool ports (TensorBoard,
Jupyter, MLflow) to localhost.

Servers are registered in servers.yaml, found in the current directory or
under ~/.config/fleetdash/. Names absent from the file fall back to
~/.ssh/config aliases.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugFlag {
			os.Setenv("FLEETDASH_DEBUG", "1")
		}
	},
}

// app carries the shared service instances for one command invocation.
type app struct {
	store      *config.FileStore
	pool       *pool.Pool
	executor   *exec.Executor
	supervisor *forward.Supervisor
	gpus       *gpu.Collector
}

var current *app

// getApp builds the service stack on first use. Commands that only touch
// the registry use getStore instead and skip pool construction.
func getApp() (*app, error) {
	if current != nil {
		return current, nil
	}

	store, err := getStore()
	if err != nil {
		return nil, err
	}

	p := pool.New(store, pool.Options{Log: logger.Default()})
	ex := exec.New(p, logger.Default())
	current = &app{
		store:      store,
		pool:       p,
		executor:   ex,
		supervisor: forward.NewSupervisor(store, forward.Options{Log: logger.Default()}),
		gpus:       gpu.NewCollector(ex),
	}
	return current, nil
}

var currentStore *config.FileStore

// getStore loads the server registry, honoring --config and the
// FLEETDASH_CONFIG environment variable.
func getStore() (*config.FileStore, error) {
	if currentStore != nil {
		return currentStore, nil
	}

	path := configFlag
	if path == "" {
		path = viper.GetString("config")
	}
	found, err := config.Find(path)
	if err != nil {
		return nil, err
	}

	var store *config.FileStore
	if found == "" {
		// No registry yet: start empty at the global location so
		// `servers add` has somewhere to write.
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot determine home directory for the servers file",
				"Pass an explicit path with --config")
		}
		store, err = config.LoadOrEmpty(filepath.Join(home, config.GlobalConfigDir, config.ConfigFileName))
		if err != nil {
			return nil, err
		}
	} else {
		store, err = config.Load(found)
		if err != nil {
			return nil, err
		}
	}

	store.SSHConfigFallback = true
	currentStore = store
	return store, nil
}

// teardown releases pooled connections and stops tunnels owned by this
// process. Forwards are per-process children; they don't outlive the CLI.
func teardown() {
	if current == nil {
		return
	}
	current.supervisor.Close()
	current.pool.CloseAll()
	current = nil
}

// SetVersionInfo sets build metadata (called from main).
func SetVersionInfo(version, commit, date string) {
	versionInfo.version = version
	versionInfo.commit = commit
	versionInfo.date = date
}

// Execute runs the root command and maps errors to exit codes.
func Execute() {
	err := rootCmd.Execute()
	teardown()
	if err == nil {
		return
	}

	// ExitError just propagates a remote command's exit code; it has
	// already been reported through stdout/stderr passthrough.
	if code, ok := errors.GetExitCode(err); ok {
		os.Exit(code)
	}

	if jsonFlag {
		_ = WriteJSONError(os.Stderr, err)
	} else {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to servers.yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "verbose debug logging")

	viper.SetEnvPrefix("FLEETDASH")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}
