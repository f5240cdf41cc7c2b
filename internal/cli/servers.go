package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/fleetdash/fleetdash/internal/config"
	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/fleetdash/fleetdash/internal/ui"
)

// servers add flags, for non-interactive registration
var (
	addHostFlag     string
	addPortFlag     int
	addUserFlag     string
	addKeyFileFlag  string
	addPasswordFlag bool
	addGPUFlag      bool
	addDescFlag     string
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List registered fleet servers",
	Long: `List the servers registered in servers.yaml.

Examples:
  fleetdash servers
  fleetdash servers add gpu-01 --host 10.0.0.1 --user ops
  fleetdash servers rm gpu-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serversList()
	},
}

var serversAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Register a server",
	Long: `Register a server in servers.yaml.

With flags, registers non-interactively. Without flags, walks through an
interactive form.

Examples:
  fleetdash servers add
  fleetdash servers add gpu-01 --host 10.0.0.1 --user ops --key ~/.ssh/id_ed25519 --gpu`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return serversAdd(name)
	},
}

var serversRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a server from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return serversRemove(args[0])
	},
}

func serversList() error {
	store, err := getStore()
	if err != nil {
		return err
	}
	servers := store.ListServers()

	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, servers)
	}

	if len(servers) == 0 {
		fmt.Println("No servers registered.")
		fmt.Println("Add one with: fleetdash servers add")
		return nil
	}

	rows := make([][]string, 0, len(servers))
	for _, srv := range servers {
		gpuCol := ""
		if srv.GPUEnabled {
			gpuCol = ui.SymbolSuccess
		}
		rows = append(rows, []string{
			srv.Name, srv.Addr(), srv.Username, authLabel(srv), gpuCol, srv.Description,
		})
	}
	fmt.Println(ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "NAME", Width: 16},
		{Title: "ADDRESS", Width: 22},
		{Title: "USER", Width: 10},
		{Title: "AUTH", Width: 8},
		{Title: "GPU", Width: 4},
		{Title: "DESCRIPTION", Width: 28},
	}, rows))
	return nil
}

func authLabel(srv *config.Server) string {
	switch srv.Auth() {
	case config.AuthKeyFile:
		return "key"
	case config.AuthPassword:
		return "password"
	default:
		return "none"
	}
}

func serversAdd(name string) error {
	store, err := getStore()
	if err != nil {
		return err
	}

	srv := &config.Server{
		Name:        name,
		Host:        addHostFlag,
		Port:        addPortFlag,
		Username:    addUserFlag,
		KeyFile:     addKeyFileFlag,
		GPUEnabled:  addGPUFlag,
		Description: addDescFlag,
	}

	// Flags present: non-interactive path for scripts and automation.
	if srv.Host != "" && srv.Username != "" && srv.Name != "" {
		if addPasswordFlag {
			pw := os.Getenv("FLEETDASH_PASSWORD")
			if pw == "" {
				return errors.New(errors.ErrConfig,
					"--password was given but FLEETDASH_PASSWORD is not set",
					"export FLEETDASH_PASSWORD before running, or use --key instead")
			}
			srv.Password = pw
		}
		return saveServer(store, srv)
	}

	if err := runAddForm(srv); err != nil {
		return err
	}
	return saveServer(store, srv)
}

// runAddForm walks through the interactive registration form.
func runAddForm(srv *config.Server) error {
	portStr := ""
	if srv.Port != 0 {
		portStr = strconv.Itoa(srv.Port)
	}
	usePassword := false

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server name").
				Description("Short name used in commands, e.g. gpu-01").
				Value(&srv.Name),
			huh.NewInput().
				Title("Host").
				Description("IP address or hostname").
				Value(&srv.Host),
			huh.NewInput().
				Title("SSH port").
				Placeholder("22").
				Value(&portStr),
			huh.NewInput().
				Title("Username").
				Value(&srv.Username),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Authenticate with a password?").
				Description("No = use an SSH key file").
				Value(&usePassword),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&srv.Password),
		).WithHideFunc(func() bool { return !usePassword }),
		huh.NewGroup(
			huh.NewInput().
				Title("Key file").
				Placeholder("~/.ssh/id_ed25519").
				Value(&srv.KeyFile),
		).WithHideFunc(func() bool { return usePassword }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Does this server have GPUs?").
				Value(&srv.GPUEnabled),
			huh.NewInput().
				Title("Description").
				Value(&srv.Description),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Server registration cancelled", "")
	}

	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' is not a valid port", portStr),
				"Use a number between 1 and 65535")
		}
		srv.Port = port
	}
	return nil
}

func saveServer(store *config.FileStore, srv *config.Server) error {
	if err := store.Add(srv); err != nil {
		return err
	}
	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, srv)
	}
	fmt.Printf("%s Registered '%s' (%s) in %s\n", ui.Success(ui.SymbolSuccess), srv.Name, srv.Addr(), store.Path())
	return nil
}

func serversRemove(name string) error {
	store, err := getStore()
	if err != nil {
		return err
	}

	removed, err := store.Remove(name)
	if err != nil {
		return err
	}
	if !removed {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server '%s' is not registered", name),
			"List known servers with: fleetdash servers")
	}

	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, map[string]string{"removed": name})
	}
	fmt.Printf("%s Removed '%s'\n", ui.Success(ui.SymbolSuccess), name)
	return nil
}

func init() {
	serversAddCmd.Flags().StringVar(&addHostFlag, "host", "", "IP address or hostname")
	serversAddCmd.Flags().IntVar(&addPortFlag, "port", 0, "SSH port (default 22)")
	serversAddCmd.Flags().StringVar(&addUserFlag, "user", "", "SSH username")
	serversAddCmd.Flags().StringVar(&addKeyFileFlag, "key", "", "path to SSH key file")
	serversAddCmd.Flags().BoolVar(&addPasswordFlag, "password", false, "read password from FLEETDASH_PASSWORD")
	serversAddCmd.Flags().BoolVar(&addGPUFlag, "gpu", false, "server has GPUs")
	serversAddCmd.Flags().StringVar(&addDescFlag, "desc", "", "free-form description")

	serversCmd.AddCommand(serversAddCmd)
	serversCmd.AddCommand(serversRmCmd)
	rootCmd.AddCommand(serversCmd)
}
