package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fleetdash/fleetdash/internal/forward"
	"github.com/fleetdash/fleetdash/internal/ui"
)

// forward create flags
var (
	fwdLocalPortFlag int
	fwdNameFlag      string
	fwdToolFlag      string
	fwdServerFlag    string
)

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Manage port forwards to fleet servers",
	Long: `Forward local ports to tools running on fleet servers.

Forwards live for the duration of the fleetdash process that created them;
use 'forward watch' to keep them open and observe their state.

Examples:
  fleetdash forward create gpu-01 6006 --tool tensorboard
  fleetdash forward create gpu-01 8888 --local-port 18888
  fleetdash forward list
  fleetdash forward watch`,
}

var forwardCreateCmd = &cobra.Command{
	Use:   "create <server> <remote-port>",
	Short: "Start a port forward",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		remotePort, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("'%s' is not a valid port number", args[1])
		}
		return forwardCreate(args[0], remotePort)
	},
}

var forwardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List forwards owned by this process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return forwardList(fwdServerFlag)
	},
}

var forwardStopCmd = &cobra.Command{
	Use:   "stop <forward-id>",
	Short: "Stop a forward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return forwardStop(args[0])
	},
}

var forwardRmCmd = &cobra.Command{
	Use:   "rm <forward-id>",
	Short: "Stop a forward and drop its record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return forwardRemove(args[0])
	},
}

var forwardToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show default ports for common tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		return forwardTools()
	},
}

func forwardCreate(server string, remotePort int) error {
	app, err := getApp()
	if err != nil {
		return err
	}

	fwd, err := app.supervisor.CreateForward(server, fwdNameFlag, remotePort, fwdLocalPortFlag, fwdToolFlag)
	if err != nil {
		return err
	}

	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, fwd)
	}
	fmt.Printf("%s Forward %s: localhost:%d -> %s:%d\n",
		ui.Success(ui.SymbolSuccess), fwd.ID, fwd.LocalPort, fwd.ServerName, fwd.RemotePort)
	fmt.Println(ui.Muted("Keep it open with: fleetdash forward watch"))
	return nil
}

func forwardList(server string) error {
	app, err := getApp()
	if err != nil {
		return err
	}
	forwards := app.supervisor.ListForwards(server)

	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, forwards)
	}

	if len(forwards) == 0 {
		fmt.Println("No active forwards.")
		return nil
	}
	fmt.Println(ui.RenderSimpleTable(forwardColumns(), forwardRows(forwards)))
	return nil
}

func forwardColumns() []ui.TableColumn {
	return []ui.TableColumn{
		{Title: "ID", Width: 20},
		{Title: "SERVER", Width: 14},
		{Title: "LOCAL", Width: 7},
		{Title: "REMOTE", Width: 7},
		{Title: "TOOL", Width: 12},
		{Title: "STATUS", Width: 10},
	}
}

func forwardRows(forwards []*forward.Forward) [][]string {
	rows := make([][]string, 0, len(forwards))
	for _, f := range forwards {
		rows = append(rows, []string{
			f.ID,
			f.ServerName,
			strconv.Itoa(f.LocalPort),
			strconv.Itoa(f.RemotePort),
			f.ToolType,
			ui.StatusCell(string(f.Status)),
		})
	}
	return rows
}

func forwardStop(id string) error {
	app, err := getApp()
	if err != nil {
		return err
	}
	if !app.supervisor.StopForward(id) {
		return fmt.Errorf("no forward with id '%s'", id)
	}
	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, map[string]string{"stopped": id})
	}
	fmt.Printf("%s Stopped %s\n", ui.Success(ui.SymbolSuccess), id)
	return nil
}

func forwardRemove(id string) error {
	app, err := getApp()
	if err != nil {
		return err
	}
	if !app.supervisor.DeleteForward(id) {
		return fmt.Errorf("no forward with id '%s'", id)
	}
	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, map[string]string{"removed": id})
	}
	fmt.Printf("%s Removed %s\n", ui.Success(ui.SymbolSuccess), id)
	return nil
}

func forwardTools() error {
	tools := forward.ToolSuggestions()

	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, tools)
	}

	rows := make([][]string, 0, len(tools))
	for _, tool := range tools {
		rows = append(rows, []string{
			tool.Name, tool.Type, strconv.Itoa(tool.DefaultPort), tool.Description,
		})
	}
	fmt.Println(ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "TOOL", Width: 18},
		{Title: "TYPE", Width: 12},
		{Title: "PORT", Width: 6},
		{Title: "DESCRIPTION", Width: 28},
	}, rows))
	return nil
}

func init() {
	forwardCreateCmd.Flags().IntVar(&fwdLocalPortFlag, "local-port", 0, "local port (default: auto-assign)")
	forwardCreateCmd.Flags().StringVar(&fwdNameFlag, "name", "", "label for the forward")
	forwardCreateCmd.Flags().StringVar(&fwdToolFlag, "tool", "", "tool type (tensorboard, jupyter, mlflow, ...)")
	forwardListCmd.Flags().StringVar(&fwdServerFlag, "server", "", "filter by server name")

	forwardCmd.AddCommand(forwardCreateCmd)
	forwardCmd.AddCommand(forwardListCmd)
	forwardCmd.AddCommand(forwardStopCmd)
	forwardCmd.AddCommand(forwardRmCmd)
	forwardCmd.AddCommand(forwardToolsCmd)
	forwardCmd.AddCommand(forwardWatchCmd)
	rootCmd.AddCommand(forwardCmd)
}
