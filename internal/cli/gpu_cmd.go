package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fleetdash/fleetdash/internal/ui"
)

var gpuCmd = &cobra.Command{
	Use:   "gpu <server>",
	Short: "Show GPU telemetry for a server",
	Long: `Query nvidia-smi on a server and show per-GPU temperature,
utilization, and memory.

Examples:
  fleetdash gpu gpu-01
  fleetdash gpu gpu-01 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return gpuCommand(args[0])
	},
}

func gpuCommand(server string) error {
	app, err := getApp()
	if err != nil {
		return err
	}

	devices, err := app.gpus.Collect(server)
	if err != nil {
		return err
	}

	if jsonFlag {
		return WriteJSONSuccess(os.Stdout, devices)
	}

	if len(devices) == 0 {
		fmt.Printf("No GPUs detected on '%s'.\n", server)
		return nil
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{
			strconv.Itoa(d.Index),
			d.Name,
			fmt.Sprintf("%d°C", d.Temperature),
			fmt.Sprintf("%.0f%%", d.Utilization),
			fmt.Sprintf("%d / %d MiB (%.0f%%)", d.MemoryUsed, d.MemoryTotal, d.MemoryPercent()),
		})
	}
	fmt.Println(ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "GPU", Width: 4},
		{Title: "NAME", Width: 26},
		{Title: "TEMP", Width: 6},
		{Title: "UTIL", Width: 6},
		{Title: "MEMORY", Width: 28},
	}, rows))
	return nil
}

func init() {
	rootCmd.AddCommand(gpuCmd)
}
