package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// versionShort controls whether to show short or full version output
var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of fleetdash.`,
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Println(versionInfo.version)
			return
		}

		fmt.Printf("fleetdash %s\n", formatVersion(versionInfo.version))
		fmt.Printf("commit: %s\n", versionInfo.commit)
		fmt.Printf("built: %s\n", versionInfo.date)
		fmt.Printf("go: %s\n", runtime.Version())
		fmt.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// formatVersion ensures version has a 'v' prefix for display
func formatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}
