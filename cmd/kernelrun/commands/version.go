package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "kernelrun v%s\n", version)
		fmt.Fprintln(out, "Heterogeneous compute kernel runner")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Go version: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		names := make([]string, 0)
		for _, d := range driver.Drivers() {
			names = append(names, d.Name())
		}
		fmt.Fprintf(out, "Backends:   %v\n", names)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
