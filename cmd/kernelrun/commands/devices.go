package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/system"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List compute platforms and their devices",
	Long: `List every platform the registered backends can see, with the devices on
each. The platform index is what --platform and device.platform select.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	plats, err := gpu.Platforms()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Number of platforms: %d\n", len(plats))
	if m, err := system.ReadMemory(); err == nil {
		fmt.Fprintln(out, theme.Field("host memory", fmt.Sprintf("%s free of %s",
			system.FormatBytes(m.Available), system.FormatBytes(m.Total))))
	}
	for _, p := range plats {
		fmt.Fprintln(out)
		fmt.Fprintln(out, theme.Title(fmt.Sprintf("[%d] %s", p.Index, p.Name())))
		fmt.Fprintln(out, theme.Field("backend", p.Driver))
		fmt.Fprintln(out, theme.Field("language", p.Language()))
		if p.Info.Vendor != "" {
			fmt.Fprintln(out, theme.Field("vendor", p.Info.Vendor))
		}
		if p.Info.Version != "" {
			fmt.Fprintln(out, theme.Field("version", p.Info.Version))
		}

		devs, err := p.Devices()
		if err != nil {
			fmt.Fprintln(out, theme.Error(fmt.Sprintf("  devices: %v", err)))
			continue
		}
		if len(devs) == 0 {
			fmt.Fprintln(out, theme.Dim("  no devices"))
		}
		for _, d := range devs {
			fmt.Fprintf(out, "  %s %s\n", theme.OK(fmt.Sprintf("device %d:", d.Index)), d.Name())
			fmt.Fprintln(out, theme.Field("  class", d.Class()))
			if d.Info.ComputeUnits > 0 {
				fmt.Fprintln(out, theme.Field("  units", d.Info.ComputeUnits))
			}
			if d.Info.MemoryBytes > 0 {
				fmt.Fprintln(out, theme.Field("  memory", system.FormatBytes(d.Info.MemoryBytes)))
			}
			if d.Info.MaxWorkGroupSize > 0 {
				fmt.Fprintln(out, theme.Field("  max group", d.Info.MaxWorkGroupSize))
			}
		}
	}
	return nil
}
