package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xupit3r/kernelrun/internal/config"
	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/gpu/host"
	"github.com/xupit3r/kernelrun/internal/logging"
	"github.com/xupit3r/kernelrun/internal/pipeline"
	"github.com/xupit3r/kernelrun/internal/tui"

	// backends register themselves
	_ "github.com/xupit3r/kernelrun/internal/gpu/opencl"
	_ "github.com/xupit3r/kernelrun/internal/gpu/webgpu"
)

var (
	cfgFile    string
	verbose    bool
	noColor    bool
	platform   int
	class      string
	kernelsDir string

	cfg   *config.Config
	theme tui.Theme
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kernelrun",
	Short: "Run compute kernels on CPUs, GPUs and accelerators",
	Long: `kernelrun discovers compute devices, builds kernel programs for them and
runs the bundled matrix multiply and image rotation pipelines.

Kernels are written in OpenCL C, WGSL or Go depending on the platform; the
host platform is always available and runs Go kernels on the CPU.`,
	Version:           version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kernelrun/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline stages to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().IntVarP(&platform, "platform", "p", 0, "platform index (see kernelrun devices)")
	rootCmd.PersistentFlags().StringVarP(&class, "class", "d", "", "device class: any, cpu, gpu or accelerator")
	rootCmd.PersistentFlags().StringVar(&kernelsDir, "kernels", "", "directory with kernel sources replacing the bundled ones")
}

// setup loads configuration, applies flag overrides and configures logging
// and the host backend.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("platform") {
		loaded.Device.Platform = platform
	}
	if flags.Changed("class") {
		loaded.Device.Class = class
	}
	if flags.Changed("kernels") {
		loaded.Kernels.Dir = kernelsDir
	}
	if noColor {
		loaded.CLI.Color = false
	}
	if verbose {
		loaded.Logging.Level = "debug"
		loaded.Logging.Console = true
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}

	if err := logging.Init(loaded.Logging.Level, loaded.Logging.File, loaded.Logging.Console); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}
	gpu.SetLogger(logging.Get())
	host.Configure(loaded.HostOptions())

	cfg = loaded
	theme = tui.Theme{Color: loaded.CLI.Color}
	return nil
}

func pipelineConfig() pipeline.Config {
	return pipeline.Config{Selection: cfg.Selection(), KernelDir: cfg.Kernels.Dir}
}
