package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/kernels"
	"github.com/xupit3r/kernelrun/internal/pipeline"
	"github.com/xupit3r/kernelrun/internal/tui"
)

var exportDir string

var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "Compile a kernel source file without running it",
	Long: `Compile a kernel source for the selected device and list its kernels.

The language is taken from the extension: .cl for OpenCL C, .wgsl for WGSL and
.gokernel or .go for Go kernels. It must match the language the selected
platform compiles. When the build fails the source is printed with the lines
the compiler complained about marked, followed by the build log.

With --export the bundled sources are written to a directory instead, as a
starting point for --kernels.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&exportDir, "export", "", "write the bundled kernel sources to this directory")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if exportDir != "" {
		written, err := kernels.Export(exportDir, false)
		for _, p := range written {
			fmt.Fprintln(out, theme.OK("wrote ")+p)
		}
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("build needs a source file or --export")
	}

	compiled, report, err := pipeline.Compile(pipelineConfig(), args[0])
	if err != nil {
		if _, ok := gpu.BuildLog(err); ok && compiled.Source != "" {
			showSource(cmd, compiled, err)
		}
		return err
	}

	printReport(out, report)
	fmt.Fprintln(out, theme.Title("kernels"))
	for _, k := range compiled.Kernels {
		fmt.Fprintln(out, "  "+k)
	}
	return nil
}

// showSource prints the failed source with the lines named in the build log
// marked.
func showSource(cmd *cobra.Command, c *pipeline.Compiled, err error) {
	log, _ := gpu.BuildLog(err)
	src := c.Source
	if cfg.CLI.SyntaxHighlight && cfg.CLI.Color {
		if lang, lerr := kernels.LanguageOf(c.Path); lerr == nil {
			src = tui.HighlightSource(src, lang)
		}
	}
	fmt.Fprint(cmd.ErrOrStderr(), tui.FormatListing(src, filepath.Base(c.Path), tui.LogLines(log)))
}
