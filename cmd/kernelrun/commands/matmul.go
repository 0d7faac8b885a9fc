package commands

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/xupit3r/kernelrun/internal/pipeline"
)

var (
	matmulSize    int
	matmulLocal   []int
	matmulNoLocal bool
	matmulVerify  bool
)

var matmulCmd = &cobra.Command{
	Use:   "matmul",
	Short: "Multiply two square matrices on the selected device",
	Long: `Multiply two n x n matrices whose elements are 0, 1, 2, ... and report the
time spent in each stage. The work-group extent defaults to 16 x 16; the
global range must be divisible by it.`,
	Args: cobra.NoArgs,
	RunE: runMatMul,
}

func init() {
	matmulCmd.Flags().IntVarP(&matmulSize, "size", "n", 0, "matrix size (default from config, 128)")
	matmulCmd.Flags().IntSliceVar(&matmulLocal, "local", nil, "work-group extent, e.g. 16,16")
	matmulCmd.Flags().BoolVar(&matmulNoLocal, "no-local", false, "let the backend choose the work-group extent")
	matmulCmd.Flags().BoolVar(&matmulVerify, "verify", true, "check the product against a host computation")
	rootCmd.AddCommand(matmulCmd)
}

func runMatMul(cmd *cobra.Command, args []string) error {
	n := cfg.MatMul.Size
	if cmd.Flags().Changed("size") {
		n = matmulSize
	}
	if n <= 0 {
		return fmt.Errorf("matrix size must be positive, got %d", n)
	}

	req := pipeline.MatMulRequest{A: pipeline.Ramp(n * n), B: pipeline.Ramp(n * n), Dims: pipeline.Square(n)}
	switch {
	case matmulNoLocal:
		req.Local = []int{}
	case cmd.Flags().Changed("local"):
		req.Local = matmulLocal
	case cfg.MatMul.Local != nil:
		req.Local = cfg.MatMul.Local
	}

	c, report, err := pipeline.MatMul(pipelineConfig(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printReport(out, report)
	if matmulVerify {
		want := pipeline.MatMulReference(req.A, req.B, req.Dims)
		var worst float64
		for i := range c {
			rel := math.Abs(float64(c[i])-want[i]) / math.Max(math.Abs(want[i]), 1)
			worst = math.Max(worst, rel)
		}
		const tolerance = 1e-4
		if worst > tolerance {
			return fmt.Errorf("result differs from host reference: max relative error %.3g", worst)
		}
		fmt.Fprintln(out, theme.Field("verified", theme.OK(fmt.Sprintf("max relative error %.3g", worst))))
	}
	fmt.Fprintln(out, theme.Field("C[last]", c[len(c)-1]))
	return nil
}
