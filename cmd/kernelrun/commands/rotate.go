package commands

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/xupit3r/kernelrun/internal/imageio"
	"github.com/xupit3r/kernelrun/internal/pipeline"
)

var (
	rotateInput   string
	rotateOutput  string
	rotateTheta   float64
	rotateDegrees float64
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotate a grayscale image about its centre",
	Long: `Read an image, rotate it about its centre on the selected device and write
the result. Color images are converted to grayscale first. Pixels that rotate
in from outside the image are black.

The output is encoded in the input's format unless the output extension names
another (bmp, png, jpeg, gif or tiff).`,
	Args: cobra.NoArgs,
	RunE: runRotate,
}

func init() {
	rotateCmd.Flags().StringVarP(&rotateInput, "input", "i", "", "input image (default from config, input.bmp)")
	rotateCmd.Flags().StringVarP(&rotateOutput, "output", "o", "", "output image (default from config, output.bmp)")
	rotateCmd.Flags().Float64Var(&rotateTheta, "theta", 0, "rotation angle in radians (default from config, pi/6)")
	rotateCmd.Flags().Float64Var(&rotateDegrees, "degrees", 0, "rotation angle in degrees, instead of --theta")
	rotateCmd.MarkFlagsMutuallyExclusive("theta", "degrees")
	rotateCmd.MarkFlagFilename("input", "bmp", "png", "jpg", "jpeg", "gif", "tif", "tiff")
	rootCmd.AddCommand(rotateCmd)
}

func runRotate(cmd *cobra.Command, args []string) error {
	input, output, theta := cfg.Rotate.Input, cfg.Rotate.Output, cfg.Rotate.Theta
	flags := cmd.Flags()
	if flags.Changed("input") {
		input = rotateInput
	}
	if flags.Changed("output") {
		output = rotateOutput
	}
	switch {
	case flags.Changed("theta"):
		theta = rotateTheta
	case flags.Changed("degrees"):
		theta = rotateDegrees * math.Pi / 180
	}

	img, err := imageio.Read(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	pixels, report, err := pipeline.Rotate(pipelineConfig(), pipeline.RotateRequest{
		Pixels: img.Pixels,
		Width:  img.Width,
		Height: img.Height,
		Theta:  theta,
	})
	if err != nil {
		return err
	}

	result := &imageio.Image{Width: img.Width, Height: img.Height, Pixels: pixels, Format: img.Format}
	if err := imageio.Write(output, result); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	out := cmd.OutOrStdout()
	printReport(out, report)
	fmt.Fprintln(out, theme.Field("image", fmt.Sprintf("%dx%d %s", img.Width, img.Height, img.Format)))
	fmt.Fprintln(out, theme.Field("theta", fmt.Sprintf("%.5f rad", theta)))
	fmt.Fprintln(out, theme.Field("wrote", theme.OK(output)))
	return nil
}
