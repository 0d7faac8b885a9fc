package commands

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/image/bmp"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/gpu/host"
	"github.com/xupit3r/kernelrun/internal/imageio"
)

// resetFlags puts every flag back to its default so tests sharing rootCmd
// do not see each other's arguments.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// hostPlatform returns the index of the host platform among all registered
// backends.
func hostPlatform(t *testing.T) string {
	t.Helper()
	plats, err := gpu.Platforms()
	if err != nil {
		t.Fatalf("Platforms() error = %v", err)
	}
	for _, p := range plats {
		if p.Driver == host.Name {
			return strconv.Itoa(p.Index)
		}
	}
	t.Fatal("host platform not registered")
	return ""
}

// run executes kernelrun with args in an isolated home directory.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"kernelrun v" + version, "host"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestDevicesCommand(t *testing.T) {
	out, _, err := run(t, "devices")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"Number of platforms:", "Go Host", "backend:", "class:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestMatMulCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		contains []string
	}{
		{
			name:     "default local extent",
			args:     []string{"matmul", "--size", "32"},
			contains: []string{"simpleMultiply", "global[32 32] local[16 16]", "verified"},
		},
		{
			name:     "backend chooses grouping",
			args:     []string{"matmul", "--size", "24", "--no-local"},
			contains: []string{"global[24 24]", "verified"},
		},
		{
			name:    "work-group larger than range",
			args:    []string{"matmul", "--size", "8", "--local", "16,16"},
			wantErr: "error: InvalidWorkSize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--platform", hostPlatform(t), "--class", "cpu"}, tt.args...)
			out, errOut, err := run(t, args...)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Execute() succeeded, want %s", tt.wantErr)
				}
				if !strings.Contains(errOut, tt.wantErr) {
					t.Errorf("Expected stderr to contain %q, got:\n%s", tt.wantErr, errOut)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v\n%s", err, errOut)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("Expected output to contain %q, got:\n%s", want, out)
				}
			}
		})
	}
}

func TestBuildCommandShowsLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gokernel")
	src := "package kernels\n\nimport \"clc\"\n\nfunc k(it clc.Item, x []float32) {\n\tx[0] = nowhere\n}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	_, errOut, err := run(t, "--platform", hostPlatform(t), "build", path)
	if err == nil {
		t.Fatal("Execute() succeeded on a broken kernel")
	}
	for _, want := range []string{"┌─ broken.gokernel ─", "▶ 6", "error: BuildError", "build log:", "nowhere"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("Expected stderr to contain %q, got:\n%s", want, errOut)
		}
	}
}

func TestBuildCommandExportThenBuild(t *testing.T) {
	dir := t.TempDir()
	out, _, err := run(t, "build", "--export", dir)
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	if !strings.Contains(out, "matmul.gokernel") {
		t.Errorf("Expected export to list matmul.gokernel, got:\n%s", out)
	}

	out, _, err = run(t, "--platform", hostPlatform(t), "build", filepath.Join(dir, "matmul.gokernel"))
	if err != nil {
		t.Fatalf("build error = %v", err)
	}
	if !strings.Contains(out, "simpleMultiply") {
		t.Errorf("Expected kernel list to contain simpleMultiply, got:\n%s", out)
	}
}

func TestBuildCommandNeedsFile(t *testing.T) {
	if _, _, err := run(t, "build"); err == nil {
		t.Error("Execute() succeeded without a file")
	}
}

func TestRotateCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bmp")
	outPath := filepath.Join(dir, "out.png")

	src := image.NewGray(image.Rect(0, 0, 32, 16))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	src.SetGray(0, 0, color.Gray{Y: 10})
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(in, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	out, errOut, err := run(t, "--platform", hostPlatform(t), "--class", "cpu",
		"rotate", "-i", in, "-o", outPath, "--degrees", "30")
	if err != nil {
		t.Fatalf("Execute() error = %v\n%s", err, errOut)
	}
	if !strings.Contains(out, "32x16 bmp") {
		t.Errorf("Expected output to describe the input, got:\n%s", out)
	}

	img, err := imageio.Read(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if img.Format != imageio.PNG || img.Width != 32 || img.Height != 16 {
		t.Errorf("output is %dx%d %s, want 32x16 png", img.Width, img.Height, img.Format)
	}
	// a corner rotates out of the image and gets the background
	if img.Pixels[0] != 0 {
		t.Errorf("corner pixel = %v, want 0", img.Pixels[0])
	}
	// the centre stays inside
	if c := img.Pixels[8*32+16]; c != 200 {
		t.Errorf("centre pixel = %v, want 200", c)
	}
}

func TestRotateCommandMissingInput(t *testing.T) {
	_, errOut, err := run(t, "rotate", "-i", filepath.Join(t.TempDir(), "nope.bmp"))
	if err == nil {
		t.Fatal("Execute() succeeded without input")
	}
	if !strings.Contains(errOut, "reading input") {
		t.Errorf("Expected stderr to mention the input, got:\n%s", errOut)
	}
}

func TestRootRejectsBadClass(t *testing.T) {
	_, errOut, err := run(t, "--class", "fpga", "devices")
	if err == nil {
		t.Fatal("Execute() accepted an unknown device class")
	}
	if !strings.Contains(errOut, "device.class") {
		t.Errorf("Expected stderr to name device.class, got:\n%s", errOut)
	}
}
