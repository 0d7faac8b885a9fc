package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/kernels"
)

func writeKernel(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestCompileBundledOnHost(t *testing.T) {
	dir := t.TempDir()
	_, err := kernels.Export(dir, true)
	require.NoError(t, err)

	out, report, err := Compile(onHost, filepath.Join(dir, "rotation.gokernel"))
	require.NoError(t, err)
	assert.Equal(t, []string{"img_rotate"}, out.Kernels)
	assert.Contains(t, out.Source, "img_rotate")
	assert.Equal(t, "go", report.Language)
}

func TestCompileReportsBuildLog(t *testing.T) {
	path := writeKernel(t, "bad.go", "package kernels\n\nimport \"clc\"\n\nfunc k(it clc.Item, x []float32) {\n\tx[0] = missing\n}\n")

	out, _, err := Compile(onHost, path)
	require.ErrorIs(t, err, gpu.ErrBuild)
	log, ok := gpu.BuildLog(err)
	require.True(t, ok)
	assert.Contains(t, log, "missing")
	assert.Contains(t, out.Source, "missing", "source is returned for display")
}

func TestCompileLanguageMismatch(t *testing.T) {
	path := writeKernel(t, "k.cl", "__kernel void k(__global float* x) { x[0] = 1.0f; }\n")
	_, _, err := Compile(onHost, path)
	assert.ErrorIs(t, err, gpu.ErrSourceUnavailable)
	assert.ErrorContains(t, err, "opencl-c")
}

func TestCompileUnknownExtension(t *testing.T) {
	path := writeKernel(t, "k.txt", "anything")
	_, _, err := Compile(onHost, path)
	assert.ErrorIs(t, err, gpu.ErrSourceUnavailable)
}

func TestCompileMissingFile(t *testing.T) {
	_, _, err := Compile(onHost, filepath.Join(t.TempDir(), "absent.gokernel"))
	assert.ErrorIs(t, err, gpu.ErrSourceUnavailable)
}

func TestCompileReleasesOnFake(t *testing.T) {
	fake := installFake(t)
	path := writeKernel(t, "m.cl", "__kernel void simpleMultiply() {}\n")

	out, _, err := Compile(onFake, path)
	require.NoError(t, err)
	assert.Contains(t, out.Kernels, "simpleMultiply")
	assert.Empty(t, fake.Leaks())
}
