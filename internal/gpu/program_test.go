package gpu_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/gpu/gputest"
)

func TestBuildErrorCarriesLog(t *testing.T) {
	fake, cx := setup(t)
	fake.SetBuildLog("kernel.cl:4:9: error: use of undeclared identifier 'x'")

	_, err := cx.BuildProgram("kernel void k() { x; }\n#error broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrBuild)

	log, ok := gpu.BuildLog(err)
	require.True(t, ok)
	assert.Equal(t, "kernel.cl:4:9: error: use of undeclared identifier 'x'", log)

	// The failed program is released at once.
	assert.Equal(t, 1, fake.Released("program"))
	assert.Equal(t, 0, cx.Live())
	require.NoError(t, cx.Release())
	assertClean(t, fake)
}

func TestBuildErrorLogNeverEmpty(t *testing.T) {
	t.Run("empty log", func(t *testing.T) {
		fake, cx := setup(t)
		defer cx.Release()
		fake.SetBuildLog("  \n")

		_, err := cx.BuildProgram("#error")
		log, ok := gpu.BuildLog(err)
		require.True(t, ok)
		assert.NotEmpty(t, strings.TrimSpace(log))
	})

	t.Run("log query fails", func(t *testing.T) {
		fake, cx := setup(t)
		defer cx.Release()
		fake.Fail(gputest.StageBuildLog, errors.New("query refused"))

		_, err := cx.BuildProgram("#error")
		assert.ErrorIs(t, err, gpu.ErrBuild)
		log, ok := gpu.BuildLog(err)
		require.True(t, ok)
		assert.Contains(t, log, "query refused")
	})
}

func TestBuildProgramSourceUnavailable(t *testing.T) {
	_, cx := setup(t)
	defer cx.Release()

	_, err := cx.BuildProgram("   ")
	assert.ErrorIs(t, err, gpu.ErrSourceUnavailable)

	_, err = gpu.LoadSource(filepath.Join(t.TempDir(), "missing.cl"))
	assert.ErrorIs(t, err, gpu.ErrSourceUnavailable)

	path := filepath.Join(t.TempDir(), "ok.cl")
	require.NoError(t, os.WriteFile(path, []byte("kernel void k() {}"), 0o644))
	src, err := gpu.LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, "kernel void k() {}", src)
}

func TestKernelLookup(t *testing.T) {
	fake, cx := setup(t)
	prog, err := cx.BuildProgram("kernel void double() {}")
	require.NoError(t, err)
	assert.Equal(t, []string{"double"}, prog.KernelNames())

	_, err = prog.Kernel("triple")
	assert.ErrorIs(t, err, gpu.ErrBuild)
	log, _ := gpu.BuildLog(err)
	assert.Contains(t, log, "double")

	k, err := prog.Kernel("double")
	require.NoError(t, err)
	assert.Equal(t, "double", k.Name())
	assert.Equal(t, 2, k.NumArgs())

	require.NoError(t, prog.Release())
	_, err = prog.Kernel("double")
	assert.ErrorIs(t, err, gpu.ErrBuild)

	require.NoError(t, cx.Release())
	assertClean(t, fake)
}
