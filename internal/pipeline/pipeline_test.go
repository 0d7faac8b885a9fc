package pipeline

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/gpu/driver"
	"github.com/xupit3r/kernelrun/internal/gpu/gputest"
	_ "github.com/xupit3r/kernelrun/internal/gpu/host"
)

var onHost = Config{Selection: gpu.Selection{Platform: 0, Class: gpu.ClassCPU}}

func TestMatMulOnHost(t *testing.T) {
	const n = 128
	a, b := Ramp(n*n), Ramp(n*n)

	c, report, err := MatMul(onHost, MatMulRequest{A: a, B: b, Dims: Square(n)})
	require.NoError(t, err)
	require.Len(t, c, n*n)

	want := MatMulReference(a, b, Square(n))
	for i := range c {
		if rel := math.Abs(float64(c[i])-want[i]) / math.Max(want[i], 1); rel > 1e-4 {
			t.Fatalf("C[%d] = %v, want %v (relative error %g)", i, c[i], want[i], rel)
		}
	}

	assert.Equal(t, "simpleMultiply", report.EntryPoint)
	assert.Equal(t, "global[128 128] local[16 16]", report.Range)
	var names []string
	for _, s := range report.Stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"discover", "context", "build", "allocate", "upload", "dispatch", "retrieve"}, names)
	assert.NotEmpty(t, report.String())
}

func TestMatMulRejectsUnevenWorkGroups(t *testing.T) {
	_, _, err := MatMul(onHost, MatMulRequest{
		A: Ramp(64), B: Ramp(64), Dims: Square(8), Local: []int{16, 16},
	})
	assert.ErrorIs(t, err, gpu.ErrInvalidWorkSize)
}

func TestMatMulShapeChecks(t *testing.T) {
	tests := map[string]MatMulRequest{
		"inner mismatch": {A: Ramp(6), B: Ramp(6), Dims: MatMulDims{WidthA: 3, HeightA: 2, WidthB: 3, HeightB: 2}},
		"short A":        {A: Ramp(3), B: Ramp(4), Dims: Square(2)},
		"short B":        {A: Ramp(4), B: Ramp(3), Dims: Square(2)},
		"zero":           {Dims: Square(0)},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, report, err := MatMul(onHost, req)
			assert.ErrorIs(t, err, gpu.ErrTransfer)
			assert.ErrorIs(t, err, errShape)
			assert.Empty(t, report.Stages, "backend touched before shape check")
		})
	}
}

func TestRotateOnHost(t *testing.T) {
	const w, h = 64, 48
	src := make([]float32, w*h)
	for i := range src {
		src[i] = float32(i%w + i/w)
	}

	out, report, err := Rotate(onHost, RotateRequest{Pixels: src, Width: w, Height: h, Theta: math.Pi / 6})
	require.NoError(t, err)
	assert.Equal(t, "img_rotate", report.EntryPoint)
	assert.Equal(t, "global[64 48]", report.Range)

	want := RotateReference(src, w, h, math.Pi/6)
	assert.Equal(t, want, out)
	assert.Zero(t, out[0], "corner samples outside the source must be background")
}

func TestRotateByZeroIsIdentity(t *testing.T) {
	src := Ramp(16 * 16)
	out, _, err := Rotate(onHost, RotateRequest{Pixels: src, Width: 16, Height: 16})
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestRotateShapeChecks(t *testing.T) {
	_, _, err := Rotate(onHost, RotateRequest{Pixels: Ramp(10), Width: 4, Height: 4})
	assert.ErrorIs(t, err, gpu.ErrTransfer)
	_, _, err = Rotate(onHost, RotateRequest{Width: 0, Height: 4})
	assert.ErrorIs(t, err, gpu.ErrTransfer)
}

func TestKernelDirOverride(t *testing.T) {
	dir := t.TempDir()

	_, _, err := MatMul(Config{Selection: onHost.Selection, KernelDir: dir}, MatMulRequest{A: Ramp(256), B: Ramp(256), Dims: Square(16)})
	assert.ErrorIs(t, err, gpu.ErrSourceUnavailable)

	broken := "package kernels\n\nimport \"clc\"\n\nfunc simpleMultiply(it clc.Item, c []float32) {\n\tc[0] = undefinedThing\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "matmul.gokernel"), []byte(broken), 0o644))
	_, _, err = MatMul(Config{Selection: onHost.Selection, KernelDir: dir}, MatMulRequest{A: Ramp(256), B: Ramp(256), Dims: Square(16)})
	require.ErrorIs(t, err, gpu.ErrBuild)
	log, ok := gpu.BuildLog(err)
	require.True(t, ok)
	assert.Contains(t, log, "undefinedThing")
}

// fakeMatMul multiplies through the fake driver so argument order is checked
// without a real backend.
var fakeMatMul = gputest.KernelSpec{
	NumArgs: 7,
	Run: func(nd driver.NDRange, args []driver.Arg) error {
		c := gputest.Floats(args[0])
		wA, wB := int(args[1].Value.(int32)), int(args[3].Value.(int32))
		a, b := gputest.Floats(args[5]), gputest.Floats(args[6])
		for row := 0; row < nd.Global[1]; row++ {
			for col := 0; col < nd.Global[0]; col++ {
				var sum float32
				for i := 0; i < wA; i++ {
					sum += a[row*wA+i] * b[i*wB+col]
				}
				c[row*wB+col] = sum
			}
		}
		return nil
	},
}

// fakeRotate samples with the host reference: (dst, src, W, H, sin, cos).
var fakeRotate = gputest.KernelSpec{
	NumArgs: 6,
	Run: func(nd driver.NDRange, args []driver.Arg) error {
		dst, src := gputest.Floats(args[0]), gputest.Floats(args[1])
		w, h := int(args[2].Value.(int32)), int(args[3].Value.(int32))
		sin, cos := args[4].Value.(float32), args[5].Value.(float32)
		x0, y0 := float32(w)/2, float32(h)/2
		for iy := 0; iy < nd.Global[1]; iy++ {
			for ix := 0; ix < nd.Global[0]; ix++ {
				xOff, yOff := float32(ix)-x0, float32(iy)-y0
				xpos := int(float32(xOff*cos) + float32(yOff*sin) + x0)
				ypos := int(float32(yOff*cos) - float32(xOff*sin) + y0)
				dst[iy*w+ix] = 0
				if xpos >= 0 && xpos < w && ypos >= 0 && ypos < h {
					dst[iy*w+ix] = src[ypos*w+xpos]
				}
			}
		}
		return nil
	},
}

func installFake(t *testing.T) *gputest.Driver {
	fake := gputest.New("fake-cl", gpu.ClassGPU).
		SetLanguage(driver.LanguageOpenCLC).
		AddKernel("simpleMultiply", fakeMatMul).
		AddKernel("img_rotate", fakeRotate)
	gputest.Install(t, fake)
	return fake
}

var onFake = Config{Selection: gpu.Selection{Class: gpu.ClassGPU}}

func TestMatMulArgumentOrder(t *testing.T) {
	fake := installFake(t)
	d := MatMulDims{WidthA: 16, HeightA: 32, WidthB: 48, HeightB: 16}
	a, b := Ramp(16*32), Ramp(48*16)

	c, report, err := MatMul(onFake, MatMulRequest{A: a, B: b, Dims: d})
	require.NoError(t, err)
	assert.Equal(t, "opencl-c", report.Language)
	assert.Equal(t, "global[48 32] local[16 16]", report.Range)

	want := MatMulReference(a, b, d)
	for i := range c {
		require.InDelta(t, want[i], float64(c[i]), math.Abs(want[i])*1e-5+1e-3, "C[%d]", i)
	}
	assert.Empty(t, fake.Leaks())
	assert.Empty(t, fake.DoubleReleases())
}

// failureKinds maps each injected driver failure to the error kind a run
// reports for it.
var failureKinds = map[gputest.Stage]error{
	gputest.StagePlatforms: gpu.ErrNoDeviceAvailable,
	gputest.StageDevices:   gpu.ErrNoDeviceAvailable,
	gputest.StageContext:   gpu.ErrContextCreationFailed,
	gputest.StageQueue:     gpu.ErrContextCreationFailed,
	gputest.StageProgram:   gpu.ErrBuild,
	gputest.StageBuild:     gpu.ErrBuild,
	gputest.StageKernel:    gpu.ErrBuild,
	gputest.StageAllocate:  gpu.ErrAllocation,
	gputest.StageWrite:     gpu.ErrTransfer,
	gputest.StageDispatch:  gpu.ErrDispatch,
	gputest.StageRead:      gpu.ErrTransfer,
}

func TestMatMulReleasesOnEveryFailure(t *testing.T) {
	for _, stage := range gputest.Stages {
		t.Run(string(stage), func(t *testing.T) {
			fake := installFake(t)
			fake.Fail(stage, errors.New("injected"))

			_, _, err := MatMul(onFake, MatMulRequest{A: Ramp(256), B: Ramp(256), Dims: Square(16)})
			require.Error(t, err)
			assert.ErrorIs(t, err, failureKinds[stage])
			assert.Empty(t, fake.Leaks(), "leaked after %s failure", stage)
			assert.Empty(t, fake.DoubleReleases())
			assert.Equal(t, fake.Created("context"), fake.Released("context"))
		})
	}
}

func TestRotateOnFakeDriver(t *testing.T) {
	fake := installFake(t)
	src := Ramp(16 * 12)

	out, report, err := Rotate(onFake, RotateRequest{Pixels: src, Width: 16, Height: 12, Theta: math.Pi / 6})
	require.NoError(t, err)
	assert.Equal(t, "img_rotate", report.EntryPoint)
	assert.Equal(t, RotateReference(src, 16, 12, math.Pi/6), out)
	assert.Empty(t, fake.Leaks())
	assert.Empty(t, fake.DoubleReleases())
}

func TestRotateReleasesOnEveryFailure(t *testing.T) {
	for _, stage := range gputest.Stages {
		t.Run(string(stage), func(t *testing.T) {
			fake := installFake(t)
			fake.Fail(stage, errors.New("injected"))

			out, _, err := Rotate(onFake, RotateRequest{Pixels: Ramp(256), Width: 16, Height: 16, Theta: 0.5})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, failureKinds[stage])
			assert.Empty(t, fake.Leaks(), "leaked after %s failure", stage)
			assert.Empty(t, fake.DoubleReleases())
			assert.Equal(t, fake.Created("context"), fake.Released("context"))
		})
	}
}
