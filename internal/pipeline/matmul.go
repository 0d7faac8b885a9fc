package pipeline

import (
	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/kernels"
)

// DefaultLocal is the work-group extent of the matrix multiply.
var DefaultLocal = []int{16, 16}

// MatMulDims are the shapes of A (WidthA x HeightA) and B (WidthB x
// HeightB). The product C is WidthB x HeightA.
type MatMulDims struct {
	WidthA, HeightA int
	WidthB, HeightB int
}

// Square returns the dims of two n x n matrices.
func Square(n int) MatMulDims {
	return MatMulDims{WidthA: n, HeightA: n, WidthB: n, HeightB: n}
}

func (d MatMulDims) check(a, b []float32) error {
	switch {
	case d.WidthA <= 0 || d.HeightA <= 0 || d.WidthB <= 0 || d.HeightB <= 0:
		return shapeError("dimensions %+v must be positive", d)
	case d.WidthA != d.HeightB:
		return shapeError("width of A (%d) must equal height of B (%d)", d.WidthA, d.HeightB)
	case len(a) != d.WidthA*d.HeightA:
		return shapeError("A holds %d values, want %d", len(a), d.WidthA*d.HeightA)
	case len(b) != d.WidthB*d.HeightB:
		return shapeError("B holds %d values, want %d", len(b), d.WidthB*d.HeightB)
	}
	return nil
}

// MatMulRequest is one matrix multiply.
type MatMulRequest struct {
	A, B []float32
	Dims MatMulDims

	// Local is the work-group extent; nil means DefaultLocal and an empty
	// slice lets the backend choose.
	Local []int
}

// MatMul computes C = A * B on the selected device. The global range is
// (WidthB, HeightA), one work-item per element of C.
func MatMul(cfg Config, req MatMulRequest) (c []float32, report *Report, err error) {
	r := newRun(cfg, kernels.MatMul)
	report = r.report
	defer r.close(&err)
	d := req.Dims
	if err := d.check(req.A, req.B); err != nil {
		return nil, report, err
	}
	local := req.Local
	if local == nil {
		local = DefaultLocal
	}

	if err = r.open(); err != nil {
		return nil, report, err
	}

	k, err := r.kernel(kernels.MatMul)
	if err != nil {
		return nil, report, err
	}

	var bufA, bufB, bufC *gpu.Buffer
	err = r.stage("allocate", func() error {
		var err error
		if bufA, err = gpu.AllocateFor[float32](r.cx, len(req.A), gpu.ReadOnly); err != nil {
			return err
		}
		if bufB, err = gpu.AllocateFor[float32](r.cx, len(req.B), gpu.ReadOnly); err != nil {
			return err
		}
		bufC, err = gpu.AllocateFor[float32](r.cx, d.HeightA*d.WidthB, gpu.WriteOnly)
		return err
	})
	if err != nil {
		return nil, report, err
	}

	q := r.cx.Queue()
	err = r.stage("upload", func() error {
		if err := gpu.Upload(q, bufA, req.A); err != nil {
			return err
		}
		return gpu.Upload(q, bufB, req.B)
	})
	if err != nil {
		return nil, report, err
	}

	err = k.SetArgs(
		gpu.Mem(bufC),
		gpu.Scalar(int32(d.WidthA)),
		gpu.Scalar(int32(d.HeightA)),
		gpu.Scalar(int32(d.WidthB)),
		gpu.Scalar(int32(d.HeightB)),
		gpu.Mem(bufA),
		gpu.Mem(bufB),
	)
	if err != nil {
		return nil, report, err
	}

	if err := r.dispatch(k, gpu.Range(d.WidthB, d.HeightA).WithLocal(local...)); err != nil {
		return nil, report, err
	}

	c = make([]float32, d.HeightA*d.WidthB)
	err = r.stage("retrieve", func() error {
		return gpu.Retrieve(q, bufC, c)
	})
	if err != nil {
		return nil, report, err
	}
	return c, report, nil
}

// MatMulReference multiplies on the host in float64 for checking results.
func MatMulReference(a, b []float32, d MatMulDims) []float64 {
	c := make([]float64, d.HeightA*d.WidthB)
	for row := 0; row < d.HeightA; row++ {
		for col := 0; col < d.WidthB; col++ {
			var sum float64
			for i := 0; i < d.WidthA; i++ {
				sum += float64(a[row*d.WidthA+i]) * float64(b[i*d.WidthB+col])
			}
			c[row*d.WidthB+col] = sum
		}
	}
	return c
}

// Ramp returns n values 0, 1, ..., n-1.
func Ramp(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i)
	}
	return v
}
