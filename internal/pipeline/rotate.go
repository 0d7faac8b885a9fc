package pipeline

import (
	"github.com/chewxy/math32"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/kernels"
)

// RotateRequest is one image rotation. Pixels is a single-channel image in
// row-major order.
type RotateRequest struct {
	Pixels        []float32
	Width, Height int

	// Theta is the rotation angle in radians.
	Theta float64
}

// Rotate rotates the image about its centre on the selected device. Output
// pixels whose source falls outside the image are 0. The range is
// (Width, Height) with no local extent.
func Rotate(cfg Config, req RotateRequest) (out []float32, report *Report, err error) {
	r := newRun(cfg, kernels.Rotation)
	report = r.report
	defer r.close(&err)
	switch {
	case req.Width <= 0 || req.Height <= 0:
		return nil, report, shapeError("image %dx%d must have positive size", req.Width, req.Height)
	case len(req.Pixels) != req.Width*req.Height:
		return nil, report, shapeError("image holds %d pixels, want %d", len(req.Pixels), req.Width*req.Height)
	}
	theta := float32(req.Theta)
	sin, cos := math32.Sin(theta), math32.Cos(theta)

	if err = r.open(); err != nil {
		return nil, report, err
	}

	k, err := r.kernel(kernels.Rotation)
	if err != nil {
		return nil, report, err
	}

	n := req.Width * req.Height
	var in, dst *gpu.Buffer
	err = r.stage("allocate", func() error {
		var err error
		if in, err = gpu.AllocateFor[float32](r.cx, n, gpu.ReadOnly); err != nil {
			return err
		}
		dst, err = gpu.AllocateFor[float32](r.cx, n, gpu.ReadWrite)
		return err
	})
	if err != nil {
		return nil, report, err
	}

	q := r.cx.Queue()
	err = r.stage("upload", func() error {
		return gpu.Upload(q, in, req.Pixels)
	})
	if err != nil {
		return nil, report, err
	}

	err = k.SetArgs(
		gpu.Mem(dst),
		gpu.Mem(in),
		gpu.Scalar(int32(req.Width)),
		gpu.Scalar(int32(req.Height)),
		gpu.Scalar(sin),
		gpu.Scalar(cos),
	)
	if err != nil {
		return nil, report, err
	}

	if err := r.dispatch(k, gpu.Range(req.Width, req.Height)); err != nil {
		return nil, report, err
	}

	out = make([]float32, n)
	err = r.stage("retrieve", func() error {
		return gpu.Retrieve(q, dst, out)
	})
	if err != nil {
		return nil, report, err
	}
	return out, report, nil
}

// RotateReference rotates on the host with the kernel's sampling rule.
func RotateReference(src []float32, w, h int, theta float64) []float32 {
	t := float32(theta)
	sin, cos := math32.Sin(t), math32.Cos(t)
	x0, y0 := float32(w)/2, float32(h)/2
	out := make([]float32, w*h)
	for iy := 0; iy < h; iy++ {
		for ix := 0; ix < w; ix++ {
			xOff, yOff := float32(ix)-x0, float32(iy)-y0
			// Explicit conversions keep each product rounded to float32
			// so the arithmetic is never fused.
			xpos := int(float32(xOff*cos) + float32(yOff*sin) + x0)
			ypos := int(float32(yOff*cos) - float32(xOff*sin) + y0)
			if xpos >= 0 && xpos < w && ypos >= 0 && ypos < h {
				out[iy*w+ix] = src[ypos*w+xpos]
			}
		}
	}
	return out
}
