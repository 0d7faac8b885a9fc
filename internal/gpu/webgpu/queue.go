//go:build !nogpu

package webgpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// uniformSize is the minimum uniform binding size.
const uniformSize = 16

type queue struct{ cx *context }

func (q *queue) Release() error { return nil }

// Finish is immediate: every submission waits on its fence.
func (q *queue) Finish() error { return nil }

func (q *queue) WriteBuffer(buf driver.Buffer, src []byte) error {
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("buffer belongs to another backend (%T)", buf)
	}
	data := src
	if n := align4(uint64(len(src))); n != uint64(len(src)) {
		data = make([]byte, n)
		copy(data, src)
	}
	q.cx.queue.WriteBuffer(b.raw, 0, data)
	return nil
}

// ReadBuffer copies the buffer into a mappable staging buffer and reads that
// back once the copy has completed.
func (q *queue) ReadBuffer(buf driver.Buffer, dst []byte) error {
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("buffer belongs to another backend (%T)", buf)
	}
	dev := q.cx.device
	staging, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "kernelrun_staging", Size: b.padded,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer dev.DestroyBuffer(staging)

	err = q.submit("kernelrun_readback", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: b.padded},
		})
	})
	if err != nil {
		return err
	}

	readback := make([]byte, b.padded)
	if err := q.cx.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	copy(dst, readback)
	return nil
}

// submit records one command buffer and blocks until the device signals its
// fence.
func (q *queue) submit(label string, record func(hal.CommandEncoder)) error {
	dev := q.cx.device
	encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	record(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer dev.FreeCommandBuffer(cmdBuf)

	fence, err := dev.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer dev.DestroyFence(fence)
	if err := q.cx.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return waitFence(func(d time.Duration) (bool, error) {
		return dev.Wait(fence, 1, d)
	})
}

// workgroups converts the index space into a workgroup count. An explicit
// local extent must equal the entry point's @workgroup_size. Without one the
// count is rounded up and the kernel must ignore invocations past the global
// extent.
func workgroups(ep entryPoint, nd driver.NDRange) ([3]uint32, error) {
	var count [3]uint32
	for d := 0; d < 3; d++ {
		global := 1
		if d < len(nd.Global) {
			global = nd.Global[d]
		}
		wg := ep.workgroup[d]
		if nd.Local == nil {
			count[d] = uint32((global + wg - 1) / wg) //nolint:gosec // bounded by global extent
			continue
		}
		if d < len(nd.Local) && nd.Local[d] != wg {
			return count, fmt.Errorf("%w: local extent %v differs from @workgroup_size%v of %s",
				driver.ErrInvalidWorkSize, nd.Local, ep.workgroup, ep.name)
		}
		if global%wg != 0 {
			return count, fmt.Errorf("%w: global extent %v is not a multiple of @workgroup_size%v of %s",
				driver.ErrInvalidWorkSize, nd.Global, ep.workgroup, ep.name)
		}
		count[d] = uint32(global / wg) //nolint:gosec // bounded by global extent
	}
	return count, nil
}

func (q *queue) Dispatch(dk driver.Kernel, nd driver.NDRange) error {
	k, ok := dk.(*kernel)
	if !ok {
		return fmt.Errorf("kernel belongs to another backend (%T)", dk)
	}
	count, err := workgroups(k.ep, nd)
	if err != nil {
		return err
	}

	dev := q.cx.device
	entries := make([]gputypes.BindGroupEntry, len(k.args))
	var uniforms []hal.Buffer
	defer func() {
		for _, ub := range uniforms {
			dev.DestroyBuffer(ub)
		}
	}()
	for i, a := range k.args {
		if a.IsBuffer() {
			b := a.Buffer.(*buffer)
			entries[i] = gputypes.BindGroupEntry{
				Binding:  uint32(i), //nolint:gosec // small binding index
				Resource: gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Offset: 0, Size: b.padded},
			}
			continue
		}
		ub, err := dev.CreateBuffer(&hal.BufferDescriptor{
			Label: "kernelrun_uniform", Size: uniformSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create uniform buffer %d: %w", i, err)
		}
		uniforms = append(uniforms, ub)
		data := make([]byte, uniformSize)
		copy(data, a.Bytes)
		q.cx.queue.WriteBuffer(ub, 0, data)
		entries[i] = gputypes.BindGroupEntry{
			Binding:  uint32(i), //nolint:gosec // small binding index
			Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: uniformSize},
		}
	}

	bg, err := dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: k.ep.name + "_bind", Layout: k.bindLayout, Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer dev.DestroyBindGroup(bg)

	return q.submit(k.ep.name, func(enc hal.CommandEncoder) {
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: k.ep.name})
		pass.SetPipeline(k.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(count[0], count[1], count[2])
		pass.End()
	})
}
