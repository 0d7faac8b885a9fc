package gpu

import (
	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// AccessMode is the access a kernel has to a buffer.
type AccessMode = driver.AccessMode

const (
	ReadWrite = driver.ReadWrite
	ReadOnly  = driver.ReadOnly
	WriteOnly = driver.WriteOnly
)

// Buffer is a device-resident memory region of fixed size and access mode.
// Transfers always cover the whole buffer.
type Buffer struct {
	handle
	size   int64
	access AccessMode
	impl   driver.Buffer
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int64 { return b.size }

// Access returns the buffer's access mode.
func (b *Buffer) Access() AccessMode { return b.access }

// Allocate reserves size bytes of device memory.
func (cx *Context) Allocate(size int64, access AccessMode) (*Buffer, error) {
	const op = "allocate"
	if size <= 0 {
		return nil, errorf(KindAllocationError, op, "invalid buffer size %d", size)
	}
	if cx.isReleased() {
		return nil, errorf(KindAllocationError, op, "context already released")
	}
	impl, err := cx.impl.CreateBuffer(size, access)
	if err != nil {
		return nil, newError(KindAllocationError, op, err)
	}
	b := &Buffer{size: size, access: access, impl: impl}
	b.handle = handle{cx: cx, what: "buffer", release: impl.Release}
	if err := cx.track(op, KindAllocationError, b); err != nil {
		releaseOrWarn("buffer", impl.Release)
		return nil, err
	}
	slogger().Debugf("gpu: allocated %d bytes (%s)", size, access)
	return b, nil
}

// AllocateFor reserves a buffer sized for n elements of T.
func AllocateFor[T Element](cx *Context, n int, access AccessMode) (*Buffer, error) {
	return cx.Allocate(int64(n)*int64(sizeOf[T]()), access)
}
