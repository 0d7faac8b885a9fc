package gpu

import (
	"unsafe"
)

// Element is a host array element type that can be mirrored on a device.
type Element interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func sizeOf[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Bytes returns the byte view of a host array without copying.
func Bytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*sizeOf[T]()) //nolint:gosec // host array view
}

// Upload copies a whole host array into buf.
func Upload[T Element](q *Queue, buf *Buffer, src []T) error {
	return q.WriteBuffer(buf, Bytes(src))
}

// Download copies the whole of buf into a host array.
func Download[T Element](q *Queue, buf *Buffer, dst []T) error {
	return q.ReadBuffer(buf, Bytes(dst))
}
