package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// Number is a scalar kernel argument type of fixed byte width.
type Number interface {
	int32 | uint32 | int64 | uint64 | float32 | float64
}

// Arg is a positional kernel argument: a buffer or a scalar.
type Arg struct {
	buf   *Buffer
	value any
	bytes []byte
}

// Mem passes a buffer argument.
func Mem(b *Buffer) Arg { return Arg{buf: b} }

// Scalar passes a plain value argument.
func Scalar[T Number](v T) Arg {
	b, _ := binary.Append(nil, binary.LittleEndian, v)
	return Arg{value: v, bytes: b}
}

func (a Arg) String() string {
	if a.buf != nil {
		return fmt.Sprintf("buffer(%d bytes, %s)", a.buf.size, a.buf.access)
	}
	return fmt.Sprintf("%T(%v)", a.value, a.value)
}

func (a Arg) lower() (driver.Arg, error) {
	if a.buf != nil {
		if a.buf.Released() {
			return driver.Arg{}, errors.New("buffer already released")
		}
		return driver.Arg{Buffer: a.buf.impl}, nil
	}
	if a.value == nil || len(a.bytes) == 0 {
		return driver.Arg{}, errors.New("empty argument")
	}
	return driver.Arg{Value: a.value, Bytes: a.bytes}, nil
}
