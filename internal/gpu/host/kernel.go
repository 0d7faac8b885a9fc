package host

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

type kernel struct {
	name   string
	fn     reflect.Value
	params []reflect.Type
	args   []reflect.Value
	bufs   []*buffer
}

func (k *kernel) Name() string { return k.name }
func (k *kernel) NumArgs() int { return len(k.params) }

func (k *kernel) Release() error {
	k.args, k.bufs = nil, nil
	return nil
}

// paramKind classifies a kernel parameter: true for buffer (slice)
// parameters, false for scalars.
func paramKind(t reflect.Type) (bool, error) {
	switch t.Kind() {
	case reflect.Slice:
		switch t.Elem().Kind() {
		case reflect.Float32, reflect.Float64, reflect.Int32, reflect.Uint32,
			reflect.Int64, reflect.Uint64, reflect.Uint8, reflect.Int8:
			return true, nil
		}
		return false, fmt.Errorf("unsupported buffer element type %s", t.Elem())
	case reflect.Float32, reflect.Float64, reflect.Int32, reflect.Uint32, reflect.Int64, reflect.Uint64:
		return false, nil
	}
	return false, fmt.Errorf("unsupported parameter type %s", t)
}

func (k *kernel) SetArg(index int, a driver.Arg) error {
	pt := k.params[index]
	isBuf, err := paramKind(pt)
	if err != nil {
		return err
	}

	if a.IsBuffer() {
		if !isBuf {
			return fmt.Errorf("parameter is scalar %s, got a buffer", pt)
		}
		b, ok := a.Buffer.(*buffer)
		if !ok {
			return fmt.Errorf("buffer belongs to another backend (%T)", a.Buffer)
		}
		if b.Size()%int64(pt.Elem().Size()) != 0 {
			return fmt.Errorf("buffer of %d bytes is not a whole number of %s", b.Size(), pt.Elem())
		}
		k.bufs[index] = b
		k.args[index] = reflect.Value{}
		return nil
	}

	if isBuf {
		return fmt.Errorf("parameter is buffer %s, got scalar %T", pt, a.Value)
	}
	v := reflect.ValueOf(a.Value)
	if v.Type() != pt {
		return fmt.Errorf("parameter is %s, got %T", pt, a.Value)
	}
	k.bufs[index] = nil
	k.args[index] = v
	return nil
}

// callArgs materializes the argument list. Buffers are passed as slices
// aliasing device memory, so kernel writes land directly in the buffer.
func (k *kernel) callArgs() ([]reflect.Value, error) {
	out := make([]reflect.Value, len(k.params)+1)
	for i, pt := range k.params {
		if b := k.bufs[i]; b != nil {
			if b.data == nil {
				return nil, fmt.Errorf("argument %d: buffer released", i)
			}
			n := len(b.data) / int(pt.Elem().Size())
			out[i+1] = reflect.SliceAt(pt.Elem(), unsafe.Pointer(&b.data[0]), n) //nolint:gosec // aligned device memory
			continue
		}
		if !k.args[i].IsValid() {
			return nil, fmt.Errorf("argument %d not bound", i)
		}
		out[i+1] = k.args[i]
	}
	return out, nil
}
