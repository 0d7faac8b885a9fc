package gpu

import (
	"fmt"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// Kernel is a program entry point plus its positional argument bindings.
// Bindings persist until rebound, so the same kernel can be dispatched again
// with some arguments changed.
type Kernel struct {
	handle
	name  string
	impl  driver.Kernel
	bound []bool
}

// Name returns the entry point name.
func (k *Kernel) Name() string { return k.name }

// NumArgs returns the number of declared parameters.
func (k *Kernel) NumArgs() int { return len(k.bound) }

// SetArg binds one argument by position.
func (k *Kernel) SetArg(index int, a Arg) error {
	const op = "bind argument"
	if k.Released() {
		return errorf(KindDispatchError, op, "kernel %s already released", k.name)
	}
	if index < 0 || index >= len(k.bound) {
		return errorf(KindDispatchError, op, "kernel %s: index %d out of range (%d parameters)", k.name, index, len(k.bound))
	}
	da, err := a.lower()
	if err != nil {
		return newError(KindDispatchError, op, fmt.Errorf("kernel %s argument %d: %w", k.name, index, err))
	}
	if err := k.impl.SetArg(index, da); err != nil {
		return newError(KindDispatchError, op, fmt.Errorf("kernel %s argument %d: %w", k.name, index, err))
	}
	k.bound[index] = true
	return nil
}

// SetArgs binds args in declaration order. The count must match the entry
// point's parameter list exactly.
func (k *Kernel) SetArgs(args ...Arg) error {
	if len(args) != len(k.bound) {
		return errorf(KindDispatchError, "bind arguments", "kernel %s takes %d arguments, got %d",
			k.name, len(k.bound), len(args))
	}
	for i, a := range args {
		if err := k.SetArg(i, a); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kernel) unbound() []int {
	var missing []int
	for i, ok := range k.bound {
		if !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
