package gpu

import (
	"fmt"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// MaxDims is the highest supported index-space dimensionality.
const MaxDims = 3

// NDRange is the iteration domain of a dispatch: a global extent and an
// optional local (work-group) extent that must divide it exactly.
type NDRange driver.NDRange

// Range returns an index space with the given global extent and no local
// extent.
func Range(global ...int) NDRange {
	return NDRange{Global: append([]int(nil), global...)}
}

// WithLocal returns a copy of r grouped by the given local extent.
func (r NDRange) WithLocal(local ...int) NDRange {
	return NDRange{Global: r.Global, Local: append([]int(nil), local...)}
}

// Dims returns the number of dimensions.
func (r NDRange) Dims() int { return len(r.Global) }

// Items returns the number of points in the global extent.
func (r NDRange) Items() int { return driver.NDRange(r).Items() }

// Groups returns the number of work-groups per dimension. It is only
// meaningful for a valid range with a local extent.
func (r NDRange) Groups() []int {
	if r.Local == nil {
		return nil
	}
	g := make([]int, len(r.Global))
	for i := range r.Global {
		g[i] = r.Global[i] / r.Local[i]
	}
	return g
}

func (r NDRange) String() string { return driver.NDRange(r).String() }

// Validate checks the index space. A local extent that does not evenly divide
// the global extent is rejected; the domain is never padded or clipped.
func (r NDRange) Validate() error {
	const op = "validate index space"
	if len(r.Global) == 0 || len(r.Global) > MaxDims {
		return errorf(KindInvalidWorkSize, op, "%d dimensions (want 1..%d)", len(r.Global), MaxDims)
	}
	for i, g := range r.Global {
		if g <= 0 {
			return errorf(KindInvalidWorkSize, op, "global extent %v: dimension %d is %d", r.Global, i, g)
		}
	}
	if r.Local == nil {
		return nil
	}
	if len(r.Local) != len(r.Global) {
		return errorf(KindInvalidWorkSize, op, "local extent %v has %d dimensions, global %v has %d",
			r.Local, len(r.Local), r.Global, len(r.Global))
	}
	for i := range r.Local {
		if r.Local[i] <= 0 {
			return errorf(KindInvalidWorkSize, op, "local extent %v: dimension %d is %d", r.Local, i, r.Local[i])
		}
		if r.Global[i]%r.Local[i] != 0 {
			return &Error{
				Kind: KindInvalidWorkSize,
				Op:   op,
				Err: fmt.Errorf("local extent %v does not divide global extent %v in dimension %d",
					r.Local, r.Global, i),
			}
		}
	}
	return nil
}
