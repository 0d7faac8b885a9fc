package host

import (
	"errors"
	"fmt"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

type queue struct {
	units int
}

func (q *queue) Release() error { return nil }

// Finish is immediate: every submission completes before it returns.
func (q *queue) Finish() error { return nil }

func (q *queue) WriteBuffer(buf driver.Buffer, src []byte) error {
	b, ok := buf.(*buffer)
	if !ok || b.data == nil {
		return errors.New("invalid host buffer")
	}
	copy(b.data, src)
	return nil
}

func (q *queue) ReadBuffer(buf driver.Buffer, dst []byte) error {
	b, ok := buf.(*buffer)
	if !ok || b.data == nil {
		return errors.New("invalid host buffer")
	}
	copy(dst, b.data)
	return nil
}

// geometry is the resolved index space of one dispatch.
type geometry struct {
	dims   int
	global [3]int
	local  [3]int
	groups [3]int
}

func resolve(nd driver.NDRange) (geometry, error) {
	g := geometry{dims: len(nd.Global)}
	for d := 0; d < 3; d++ {
		g.global[d], g.local[d] = 1, 1
	}
	copy(g.global[:], nd.Global)
	if nd.Local != nil {
		copy(g.local[:], nd.Local)
	} else {
		// One group per row of dimension 0.
		g.local[0] = g.global[0]
		if g.local[0] > MaxWorkGroupSize {
			g.local[0] = largestDivisorAtMost(g.global[0], MaxWorkGroupSize)
		}
	}
	size := 1
	for d := 0; d < 3; d++ {
		if g.local[d] <= 0 || g.global[d]%g.local[d] != 0 {
			return g, fmt.Errorf("%w: local %v does not divide global %v", driver.ErrInvalidWorkSize, nd.Local, nd.Global)
		}
		g.groups[d] = g.global[d] / g.local[d]
		size *= g.local[d]
	}
	if size > MaxWorkGroupSize {
		return g, fmt.Errorf("%w: work-group of %d items exceeds %d", driver.ErrInvalidWorkSize, size, MaxWorkGroupSize)
	}
	return g, nil
}

func largestDivisorAtMost(n, max int) int {
	for d := max; d > 1; d-- {
		if n%d == 0 {
			return d
		}
	}
	return 1
}

// Dispatch runs every work-group and returns once all have finished. Groups
// run concurrently on up to units goroutines; items within a group run in
// order.
func (q *queue) Dispatch(k driver.Kernel, nd driver.NDRange) error {
	hk, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("kernel belongs to another backend (%T)", k)
	}
	geo, err := resolve(nd)
	if err != nil {
		return err
	}
	args, err := hk.callArgs()
	if err != nil {
		return err
	}

	total := geo.groups[0] * geo.groups[1] * geo.groups[2]
	var eg errgroup.Group
	eg.SetLimit(q.units)
	for n := 0; n < total; n++ {
		group := [3]int{
			n % geo.groups[0],
			(n / geo.groups[0]) % geo.groups[1],
			n / (geo.groups[0] * geo.groups[1]),
		}
		eg.Go(func() error {
			return hk.runGroup(geo, group, args)
		})
	}
	return eg.Wait()
}

func (k *kernel) runGroup(geo geometry, group [3]int, shared []reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kernel %s faulted in group %v: %v", k.name, group[:geo.dims], r)
		}
	}()

	args := make([]reflect.Value, len(shared))
	copy(args, shared)
	it := Item{dims: geo.dims, group: group, gsize: geo.global, lsize: geo.local}
	for z := 0; z < geo.local[2]; z++ {
		for y := 0; y < geo.local[1]; y++ {
			for x := 0; x < geo.local[0]; x++ {
				it.local = [3]int{x, y, z}
				it.global = [3]int{
					group[0]*geo.local[0] + x,
					group[1]*geo.local[1] + y,
					group[2]*geo.local[2] + z,
				}
				args[0] = reflect.ValueOf(it)
				k.fn.Call(args)
			}
		}
	}
	return nil
}
