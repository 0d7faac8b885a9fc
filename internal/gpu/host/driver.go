// Package host implements a compute backend that runs kernels on the host
// CPU. Kernels are Go source compiled at run time by an embedded interpreter;
// work-groups execute concurrently across the configured compute units.
//
// A kernel entry point is any top-level function whose first parameter is a
// clc.Item:
//
//	package kernels
//
//	import "clc"
//
//	func scale(it clc.Item, out []float32, in []float32, k float32) {
//		i := it.GlobalID(0)
//		out[i] = in[i] * k
//	}
//
// Slice parameters bind to buffers and scalar parameters bind to scalars of
// the same type. Only the math and clc packages may be imported.
package host

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
	"github.com/xupit3r/kernelrun/internal/system"
)

// Name is the name the backend registers under.
const Name = "host"

// DefaultMemoryLimit is the device memory budget when none is configured.
const DefaultMemoryLimit = 1 << 30

// MaxWorkGroupSize is the largest number of items in one work-group.
const MaxWorkGroupSize = 1024

// Options tunes the host device.
type Options struct {
	// ComputeUnits bounds how many work-groups run at once. Zero means
	// GOMAXPROCS.
	ComputeUnits int

	// MemoryLimit is the device memory budget in bytes. Zero means
	// DefaultMemoryLimit or half of the free host memory, whichever is
	// smaller.
	MemoryLimit int64
}

func (o Options) withDefaults() Options {
	if o.ComputeUnits <= 0 {
		o.ComputeUnits = runtime.GOMAXPROCS(0)
	}
	if o.MemoryLimit <= 0 {
		o.MemoryLimit = system.Budget(DefaultMemoryLimit)
	}
	return o
}

// Driver is the host backend.
type Driver struct {
	mu   sync.RWMutex
	opts Options
}

// New returns a host backend with the given options.
func New(opts Options) *Driver {
	return &Driver{opts: opts.withDefaults()}
}

var defaultDriver = New(Options{})

func init() {
	driver.Register(Name, 100, defaultDriver)
}

// Configure changes the options of the registered host backend. Contexts
// created afterwards use the new settings.
func Configure(opts Options) {
	defaultDriver.mu.Lock()
	defer defaultDriver.mu.Unlock()
	defaultDriver.opts = opts.withDefaults()
}

func (d *Driver) options() Options {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.opts
}

func (d *Driver) Name() string              { return Name }
func (d *Driver) Language() driver.Language { return driver.LanguageGo }

func (d *Driver) Platforms() ([]driver.Platform, error) {
	return []driver.Platform{&platform{d: d}}, nil
}

type platform struct{ d *Driver }

func (p *platform) Info() driver.PlatformInfo {
	return driver.PlatformInfo{
		Name:    "Go Host",
		Vendor:  "kernelrun",
		Version: runtime.Version(),
	}
}

func (p *platform) Devices() ([]driver.Device, error) {
	return []driver.Device{&device{d: p.d}}, nil
}

type device struct{ d *Driver }

func (v *device) Info() driver.DeviceInfo {
	opts := v.d.options()
	return driver.DeviceInfo{
		Name:             fmt.Sprintf("CPU (%s/%s)", runtime.GOOS, runtime.GOARCH),
		Vendor:           "kernelrun",
		Version:          runtime.Version(),
		Class:            driver.ClassCPU,
		ComputeUnits:     opts.ComputeUnits,
		MemoryBytes:      opts.MemoryLimit,
		MaxWorkGroupSize: MaxWorkGroupSize,
	}
}

func (v *device) CreateContext() (driver.Context, error) {
	opts := v.d.options()
	return &context{
		units: opts.ComputeUnits,
		mem:   newMemory(opts.MemoryLimit),
	}, nil
}

type context struct {
	units int
	mem   *memory
}

func (c *context) CreateQueue() (driver.Queue, error) {
	return &queue{units: c.units}, nil
}

func (c *context) CreateBuffer(size int64, access driver.AccessMode) (driver.Buffer, error) {
	return c.mem.allocate(size, access)
}

func (c *context) CreateProgram(source string) (driver.Program, error) {
	return &program{source: source}, nil
}

func (c *context) Release() error {
	if n := c.mem.outstanding(); n > 0 {
		return fmt.Errorf("context released with %d live buffers", n)
	}
	return nil
}
