// Package driver defines the low-level interface a compute backend implements.
//
// The object model follows the usual heterogeneous compute layering: a Driver
// exposes platforms, a platform exposes devices, a device creates contexts, and a
// context owns queues, buffers and programs. Programs produce kernels. None of
// these interfaces perform validation that the gpu package already performs;
// drivers may assume well-formed requests.
package driver

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrBuildFailure is returned by Program.Build when compilation failed and a
// build log is available through Program.BuildLog.
var ErrBuildFailure = errors.New("program build failure")

// ErrInvalidWorkSize is returned by drivers that reject an index space the
// backend cannot execute.
var ErrInvalidWorkSize = errors.New("invalid work size")

// Driver is a compute backend.
type Driver interface {
	// Name is a short identifier such as "host" or "opencl".
	Name() string

	// Language is the kernel source language the backend compiles.
	Language() Language

	// Platforms enumerates the platforms the backend can reach. An empty
	// slice is not an error.
	Platforms() ([]Platform, error)
}

// Platform is one implementation instance of a backend.
type Platform interface {
	Info() PlatformInfo
	Devices() ([]Device, error)
}

// Device is one execution unit within a platform.
type Device interface {
	Info() DeviceInfo
	CreateContext() (Context, error)
}

// Context is the allocation scope for queues, buffers and programs.
type Context interface {
	CreateQueue() (Queue, error)
	CreateBuffer(size int64, access AccessMode) (Buffer, error)
	CreateProgram(source string) (Program, error)
	Release() error
}

// Queue submits transfers and kernel launches in order. All methods block
// until the device has completed the submitted work.
type Queue interface {
	WriteBuffer(buf Buffer, src []byte) error
	ReadBuffer(buf Buffer, dst []byte) error
	Dispatch(k Kernel, nd NDRange) error
	Finish() error
	Release() error
}

// Buffer is a device-resident memory region.
type Buffer interface {
	Size() int64
	Access() AccessMode
	Release() error
}

// Program is kernel source compiled against a context.
type Program interface {
	// Build compiles the program. On a compiler failure it returns an error
	// wrapping ErrBuildFailure; the diagnostics are fetched with BuildLog.
	Build() error

	// BuildLog returns the compiler diagnostics of the last build.
	BuildLog() (string, error)

	// KernelNames lists the entry points of a built program.
	KernelNames() []string

	CreateKernel(name string) (Kernel, error)
	Release() error
}

// Kernel is a program entry point with bound arguments.
type Kernel interface {
	Name() string
	NumArgs() int
	SetArg(index int, arg Arg) error
	Release() error
}

type registration struct {
	name     string
	priority int
	seq      int
	drv      Driver
}

var (
	mu      sync.RWMutex
	drivers = make(map[string]registration)
	nextSeq int
)

// Register makes a backend available to discovery. Lower priorities are
// enumerated first. Registering the same name twice panics.
func Register(name string, priority int, d Driver) {
	mu.Lock()
	defer mu.Unlock()
	if d == nil {
		panic("driver: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic(fmt.Sprintf("driver: Register called twice for driver %s", name))
	}
	nextSeq++
	drivers[name] = registration{name: name, priority: priority, seq: nextSeq, drv: d}
}

// Unregister removes a backend. It is used by tests that install temporary
// drivers.
func Unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(drivers, name)
}

// Drivers returns the registered backends ordered by priority, then by
// registration order.
func Drivers() []Driver {
	mu.RLock()
	regs := make([]registration, 0, len(drivers))
	for _, r := range drivers {
		regs = append(regs, r)
	}
	mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})

	out := make([]Driver, len(regs))
	for i, r := range regs {
		out[i] = r.drv
	}
	return out
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Driver, bool) {
	mu.RLock()
	defer mu.RUnlock()
	r, ok := drivers[name]
	return r.drv, ok
}
