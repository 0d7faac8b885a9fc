package driver

import (
	"fmt"
	"strings"
)

// Language identifies a kernel source language.
type Language string

const (
	LanguageGo      Language = "go"
	LanguageOpenCLC Language = "opencl-c"
	LanguageWGSL    Language = "wgsl"
)

// DeviceClass selects devices by kind.
type DeviceClass int

const (
	ClassAny DeviceClass = iota
	ClassCPU
	ClassGPU
	ClassAccelerator
)

func (c DeviceClass) String() string {
	switch c {
	case ClassAny:
		return "any"
	case ClassCPU:
		return "cpu"
	case ClassGPU:
		return "gpu"
	case ClassAccelerator:
		return "accelerator"
	default:
		return fmt.Sprintf("DeviceClass(%d)", int(c))
	}
}

// Matches reports whether a device of class d satisfies a request for c.
func (c DeviceClass) Matches(d DeviceClass) bool {
	return c == ClassAny || c == d
}

// ParseDeviceClass parses "any", "cpu", "gpu" or "accelerator".
func ParseDeviceClass(s string) (DeviceClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "all", "default":
		return ClassAny, nil
	case "cpu":
		return ClassCPU, nil
	case "gpu":
		return ClassGPU, nil
	case "accelerator", "acc":
		return ClassAccelerator, nil
	}
	return ClassAny, fmt.Errorf("unknown device class %q (want any, cpu, gpu or accelerator)", s)
}

// AccessMode is the access a kernel has to a buffer.
type AccessMode int

const (
	ReadWrite AccessMode = iota
	ReadOnly
	WriteOnly
)

func (m AccessMode) String() string {
	switch m {
	case ReadWrite:
		return "read-write"
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	default:
		return fmt.Sprintf("AccessMode(%d)", int(m))
	}
}

// PlatformInfo describes a platform.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
}

// DeviceInfo describes a device.
type DeviceInfo struct {
	Name         string
	Vendor       string
	Version      string
	Class        DeviceClass
	ComputeUnits int
	MemoryBytes  int64
	// MaxWorkGroupSize is the largest number of items in one work-group, or 0
	// when the backend does not report it.
	MaxWorkGroupSize int
}

// NDRange is an index space of one to three dimensions. Local is nil when the
// driver chooses the grouping.
type NDRange struct {
	Global []int
	Local  []int
}

// Dims returns the number of dimensions.
func (r NDRange) Dims() int { return len(r.Global) }

// Items returns the total number of points in the global extent.
func (r NDRange) Items() int {
	if len(r.Global) == 0 {
		return 0
	}
	n := 1
	for _, g := range r.Global {
		n *= g
	}
	return n
}

func (r NDRange) String() string {
	if r.Local == nil {
		return fmt.Sprintf("global%v", r.Global)
	}
	return fmt.Sprintf("global%v local%v", r.Global, r.Local)
}

// Arg is a bound kernel argument: either a buffer or a scalar.
type Arg struct {
	// Buffer is set for memory arguments.
	Buffer Buffer

	// Value is the typed scalar (int32, uint32, int64, uint64, float32 or
	// float64) for scalar arguments.
	Value any

	// Bytes is the little-endian encoding of Value.
	Bytes []byte
}

// IsBuffer reports whether the argument is a memory argument.
func (a Arg) IsBuffer() bool { return a.Buffer != nil }
