//go:build !nogpu

// Package webgpu runs WGSL compute kernels on Vulkan adapters through the
// wgpu hardware abstraction layer.
//
// Kernel arguments map to bindings of group 0 by position: argument i binds
// @binding(i). Storage bindings take buffers and uniform bindings take
// scalars. The work-group size is fixed by the entry point's
// @workgroup_size; a dispatch's local extent must match it. Dispatches
// without a local extent are rounded up to whole workgroups, so kernels
// bounds-check their invocation ID.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// Name is the name the backend registers under.
const Name = "webgpu"

// Driver enumerates Vulkan adapters. The instance is created on first use
// and lives for the rest of the process.
type Driver struct {
	once     sync.Once
	instance hal.Instance
	adapters []hal.ExposedAdapter
	initErr  error
}

var defaultDriver = &Driver{}

func init() {
	driver.Register(Name, 10, defaultDriver)
}

func (d *Driver) Name() string              { return Name }
func (d *Driver) Language() driver.Language { return driver.LanguageWGSL }

func (d *Driver) init() {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		d.initErr = fmt.Errorf("vulkan backend not available")
		return
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		d.initErr = fmt.Errorf("create instance: %w", err)
		return
	}
	d.instance = instance
	d.adapters = instance.EnumerateAdapters(nil)
}

// Platforms reports one platform when at least one adapter is present and
// none otherwise.
func (d *Driver) Platforms() ([]driver.Platform, error) {
	d.once.Do(d.init)
	if d.initErr != nil {
		return nil, d.initErr
	}
	if len(d.adapters) == 0 {
		return nil, nil
	}
	return []driver.Platform{&platform{d: d}}, nil
}

type platform struct{ d *Driver }

func (p *platform) Info() driver.PlatformInfo {
	return driver.PlatformInfo{Name: "WebGPU (Vulkan)", Vendor: "gogpu", Version: "wgpu-hal"}
}

func (p *platform) Devices() ([]driver.Device, error) {
	out := make([]driver.Device, len(p.d.adapters))
	for i := range p.d.adapters {
		out[i] = &device{d: p.d, adapter: &p.d.adapters[i]}
	}
	return out, nil
}

type device struct {
	d       *Driver
	adapter *hal.ExposedAdapter
}

func (v *device) Info() driver.DeviceInfo {
	lim := gputypes.DefaultLimits()
	return driver.DeviceInfo{
		Name:             v.adapter.Info.Name,
		Vendor:           "vulkan",
		Class:            classOf(v.adapter.Info.DeviceType),
		ComputeUnits:     1,
		MemoryBytes:      int64(lim.MaxBufferSize), //nolint:gosec // limit fits int64
		MaxWorkGroupSize: int(lim.MaxComputeWorkgroupSizeX),
	}
}

func (v *device) CreateContext() (driver.Context, error) {
	open, err := v.adapter.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &context{device: open.Device, queue: open.Queue}, nil
}

type context struct {
	device hal.Device
	queue  hal.Queue
}

func (c *context) CreateQueue() (driver.Queue, error) {
	return &queue{cx: c}, nil
}

func (c *context) CreateProgram(source string) (driver.Program, error) {
	return &program{cx: c, source: source}, nil
}

func (c *context) Release() error {
	c.device.Destroy()
	return nil
}

type buffer struct {
	cx     *context
	raw    hal.Buffer
	size   int64
	padded uint64
	access driver.AccessMode
}

// CreateBuffer allocates a storage buffer. Sizes are padded to a multiple
// of four bytes as copy operations require.
func (c *context) CreateBuffer(size int64, access driver.AccessMode) (driver.Buffer, error) {
	padded := align4(uint64(size)) //nolint:gosec // size validated positive
	raw, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "kernelrun_storage", Size: padded,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage buffer: %w", err)
	}
	return &buffer{cx: c, raw: raw, size: size, padded: padded, access: access}, nil
}

func (b *buffer) Size() int64               { return b.size }
func (b *buffer) Access() driver.AccessMode { return b.access }

func (b *buffer) Release() error {
	b.cx.device.DestroyBuffer(b.raw)
	return nil
}

func align4(n uint64) uint64 { return (n + 3) &^ 3 }
