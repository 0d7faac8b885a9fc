// Package gputest provides an instrumented in-memory driver for testing code
// built on package gpu. It records every create and release, flags double
// releases, and can fail any stage on demand.
package gputest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"unsafe"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// Stage names an injectable failure point.
type Stage string

const (
	StagePlatforms Stage = "platforms"
	StageDevices   Stage = "devices"
	StageContext   Stage = "context"
	StageQueue     Stage = "queue"
	StageProgram   Stage = "program"
	StageBuild     Stage = "build"
	StageBuildLog  Stage = "buildlog"
	StageKernel    Stage = "kernel"
	StageAllocate  Stage = "allocate"
	StageWrite     Stage = "write"
	StageDispatch  Stage = "dispatch"
	StageRead      Stage = "read"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StagePlatforms, StageDevices, StageContext, StageQueue, StageProgram, StageBuild,
	StageKernel, StageAllocate, StageWrite, StageDispatch, StageRead,
}

// KernelFunc is the body of a fake kernel.
type KernelFunc func(nd driver.NDRange, args []driver.Arg) error

// KernelSpec declares a fake entry point.
type KernelSpec struct {
	NumArgs int
	Run     KernelFunc
}

// Driver is a fake backend. The zero value is not usable; call New.
type Driver struct {
	name  string
	class driver.DeviceClass
	lang  driver.Language

	mu       sync.Mutex
	fail     map[Stage]error
	kernels  map[string]KernelSpec
	log      string
	created  map[string]int
	released map[string]int
	doubles  []string
	nextID   int
	live     map[int]string
}

// New returns a fake driver exposing one platform with one device of class c.
func New(name string, c driver.DeviceClass) *Driver {
	return &Driver{
		name:     name,
		class:    c,
		lang:     "fake",
		fail:     make(map[Stage]error),
		kernels:  make(map[string]KernelSpec),
		log:      "fake.cl:1:1: error: expected identifier",
		created:  make(map[string]int),
		released: make(map[string]int),
		live:     make(map[int]string),
	}
}

// Install registers d ahead of every other driver for the duration of t.
func Install(t testing.TB, d *Driver) {
	t.Helper()
	driver.Register(d.name, -1000, d)
	t.Cleanup(func() { driver.Unregister(d.name) })
}

// Fail makes stage s return err.
func (d *Driver) Fail(s Stage, err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[s] = err
	return d
}

// SetBuildLog sets the diagnostics returned after a failed build.
func (d *Driver) SetBuildLog(log string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = log
	return d
}

// SetLanguage sets the source language the driver claims to compile, so
// code that picks sources by language can run against it.
func (d *Driver) SetLanguage(lang driver.Language) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lang = lang
	return d
}

// AddKernel declares an entry point available in every program.
func (d *Driver) AddKernel(name string, spec KernelSpec) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[name] = spec
	return d
}

func (d *Driver) failure(s Stage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fail[s]
}

func (d *Driver) create(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.created[kind]++
	d.live[d.nextID] = kind
	return d.nextID
}

func (d *Driver) release(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kind, ok := d.live[id]
	if !ok {
		d.doubles = append(d.doubles, fmt.Sprintf("object %d", id))
		return
	}
	delete(d.live, id)
	d.released[kind]++
}

// Created returns how many objects of kind ("context", "queue", "buffer",
// "program", "kernel") were created.
func (d *Driver) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

// Released returns how many objects of kind were released.
func (d *Driver) Released(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released[kind]
}

// Leaks describes objects created but never released.
func (d *Driver) Leaks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for id, kind := range d.live {
		out = append(out, fmt.Sprintf("%s#%d", kind, id))
	}
	sort.Strings(out)
	return out
}

// DoubleReleases describes objects released more than once.
func (d *Driver) DoubleReleases() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.doubles...)
}

func (d *Driver) Name() string { return d.name }
func (d *Driver) Language() driver.Language {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lang
}

func (d *Driver) Platforms() ([]driver.Platform, error) {
	if err := d.failure(StagePlatforms); err != nil {
		return nil, err
	}
	return []driver.Platform{&platform{d: d}}, nil
}

type platform struct{ d *Driver }

func (p *platform) Info() driver.PlatformInfo {
	return driver.PlatformInfo{Name: "Fake " + p.d.name, Vendor: "gputest", Version: "1.0"}
}

func (p *platform) Devices() ([]driver.Device, error) {
	if err := p.d.failure(StageDevices); err != nil {
		return nil, err
	}
	return []driver.Device{&device{d: p.d}}, nil
}

type device struct{ d *Driver }

func (v *device) Info() driver.DeviceInfo {
	return driver.DeviceInfo{Name: "fake0", Vendor: "gputest", Class: v.d.class, ComputeUnits: 1}
}

func (v *device) CreateContext() (driver.Context, error) {
	if err := v.d.failure(StageContext); err != nil {
		return nil, err
	}
	return &context{d: v.d, id: v.d.create("context")}, nil
}

type context struct {
	d  *Driver
	id int
}

func (c *context) Release() error { c.d.release(c.id); return nil }

func (c *context) CreateQueue() (driver.Queue, error) {
	if err := c.d.failure(StageQueue); err != nil {
		return nil, err
	}
	return &queue{d: c.d, id: c.d.create("queue")}, nil
}

func (c *context) CreateBuffer(size int64, access driver.AccessMode) (driver.Buffer, error) {
	if err := c.d.failure(StageAllocate); err != nil {
		return nil, err
	}
	return &Buffer{d: c.d, id: c.d.create("buffer"), Data: make([]byte, size), access: access}, nil
}

func (c *context) CreateProgram(source string) (driver.Program, error) {
	if err := c.d.failure(StageProgram); err != nil {
		return nil, err
	}
	return &program{d: c.d, id: c.d.create("program"), source: source}, nil
}

// Buffer is the fake device memory. Kernel bodies reach it through Floats.
type Buffer struct {
	d      *Driver
	id     int
	access driver.AccessMode
	Data   []byte
}

func (b *Buffer) Size() int64               { return int64(len(b.Data)) }
func (b *Buffer) Access() driver.AccessMode { return b.access }
func (b *Buffer) Release() error            { b.d.release(b.id); return nil }

// Floats views a buffer argument as float32 values.
func Floats(a driver.Arg) []float32 {
	b := a.Buffer.(*Buffer)
	if len(b.Data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.Data[0])), len(b.Data)/4) //nolint:gosec // test view
}

type program struct {
	d      *Driver
	id     int
	source string
}

func (p *program) Release() error { p.d.release(p.id); return nil }

func (p *program) Build() error {
	if err := p.d.failure(StageBuild); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrBuildFailure, err)
	}
	if strings.Contains(p.source, "#error") {
		return driver.ErrBuildFailure
	}
	return nil
}

func (p *program) BuildLog() (string, error) {
	if err := p.d.failure(StageBuildLog); err != nil {
		return "", err
	}
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	return p.d.log, nil
}

func (p *program) KernelNames() []string {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	names := make([]string, 0, len(p.d.kernels))
	for n := range p.d.kernels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *program) CreateKernel(name string) (driver.Kernel, error) {
	if err := p.d.failure(StageKernel); err != nil {
		return nil, err
	}
	p.d.mu.Lock()
	spec, ok := p.d.kernels[name]
	p.d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no kernel named %q", name)
	}
	return &kernel{d: p.d, id: p.d.create("kernel"), name: name, spec: spec, args: make([]driver.Arg, spec.NumArgs)}, nil
}

type kernel struct {
	d    *Driver
	id   int
	name string
	spec KernelSpec
	args []driver.Arg
}

func (k *kernel) Name() string   { return k.name }
func (k *kernel) NumArgs() int   { return k.spec.NumArgs }
func (k *kernel) Release() error { k.d.release(k.id); return nil }

func (k *kernel) SetArg(index int, a driver.Arg) error {
	k.args[index] = a
	return nil
}

type queue struct {
	d  *Driver
	id int
}

func (q *queue) Release() error { q.d.release(q.id); return nil }
func (q *queue) Finish() error  { return nil }

func (q *queue) WriteBuffer(buf driver.Buffer, src []byte) error {
	if err := q.d.failure(StageWrite); err != nil {
		return err
	}
	copy(buf.(*Buffer).Data, src)
	return nil
}

func (q *queue) ReadBuffer(buf driver.Buffer, dst []byte) error {
	if err := q.d.failure(StageRead); err != nil {
		return err
	}
	copy(dst, buf.(*Buffer).Data)
	return nil
}

func (q *queue) Dispatch(k driver.Kernel, nd driver.NDRange) error {
	if err := q.d.failure(StageDispatch); err != nil {
		return err
	}
	fk := k.(*kernel)
	if fk.spec.Run == nil {
		return nil
	}
	return fk.spec.Run(nd, fk.args)
}
