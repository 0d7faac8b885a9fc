//go:build opencl && cgo

package opencl

/*
#cgo LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>

static cl_context kr_create_context(cl_device_id dev, cl_int *status) {
	return clCreateContext(NULL, 1, &dev, NULL, NULL, status);
}

static cl_program kr_create_program(cl_context ctx, const char *src, cl_int *status) {
	return clCreateProgramWithSource(ctx, 1, &src, NULL, status);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// platformNotFound is CL_PLATFORM_NOT_FOUND_KHR, returned by the ICD loader
// when no vendor driver is installed.
const platformNotFound = -1001

type clDriver struct{}

func init() {
	driver.Register(Name, 20, clDriver{})
}

func (clDriver) Name() string              { return Name }
func (clDriver) Language() driver.Language { return driver.LanguageOpenCLC }

func statusError(call string, status C.cl_int) error {
	return fmt.Errorf("%s failed: status %d", call, int(status))
}

func (clDriver) Platforms() ([]driver.Platform, error) {
	var n C.cl_uint
	if st := C.clGetPlatformIDs(0, nil, &n); st != C.CL_SUCCESS {
		if st == platformNotFound {
			return nil, nil
		}
		return nil, statusError("clGetPlatformIDs", st)
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]C.cl_platform_id, n)
	if st := C.clGetPlatformIDs(n, &ids[0], nil); st != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs", st)
	}
	out := make([]driver.Platform, n)
	for i, id := range ids {
		out[i] = &platform{id: id}
	}
	return out, nil
}

func platformString(id C.cl_platform_id, param C.cl_platform_info) string {
	var size C.size_t
	if C.clGetPlatformInfo(id, param, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	return strings.TrimRight(string(buf), "\x00")
}

func deviceString(id C.cl_device_id, param C.cl_device_info) string {
	var size C.size_t
	if C.clGetDeviceInfo(id, param, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	return strings.TrimRight(string(buf), "\x00")
}

type platform struct{ id C.cl_platform_id }

func (p *platform) Info() driver.PlatformInfo {
	return driver.PlatformInfo{
		Name:    platformString(p.id, C.CL_PLATFORM_NAME),
		Vendor:  platformString(p.id, C.CL_PLATFORM_VENDOR),
		Version: platformString(p.id, C.CL_PLATFORM_VERSION),
	}
}

func (p *platform) Devices() ([]driver.Device, error) {
	var n C.cl_uint
	st := C.clGetDeviceIDs(p.id, C.CL_DEVICE_TYPE_ALL, 0, nil, &n)
	if st == C.CL_DEVICE_NOT_FOUND || n == 0 {
		return nil, nil
	}
	if st != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs", st)
	}
	ids := make([]C.cl_device_id, n)
	if st := C.clGetDeviceIDs(p.id, C.CL_DEVICE_TYPE_ALL, n, &ids[0], nil); st != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs", st)
	}
	out := make([]driver.Device, n)
	for i, id := range ids {
		out[i] = &device{id: id}
	}
	return out, nil
}

type device struct{ id C.cl_device_id }

func (d *device) Info() driver.DeviceInfo {
	var typ C.cl_device_type
	var units C.cl_uint
	var mem C.cl_ulong
	var wg C.size_t
	C.clGetDeviceInfo(d.id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(typ)), unsafe.Pointer(&typ), nil)
	C.clGetDeviceInfo(d.id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(units)), unsafe.Pointer(&units), nil)
	C.clGetDeviceInfo(d.id, C.CL_DEVICE_GLOBAL_MEM_SIZE, C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem), nil)
	C.clGetDeviceInfo(d.id, C.CL_DEVICE_MAX_WORK_GROUP_SIZE, C.size_t(unsafe.Sizeof(wg)), unsafe.Pointer(&wg), nil)

	class := driver.ClassAccelerator
	switch {
	case typ&C.CL_DEVICE_TYPE_GPU != 0:
		class = driver.ClassGPU
	case typ&C.CL_DEVICE_TYPE_CPU != 0:
		class = driver.ClassCPU
	}
	return driver.DeviceInfo{
		Name:             deviceString(d.id, C.CL_DEVICE_NAME),
		Vendor:           deviceString(d.id, C.CL_DEVICE_VENDOR),
		Version:          deviceString(d.id, C.CL_DEVICE_VERSION),
		Class:            class,
		ComputeUnits:     int(units),
		MemoryBytes:      int64(mem),
		MaxWorkGroupSize: int(wg),
	}
}

func (d *device) CreateContext() (driver.Context, error) {
	var st C.cl_int
	cx := C.kr_create_context(d.id, &st)
	if st != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", st)
	}
	return &context{dev: d.id, cx: cx}, nil
}

type context struct {
	dev C.cl_device_id
	cx  C.cl_context
}

func (c *context) CreateQueue() (driver.Queue, error) {
	var st C.cl_int
	q := C.clCreateCommandQueue(c.cx, c.dev, 0, &st)
	if st != C.CL_SUCCESS {
		return nil, statusError("clCreateCommandQueue", st)
	}
	return &queue{q: q}, nil
}

func (c *context) CreateBuffer(size int64, access driver.AccessMode) (driver.Buffer, error) {
	flags := C.cl_mem_flags(C.CL_MEM_READ_WRITE)
	switch access {
	case driver.ReadOnly:
		flags = C.CL_MEM_READ_ONLY
	case driver.WriteOnly:
		flags = C.CL_MEM_WRITE_ONLY
	}
	var st C.cl_int
	mem := C.clCreateBuffer(c.cx, flags, C.size_t(size), nil, &st)
	if st != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", st)
	}
	return &buffer{mem: mem, size: size, access: access}, nil
}

func (c *context) CreateProgram(source string) (driver.Program, error) {
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))
	var st C.cl_int
	p := C.kr_create_program(c.cx, src, &st)
	if st != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", st)
	}
	return &program{dev: c.dev, p: p}, nil
}

func (c *context) Release() error {
	if st := C.clReleaseContext(c.cx); st != C.CL_SUCCESS {
		return statusError("clReleaseContext", st)
	}
	return nil
}

type buffer struct {
	mem    C.cl_mem
	size   int64
	access driver.AccessMode
}

func (b *buffer) Size() int64               { return b.size }
func (b *buffer) Access() driver.AccessMode { return b.access }

func (b *buffer) Release() error {
	if st := C.clReleaseMemObject(b.mem); st != C.CL_SUCCESS {
		return statusError("clReleaseMemObject", st)
	}
	return nil
}

type program struct {
	dev C.cl_device_id
	p   C.cl_program
}

// Build compiles for the context's device. A CL_BUILD_PROGRAM_FAILURE is
// reported as driver.ErrBuildFailure; the log is fetched by BuildLog.
func (p *program) Build() error {
	st := C.clBuildProgram(p.p, 1, &p.dev, nil, nil, nil)
	switch st {
	case C.CL_SUCCESS:
		return nil
	case C.CL_BUILD_PROGRAM_FAILURE:
		return fmt.Errorf("%w: CL_BUILD_PROGRAM_FAILURE", driver.ErrBuildFailure)
	}
	return statusError("clBuildProgram", st)
}

func (p *program) BuildLog() (string, error) {
	var size C.size_t
	if st := C.clGetProgramBuildInfo(p.p, p.dev, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size); st != C.CL_SUCCESS {
		return "", statusError("clGetProgramBuildInfo", st)
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, size)
	if st := C.clGetProgramBuildInfo(p.p, p.dev, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil); st != C.CL_SUCCESS {
		return "", statusError("clGetProgramBuildInfo", st)
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

func (p *program) KernelNames() []string {
	var size C.size_t
	if C.clGetProgramInfo(p.p, C.CL_PROGRAM_KERNEL_NAMES, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return nil
	}
	buf := make([]byte, size)
	C.clGetProgramInfo(p.p, C.CL_PROGRAM_KERNEL_NAMES, size, unsafe.Pointer(&buf[0]), nil)
	s := strings.TrimRight(string(buf), "\x00")
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

func (p *program) CreateKernel(name string) (driver.Kernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var st C.cl_int
	k := C.clCreateKernel(p.p, cname, &st)
	if st != C.CL_SUCCESS {
		return nil, statusError("clCreateKernel", st)
	}
	var n C.cl_uint
	C.clGetKernelInfo(k, C.CL_KERNEL_NUM_ARGS, C.size_t(unsafe.Sizeof(n)), unsafe.Pointer(&n), nil)
	return &kernel{k: k, name: name, nargs: int(n)}, nil
}

func (p *program) Release() error {
	if st := C.clReleaseProgram(p.p); st != C.CL_SUCCESS {
		return statusError("clReleaseProgram", st)
	}
	return nil
}

type kernel struct {
	k     C.cl_kernel
	name  string
	nargs int
}

func (k *kernel) Name() string { return k.name }
func (k *kernel) NumArgs() int { return k.nargs }

func (k *kernel) SetArg(index int, a driver.Arg) error {
	var st C.cl_int
	if a.IsBuffer() {
		b, ok := a.Buffer.(*buffer)
		if !ok {
			return fmt.Errorf("buffer belongs to another backend (%T)", a.Buffer)
		}
		st = C.clSetKernelArg(k.k, C.cl_uint(index), C.size_t(unsafe.Sizeof(b.mem)), unsafe.Pointer(&b.mem))
	} else {
		if len(a.Bytes) == 0 {
			return errors.New("empty scalar")
		}
		st = C.clSetKernelArg(k.k, C.cl_uint(index), C.size_t(len(a.Bytes)), unsafe.Pointer(&a.Bytes[0]))
	}
	if st != C.CL_SUCCESS {
		return statusError("clSetKernelArg", st)
	}
	return nil
}

func (k *kernel) Release() error {
	if st := C.clReleaseKernel(k.k); st != C.CL_SUCCESS {
		return statusError("clReleaseKernel", st)
	}
	return nil
}

type queue struct{ q C.cl_command_queue }

func (q *queue) WriteBuffer(buf driver.Buffer, src []byte) error {
	b := buf.(*buffer)
	st := C.clEnqueueWriteBuffer(q.q, b.mem, C.CL_TRUE, 0, C.size_t(len(src)), unsafe.Pointer(&src[0]), 0, nil, nil)
	if st != C.CL_SUCCESS {
		return statusError("clEnqueueWriteBuffer", st)
	}
	return nil
}

func (q *queue) ReadBuffer(buf driver.Buffer, dst []byte) error {
	b := buf.(*buffer)
	st := C.clEnqueueReadBuffer(q.q, b.mem, C.CL_TRUE, 0, C.size_t(len(dst)), unsafe.Pointer(&dst[0]), 0, nil, nil)
	if st != C.CL_SUCCESS {
		return statusError("clEnqueueReadBuffer", st)
	}
	return nil
}

func (q *queue) Dispatch(dk driver.Kernel, nd driver.NDRange) error {
	k := dk.(*kernel)
	dims := len(nd.Global)
	global := make([]C.size_t, dims)
	for i, g := range nd.Global {
		global[i] = C.size_t(g)
	}
	var localPtr *C.size_t
	if nd.Local != nil {
		local := make([]C.size_t, dims)
		for i, l := range nd.Local {
			local[i] = C.size_t(l)
		}
		localPtr = &local[0]
	}
	st := C.clEnqueueNDRangeKernel(q.q, k.k, C.cl_uint(dims), nil, &global[0], localPtr, 0, nil, nil)
	switch st {
	case C.CL_SUCCESS:
	case C.CL_INVALID_WORK_GROUP_SIZE, C.CL_INVALID_WORK_ITEM_SIZE:
		return fmt.Errorf("%w: %s", driver.ErrInvalidWorkSize, statusError("clEnqueueNDRangeKernel", st))
	default:
		return statusError("clEnqueueNDRangeKernel", st)
	}
	return q.Finish()
}

func (q *queue) Finish() error {
	if st := C.clFinish(q.q); st != C.CL_SUCCESS {
		return statusError("clFinish", st)
	}
	return nil
}

func (q *queue) Release() error {
	if st := C.clReleaseCommandQueue(q.q); st != C.CL_SUCCESS {
		return statusError("clReleaseCommandQueue", st)
	}
	return nil
}
