// Package opencl registers a backend for OpenCL C kernels on installed
// OpenCL platforms. It is built only with the opencl tag and cgo enabled;
// otherwise importing it registers nothing.
//
//	go build -tags opencl ./cmd/kernelrun
package opencl

// Name is the name the backend registers under.
const Name = "opencl"
