package webgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// classOf maps an adapter type to a device class. Software rasterizers such
// as lavapipe and SwiftShader report a CPU adapter.
func classOf(t gputypes.DeviceType) driver.DeviceClass {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU:
		return driver.ClassGPU
	case gputypes.DeviceTypeCPU:
		return driver.ClassCPU
	}
	return driver.ClassAccelerator
}
