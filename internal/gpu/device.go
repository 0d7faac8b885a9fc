package gpu

import (
	"fmt"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// DeviceClass selects devices by kind.
type DeviceClass = driver.DeviceClass

const (
	ClassAny         = driver.ClassAny
	ClassCPU         = driver.ClassCPU
	ClassGPU         = driver.ClassGPU
	ClassAccelerator = driver.ClassAccelerator
)

// ParseDeviceClass parses "any", "cpu", "gpu" or "accelerator".
func ParseDeviceClass(s string) (DeviceClass, error) { return driver.ParseDeviceClass(s) }

// Platform is an enumerated backend instance.
type Platform struct {
	Index  int
	Driver string
	Info   driver.PlatformInfo

	lang driver.Language
	impl driver.Platform
}

// Name returns the platform name reported by the backend.
func (p *Platform) Name() string { return p.Info.Name }

// Language returns the kernel source language of the platform's backend.
func (p *Platform) Language() driver.Language { return p.lang }

// Devices enumerates the platform's devices.
func (p *Platform) Devices() ([]*Device, error) {
	devs, err := p.impl.Devices()
	if err != nil {
		return nil, newError(KindNoDeviceAvailable, "enumerate devices", err)
	}
	out := make([]*Device, len(devs))
	for i, d := range devs {
		out[i] = &Device{Index: i, Info: d.Info(), Platform: p, impl: d}
	}
	return out, nil
}

// Device is a selected execution unit. It is immutable once selected.
type Device struct {
	Index    int
	Info     driver.DeviceInfo
	Platform *Platform

	impl driver.Device
}

// Name returns the device name reported by the backend.
func (d *Device) Name() string { return d.Info.Name }

// Class returns the device class.
func (d *Device) Class() DeviceClass { return d.Info.Class }

// Language returns the kernel source language the device compiles.
func (d *Device) Language() driver.Language { return d.Platform.lang }

func (d *Device) String() string {
	return fmt.Sprintf("%s [%s] on %s", d.Info.Name, d.Info.Class, d.Platform.Info.Name)
}

// Selection is the explicit device choice handed to Discover.
type Selection struct {
	// Platform is the index into Platforms(); 0 selects the first found.
	Platform int

	// Class restricts the device kind within the platform.
	Class DeviceClass
}

// Platforms enumerates the platforms of every registered driver. Backends
// that fail to enumerate are skipped so one broken installation does not hide
// the others; if nothing is found the first enumeration error is reported.
func Platforms() ([]*Platform, error) {
	var (
		out      []*Platform
		firstErr error
	)
	for _, drv := range driver.Drivers() {
		plats, err := drv.Platforms()
		if err != nil {
			slogger().Warnf("gpu: %s: platform enumeration failed: %v", drv.Name(), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", drv.Name(), err)
			}
			continue
		}
		for _, p := range plats {
			out = append(out, &Platform{
				Index:  len(out),
				Driver: drv.Name(),
				Info:   p.Info(),
				lang:   drv.Language(),
				impl:   p,
			})
		}
	}
	if len(out) == 0 {
		if firstErr != nil {
			return nil, newError(KindNoPlatformAvailable, "enumerate platforms", firstErr)
		}
		return nil, errorf(KindNoPlatformAvailable, "enumerate platforms", "no compute platforms found")
	}
	return out, nil
}

// Discover selects exactly one platform and one device of the requested class
// within it. Absence of hardware is reported, never masked or retried.
func Discover(sel Selection) (*Device, error) {
	plats, err := Platforms()
	if err != nil {
		return nil, err
	}
	if sel.Platform < 0 || sel.Platform >= len(plats) {
		return nil, errorf(KindNoPlatformAvailable, "select platform",
			"platform index %d out of range (%d available)", sel.Platform, len(plats))
	}
	plat := plats[sel.Platform]

	devs, err := plat.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devs {
		if sel.Class.Matches(d.Info.Class) {
			slogger().Infof("gpu: selected %s", d)
			return d, nil
		}
	}
	return nil, errorf(KindNoDeviceAvailable, "select device",
		"no %s device on platform %q (%d devices)", sel.Class, plat.Info.Name, len(devs))
}
