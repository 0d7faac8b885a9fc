// Package system reads host memory figures. They cap the host backend's
// device memory budget and are shown next to the device listing.
package system

import (
	"fmt"
)

// Memory is a snapshot of physical memory.
type Memory struct {
	Total     int64
	Available int64
}

// Used returns the memory in use by everything on the machine.
func (m Memory) Used() int64 { return m.Total - m.Available }

// ReadMemory returns the current physical memory figures.
func ReadMemory() (Memory, error) {
	return readMemory()
}

// Budget returns want, lowered to half of the available memory when that is
// smaller. When memory cannot be read want is returned as is.
func Budget(want int64) int64 {
	m, err := ReadMemory()
	if err != nil || m.Available <= 0 {
		return want
	}
	if half := m.Available / 2; half < want {
		return half
	}
	return want
}

// FormatBytes formats bytes as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
