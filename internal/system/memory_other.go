//go:build !linux && !darwin && !windows

package system

import (
	"errors"
	"runtime"
)

func readMemory() (Memory, error) {
	return Memory{}, errors.New("memory figures not available on " + runtime.GOOS)
}
