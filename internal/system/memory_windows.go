package system

import (
	"fmt"
	"syscall"
	"unsafe"
)

type memoryStatusEx struct {
	dwLength                uint32
	dwMemoryLoad            uint32
	ullTotalPhys            uint64
	ullAvailPhys            uint64
	ullTotalPageFile        uint64
	ullAvailPageFile        uint64
	ullTotalVirtual         uint64
	ullAvailVirtual         uint64
	ullAvailExtendedVirtual uint64
}

func readMemory() (Memory, error) {
	kernel32, err := syscall.LoadDLL("kernel32.dll")
	if err != nil {
		return Memory{}, fmt.Errorf("load kernel32.dll: %w", err)
	}
	defer kernel32.Release()

	proc, err := kernel32.FindProc("GlobalMemoryStatusEx")
	if err != nil {
		return Memory{}, fmt.Errorf("find GlobalMemoryStatusEx: %w", err)
	}

	var st memoryStatusEx
	st.dwLength = uint32(unsafe.Sizeof(st))
	if ret, _, err := proc.Call(uintptr(unsafe.Pointer(&st))); ret == 0 {
		return Memory{}, fmt.Errorf("GlobalMemoryStatusEx: %w", err)
	}
	return Memory{Total: int64(st.ullTotalPhys), Available: int64(st.ullAvailPhys)}, nil
}
