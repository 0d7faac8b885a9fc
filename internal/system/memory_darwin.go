package system

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

func readMemory() (Memory, error) {
	out, err := exec.Command("sysctl", "-n", "hw.memsize").Output()
	if err != nil {
		return Memory{}, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	total, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return Memory{}, fmt.Errorf("parse hw.memsize: %w", err)
	}

	vm, err := exec.Command("vm_stat").Output()
	if err != nil {
		return Memory{}, fmt.Errorf("vm_stat: %w", err)
	}

	var free, inactive int64
	pageSize := int64(4096)
	for _, line := range strings.Split(string(vm), "\n") {
		fields := strings.Fields(line)
		switch {
		case strings.HasPrefix(line, "Pages free:") && len(fields) >= 3:
			free, _ = strconv.ParseInt(strings.TrimSuffix(fields[2], "."), 10, 64)
		case strings.HasPrefix(line, "Pages inactive:") && len(fields) >= 3:
			inactive, _ = strconv.ParseInt(strings.TrimSuffix(fields[2], "."), 10, 64)
		case strings.Contains(line, "page size of") && len(fields) >= 8:
			pageSize, _ = strconv.ParseInt(fields[7], 10, 64)
		}
	}

	// free plus inactive pages approximates what can be reclaimed
	return Memory{Total: total, Available: (free + inactive) * pageSize}, nil
}
