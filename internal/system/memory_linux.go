package system

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func readMemory() (Memory, error) {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return Memory{}, fmt.Errorf("open /proc/meminfo: %w", err)
	}
	defer file.Close()
	return parseMeminfo(bufio.NewScanner(file))
}

// parseMeminfo reads MemTotal and MemAvailable, both in kB.
func parseMeminfo(scanner *bufio.Scanner) (Memory, error) {
	var totalKB, availableKB int64
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "MemTotal":
			totalKB = value
		case "MemAvailable":
			availableKB = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Memory{}, fmt.Errorf("read /proc/meminfo: %w", err)
	}
	if totalKB == 0 {
		return Memory{}, fmt.Errorf("could not determine total memory")
	}
	return Memory{Total: totalKB << 10, Available: availableKB << 10}, nil
}
