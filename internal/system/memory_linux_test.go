package system

import (
	"bufio"
	"strings"
	"testing"
)

func TestParseMeminfo(t *testing.T) {
	data := `MemTotal:       16303412 kB
MemFree:         1234567 kB
MemAvailable:    8151706 kB
Buffers:          102400 kB
`
	m, err := parseMeminfo(bufio.NewScanner(strings.NewReader(data)))
	if err != nil {
		t.Fatalf("parseMeminfo failed: %v", err)
	}
	if m.Total != 16303412*1024 {
		t.Errorf("Total = %d, want %d", m.Total, 16303412*1024)
	}
	if m.Available != 8151706*1024 {
		t.Errorf("Available = %d, want %d", m.Available, 8151706*1024)
	}

	if _, err := parseMeminfo(bufio.NewScanner(strings.NewReader("Bogus: 1 kB\n"))); err == nil {
		t.Error("Expected an error without MemTotal")
	}
}
