package host

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// MemoryStats tracks device memory accounting for one context.
type MemoryStats struct {
	Allocations int64 // successful allocations
	Releases    int64 // buffers returned
	Failures    int64 // allocations refused for lack of memory
	InUse       int64 // bytes currently allocated
	Peak        int64 // highest InUse seen
}

// memory is the host device's memory budget. Storage is backed by uint64
// words so every buffer is aligned for any element type.
type memory struct {
	mu    sync.Mutex
	limit int64
	live  int
	stats MemoryStats
}

func newMemory(limit int64) *memory {
	return &memory{limit: limit}
}

func (m *memory) allocate(size int64, access driver.AccessMode) (*buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}
	if m.stats.InUse+size > m.limit {
		m.stats.Failures++
		return nil, fmt.Errorf("out of device memory: %d bytes requested, %d of %d in use",
			size, m.stats.InUse, m.limit)
	}

	words := make([]uint64, (size+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size) //nolint:gosec // aligned view

	m.stats.Allocations++
	m.stats.InUse += size
	if m.stats.InUse > m.stats.Peak {
		m.stats.Peak = m.stats.InUse
	}
	m.live++
	return &buffer{mem: m, words: words, data: data, access: access}, nil
}

func (m *memory) free(b *buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.data == nil {
		return errors.New("buffer already freed")
	}
	m.stats.Releases++
	m.stats.InUse -= int64(len(b.data))
	m.live--
	b.words, b.data = nil, nil
	return nil
}

func (m *memory) outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

func (m *memory) snapshot() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

type buffer struct {
	mem    *memory
	words  []uint64
	data   []byte
	access driver.AccessMode
}

func (b *buffer) Size() int64               { return int64(len(b.data)) }
func (b *buffer) Access() driver.AccessMode { return b.access }
func (b *buffer) Release() error            { return b.mem.free(b) }
