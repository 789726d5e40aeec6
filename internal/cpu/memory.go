package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// ErrUnmapped is returned when fetching from an address no image covers.
var ErrUnmapped = errors.New("cpu: unmapped address")

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// Memory is a sparse big-endian address space. Pages are allocated on first
// write; reads of untouched memory return zero.
type Memory struct {
	mu    sync.RWMutex
	pages map[uint32]*[pageSize]byte
}

// NewMemory returns an empty address space.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*[pageSize]byte)}
}

// Mapped reports whether addr lies in a page that has been written.
func (m *Memory) Mapped(addr uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pages[addr>>pageBits]
	return ok
}

func (m *Memory) page(addr uint32, create bool) *[pageSize]byte {
	p := m.pages[addr>>pageBits]
	if p == nil && create {
		p = new([pageSize]byte)
		m.pages[addr>>pageBits] = p
	}
	return p
}

// ReadBytes copies n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint32, n int) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		a := addr + uint32(i)
		if p := m.page(a, false); p != nil {
			out[i] = p[a&pageMask]
		}
	}
	return out
}

// WriteBytes copies data into memory starting at addr.
func (m *Memory) WriteBytes(addr uint32, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range data {
		a := addr + uint32(i)
		m.page(a, true)[a&pageMask] = b
	}
}

// Load maps an image at base. It is WriteBytes under a name that reads
// better at call sites.
func (m *Memory) Load(base uint32, data []byte) {
	m.WriteBytes(base, data)
}

func (m *Memory) Read8(addr uint32) uint8 { return m.ReadBytes(addr, 1)[0] }

func (m *Memory) Read16(addr uint32) uint16 {
	return binary.BigEndian.Uint16(m.ReadBytes(addr, 2))
}

func (m *Memory) Read32(addr uint32) uint32 {
	return binary.BigEndian.Uint32(m.ReadBytes(addr, 4))
}

func (m *Memory) Read64(addr uint32) uint64 {
	return binary.BigEndian.Uint64(m.ReadBytes(addr, 8))
}

func (m *Memory) Write8(addr uint32, v uint8) { m.WriteBytes(addr, []byte{v}) }

func (m *Memory) Write16(addr uint32, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	m.WriteBytes(addr, b[:])
}

func (m *Memory) Write32(addr uint32, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	m.WriteBytes(addr, b[:])
}

func (m *Memory) Write64(addr uint32, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	m.WriteBytes(addr, b[:])
}

// Fetch reads an instruction word. Unlike data reads it fails on
// unmapped memory, so a runaway PC stops the CPU instead of executing zeros.
func (m *Memory) Fetch(addr uint32) (uint32, error) {
	if !m.Mapped(addr) {
		return 0, fmt.Errorf("%w: fetch at 0x%08x", ErrUnmapped, addr)
	}
	return m.Read32(addr), nil
}
