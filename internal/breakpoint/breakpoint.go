// Package breakpoint keeps the set of instruction breakpoints the CPU run
// loop stops on.
package breakpoint

import (
	"sort"
	"sync"
)

// Breakpoint stops execution when the PC reaches Addr.
type Breakpoint struct {
	Addr      uint32
	Temporary bool // removed by ClearTemporary, e.g. "run to here"
	Active    bool
}

// Set is a concurrency-safe breakpoint set. The emulation loop reads it
// while the UI side adds and removes entries.
type Set struct {
	mu  sync.RWMutex
	bps []Breakpoint
}

// Add installs an active breakpoint at addr. Adding an existing address
// replaces it.
func (s *Set) Add(addr uint32, temporary bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bps {
		if s.bps[i].Addr == addr {
			s.bps[i] = Breakpoint{Addr: addr, Temporary: temporary, Active: true}
			return
		}
	}
	s.bps = append(s.bps, Breakpoint{Addr: addr, Temporary: temporary, Active: true})
}

// Remove deletes the breakpoint at addr. Returns false if none existed.
func (s *Set) Remove(addr uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bps {
		if s.bps[i].Addr == addr {
			s.bps = append(s.bps[:i], s.bps[i+1:]...)
			return true
		}
	}
	return false
}

// SetActive enables or disables the breakpoint at addr without removing it.
func (s *Set) SetActive(addr uint32, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bps {
		if s.bps[i].Addr == addr {
			s.bps[i].Active = active
			return true
		}
	}
	return false
}

// IsBreakpoint reports whether an active breakpoint exists at addr.
func (s *Set) IsBreakpoint(addr uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Linear is fine, sets stay small.
	for _, bp := range s.bps {
		if bp.Addr == addr && bp.Active {
			return true
		}
	}
	return false
}

// ClearTemporary removes every temporary breakpoint.
func (s *Set) ClearTemporary() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.bps[:0]
	for _, bp := range s.bps {
		if !bp.Temporary {
			kept = append(kept, bp)
		}
	}
	s.bps = kept
}

// List returns the breakpoints sorted by address.
func (s *Set) List() []Breakpoint {
	s.mu.RLock()
	out := make([]Breakpoint, len(s.bps))
	copy(out, s.bps)
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Len returns the number of breakpoints, active or not.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bps)
}
