package dataflow

import (
	"fmt"
	"strings"

	"ppctrace/internal/ppc"
)

// TrackedSet is the set of locations currently believed to hold the value
// being followed. Both lists are duplicate free; order carries no meaning.
type TrackedSet struct {
	Regs []ppc.Reg
	Mems []uint32
}

func (s *TrackedSet) HasReg(r ppc.Reg) bool {
	if !r.Valid() {
		return false
	}
	for _, t := range s.Regs {
		if t == r {
			return true
		}
	}
	return false
}

// AddReg tracks r. Invalid and already tracked registers are ignored.
func (s *TrackedSet) AddReg(r ppc.Reg) {
	if r.Valid() && !s.HasReg(r) {
		s.Regs = append(s.Regs, r)
	}
}

// RemoveReg stops tracking r.
func (s *TrackedSet) RemoveReg(r ppc.Reg) {
	for i, t := range s.Regs {
		if t == r {
			last := len(s.Regs) - 1
			s.Regs[i] = s.Regs[last]
			s.Regs = s.Regs[:last]
			return
		}
	}
}

func (s *TrackedSet) HasMem(addr uint32) bool {
	for _, m := range s.Mems {
		if m == addr {
			return true
		}
	}
	return false
}

func (s *TrackedSet) AddMem(addr uint32) {
	if !s.HasMem(addr) {
		s.Mems = append(s.Mems, addr)
	}
}

func (s *TrackedSet) RemoveMem(addr uint32) {
	for i, m := range s.Mems {
		if m == addr {
			last := len(s.Mems) - 1
			s.Mems[i] = s.Mems[last]
			s.Mems = s.Mems[:last]
			return
		}
	}
}

// Empty reports whether nothing is tracked any more.
func (s *TrackedSet) Empty() bool { return len(s.Regs) == 0 && len(s.Mems) == 0 }

// Clone returns an independent copy.
func (s *TrackedSet) Clone() TrackedSet {
	return TrackedSet{
		Regs: append([]ppc.Reg(nil), s.Regs...),
		Mems: append([]uint32(nil), s.Mems...),
	}
}

func (s TrackedSet) String() string {
	var parts []string
	for _, r := range s.Regs {
		parts = append(parts, r.String())
	}
	for _, m := range s.Mems {
		parts = append(parts, fmt.Sprintf("0x%08x", m))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
