package dataflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ppctrace/internal/ppc"
)

var ErrInvalidTarget = errors.New("dataflow: invalid target")

// Target is the seed of a tracking run: one register or one memory address.
type Target struct {
	Reg   ppc.Reg
	Mem   uint32
	IsMem bool
}

// RegTarget seeds tracking with a register.
func RegTarget(r ppc.Reg) Target { return Target{Reg: r} }

// MemTarget seeds tracking with a memory address.
func MemTarget(addr uint32) Target { return Target{Mem: addr, IsMem: true} }

// ParseTarget accepts a register name (aliases included) or an address in
// hex ("0x80001234") or decimal.
func ParseTarget(s string) (Target, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if r, ok := ppc.ParseRegAlias(s); ok {
		return RegTarget(r), nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	return MemTarget(uint32(v)), nil
}

func (t Target) String() string {
	if t.IsMem {
		return fmt.Sprintf("0x%08x", t.Mem)
	}
	return t.Reg.String()
}

func (t Target) seed() (TrackedSet, error) {
	var s TrackedSet
	if t.IsMem {
		s.AddMem(t.Mem)
		return s, nil
	}
	if !t.Reg.Valid() {
		return s, ErrInvalidTarget
	}
	s.AddReg(t.Reg)
	return s, nil
}
