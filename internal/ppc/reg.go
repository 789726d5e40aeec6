// Package ppc models the PowerPC register file as seen in disassembly text:
// register identities, alias normalisation, operand tokenizing and the
// mnemonic classes the data-flow tracker cares about.
package ppc

import (
	"fmt"
	"strconv"
)

// Kind is the register file a Reg belongs to.
type Kind uint8

const (
	KindNone Kind = iota
	KindGPR       // r0..r31
	KindFPR       // f0..f31, paired singles share these
)

// Reg is a general purpose or floating point register.
// The zero value is NoReg.
type Reg struct {
	Kind Kind
	N    uint8
}

// NoReg is the empty operand.
var NoReg = Reg{}

// GPR returns general purpose register n.
func GPR(n int) Reg { return Reg{Kind: KindGPR, N: uint8(n)} }

// FPR returns floating point register n.
func FPR(n int) Reg { return Reg{Kind: KindFPR, N: uint8(n)} }

// Well-known GPRs.
var (
	SP   = GPR(1)
	RTOC = GPR(2)
)

// Valid reports whether r names a register.
func (r Reg) Valid() bool { return r.Kind != KindNone && r.N < 32 }

func (r Reg) String() string {
	switch r.Kind {
	case KindGPR:
		return fmt.Sprintf("r%d", r.N)
	case KindFPR:
		return fmt.Sprintf("f%d", r.N)
	}
	return ""
}

// ParseReg parses a canonical register token ("r3", "f12").
// Aliases must already have been normalised.
func ParseReg(tok string) (Reg, bool) {
	if len(tok) < 2 || len(tok) > 3 {
		return NoReg, false
	}
	var kind Kind
	switch tok[0] {
	case 'r':
		kind = KindGPR
	case 'f':
		kind = KindFPR
	default:
		return NoReg, false
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil || n < 0 || n > 31 || tok[1] == '+' || tok[1] == '-' {
		return NoReg, false
	}
	return Reg{Kind: kind, N: uint8(n)}, true
}

// ParseRegAlias parses a register token, accepting the aliases that
// Normalize rewrites ("sp", "rtoc", "p3", "ps3").
func ParseRegAlias(tok string) (Reg, bool) {
	return ParseReg(normalizeToken(tok))
}
