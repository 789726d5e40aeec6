// Package dataflow follows a register or memory value through a recorded
// instruction trace, forwards ("where does it go") or backwards ("where did
// it come from").
package dataflow

import (
	"ppctrace/internal/ppc"
	"ppctrace/internal/trace"
)

// Attributes is the operand breakdown of one trace entry.
type Attributes struct {
	Addr      uint32
	Text      string
	Mnemonic  string
	Reg0      ppc.Reg // destination; for stores, the stored register
	Reg1      ppc.Reg
	Reg2      ppc.Reg
	MemTarget uint32
	HasMem    bool
	IsLoad    bool
	IsStore   bool
}

// Extract parses an entry's text. An entry without register operands comes
// back with an invalid Reg0 and should be skipped.
func Extract(e trace.Entry) Attributes {
	text := ppc.Normalize(e.Text)
	mn := ppc.Mnemonic(text)
	ops := ppc.Operands(text)

	a := Attributes{
		Addr:     e.Addr,
		Text:     e.Text,
		Mnemonic: mn,
		Reg0:     ops[0],
		Reg1:     ops[1],
		Reg2:     ops[2],
	}
	if e.HasMem {
		a.MemTarget, a.HasMem = e.MemTarget, true
		a.IsLoad = ppc.IsLoad(mn)
		a.IsStore = ppc.IsStore(mn)
	}
	return a
}

// Sources returns the valid source operands.
func (a Attributes) Sources() []ppc.Reg {
	var out []ppc.Reg
	for _, r := range [2]ppc.Reg{a.Reg1, a.Reg2} {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}
