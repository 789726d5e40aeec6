// Package disasm provides PowerPC (32-bit, big-endian) disassembly for the
// CPU model and trace listings.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/ppc64/ppc64asm"

	"ppctrace/internal/ppc"
)

// Inst is a decoded PowerPC instruction with address and raw word.
type Inst struct {
	Addr     uint32
	Raw      uint32
	Mnemonic string
	Operands string
	Text     string // full disassembly line
}

// SymbolLookup resolves an address to a symbolic name. Returns ("", false) if unknown.
type SymbolLookup func(addr uint32) (name string, ok bool)

// Options controls disassembly behavior.
type Options struct {
	BaseAddr uint32       // address of the first byte in Data
	MaxSteps int          // maximum instructions to decode; 0 = 1M
	Symbols  SymbolLookup // optional symbol resolver
}

const defaultMaxSteps = 1_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

// Disassemble decodes big-endian PowerPC words from a byte region.
// Returns decoded instructions up to MaxSteps or end of data.
func Disassemble(data []byte, opts Options) []Inst {
	maxSteps := opts.effectiveMax()
	n := len(data) / 4
	if n > maxSteps {
		n = maxSteps
	}

	result := make([]Inst, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		raw := binary.BigEndian.Uint32(data[off : off+4])
		result = append(result, Decode(raw, opts.BaseAddr+uint32(off)))
	}
	return result
}

// Decode decodes a single instruction word at addr. Words that do not
// decode come back as ".long 0x...".
func Decode(raw uint32, addr uint32) Inst {
	inst := Inst{Addr: addr, Raw: raw}
	if mn, ops, ok := decodePaired(raw); ok {
		inst.Mnemonic, inst.Operands = mn, ops
	} else {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], raw)
		d, err := ppc64asm.Decode(buf[:], binary.BigEndian)
		if err != nil {
			inst.Mnemonic = ".long"
			inst.Operands = fmt.Sprintf("0x%08x", raw)
		} else {
			inst.Mnemonic, inst.Operands = ppc.Split(ppc64asm.GNUSyntax(d, uint64(addr)))
			inst.Operands = spaceOperands(inst.Operands)
		}
	}
	inst.Text = inst.Mnemonic
	if inst.Operands != "" {
		inst.Text += " " + inst.Operands
	}
	return inst
}

// spaceOperands turns "r3,8(r4)" into "r3, 8(r4)".
func spaceOperands(ops string) string {
	parts := strings.Split(ops, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}

// DisasmOne decodes a single instruction word and returns its text.
func DisasmOne(raw uint32, addr uint32) string {
	return Decode(raw, addr).Text
}

// Format renders a slice of instructions as stable text output.
// Each line: <addr>  <hex word>  <disasm>  ; <comments>
// Annotators are checked in order; first non-empty result is used.
func Format(insts []Inst, lookup SymbolLookup, annotators ...Annotator) string {
	var b strings.Builder
	for _, inst := range insts {
		if lookup != nil {
			if name, ok := lookup(inst.Addr); ok {
				fmt.Fprintf(&b, "%s:\n", name)
			}
		}
		fmt.Fprintf(&b, "0x%08x  %08x  %s", inst.Addr, inst.Raw, inst.Text)
		for _, ann := range annotators {
			if s := ann(inst); s != "" {
				fmt.Fprintf(&b, "  ; %s", s)
				break
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PlaceholderLookup returns a SymbolLookup backed by a fixed address map.
func PlaceholderLookup(entryPoints map[uint32]string) SymbolLookup {
	return func(addr uint32) (string, bool) {
		if name, ok := entryPoints[addr]; ok {
			return name, true
		}
		return "", false
	}
}
