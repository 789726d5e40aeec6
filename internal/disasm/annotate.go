package disasm

import "fmt"

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation.
type Annotator func(inst Inst) string

// BranchAnnotator annotates direct branches with the target address and,
// when lookup knows it, the target symbol.
func BranchAnnotator(lookup SymbolLookup) Annotator {
	return func(inst Inst) string {
		bi := DecodeBranch(inst.Raw, inst.Addr)
		if bi == nil || bi.ToLR || bi.ToCTR {
			return ""
		}
		if lookup != nil {
			if name, ok := lookup(bi.Target); ok {
				return fmt.Sprintf("-> <%s>", name)
			}
		}
		return fmt.Sprintf("-> 0x%08x", bi.Target)
	}
}

// MemAnnotator annotates loads and stores with their effective address,
// computed from the register values gpr returns.
func MemAnnotator(gpr func(n int) uint32) Annotator {
	return func(inst Inst) string {
		m, ok := DecodeMemOp(inst.Raw)
		if !ok {
			return ""
		}
		op := "load"
		if m.Store {
			op = "store"
		}
		return fmt.Sprintf("%s [0x%08x] %d bytes", op, m.EffectiveAddress(gpr), m.Bytes())
	}
}

// MemAnnotatorStatic annotates loads and stores with their addressing form,
// for listings produced without a running CPU.
func MemAnnotatorStatic() Annotator {
	return func(inst Inst) string {
		m, ok := DecodeMemOp(inst.Raw)
		if !ok {
			return ""
		}
		if m.Indexed {
			return fmt.Sprintf("[r%d + r%d]", m.RA, m.RB)
		}
		if m.RA == 0 && !m.Update {
			return fmt.Sprintf("[0x%08x]", uint32(m.Disp))
		}
		return fmt.Sprintf("[r%d %+d]", m.RA, m.Disp)
	}
}
