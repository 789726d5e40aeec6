package disasm

import "strings"

// PowerPC branch detection from the raw 32-bit encoding.

// BranchInfo describes a decoded branch instruction.
type BranchInfo struct {
	Target uint32 // absolute target for b/bc; 0 for bclr/bcctr
	Cond   bool   // true if the branch may fall through
	Link   bool   // LK bit: sets LR to the next instruction
	ToLR   bool   // bclr
	ToCTR  bool   // bcctr
	BO     uint8
	BI     uint8
}

// boAlways is the BO pattern "branch always" (ignore CTR and condition).
const boAlways = 0x14

// DecodeBranch attempts to decode a branch instruction from raw encoding at the given PC.
// Returns nil if the instruction is not a branch.
func DecodeBranch(raw uint32, pc uint32) *BranchInfo {
	link := raw&1 != 0
	abs := raw&2 != 0
	bo := uint8((raw >> 21) & 0x1F)
	bi := uint8((raw >> 16) & 0x1F)

	switch raw >> 26 {
	case 18: // b, ba, bl, bla
		off := uint32(signExtend(raw&0x03FFFFFC, 26))
		target := pc + off
		if abs {
			target = off
		}
		return &BranchInfo{Target: target, Link: link, BO: boAlways}
	case 16: // bc
		off := uint32(signExtend(raw&0xFFFC, 16))
		target := pc + off
		if abs {
			target = off
		}
		return &BranchInfo{Target: target, Cond: bo&boAlways != boAlways, Link: link, BO: bo, BI: bi}
	case 19:
		switch (raw >> 1) & 0x3FF {
		case 16:
			return &BranchInfo{ToLR: true, Cond: bo&boAlways != boAlways, Link: link, BO: bo, BI: bi}
		case 528:
			return &BranchInfo{ToCTR: true, Cond: bo&boAlways != boAlways, Link: link, BO: bo, BI: bi}
		}
	}
	return nil
}

// signExtend sign-extends a value from the given bit width to int32.
func signExtend(val uint32, bits int) int32 {
	sign := uint32(1) << (bits - 1)
	mask := sign - 1
	if val&sign != 0 {
		return int32(val | ^mask) // negative
	}
	return int32(val & mask)
}

// IsBranch returns true if the instruction transfers control.
func IsBranch(raw uint32) bool {
	return DecodeBranch(raw, 0) != nil
}

// unconditional lists the branch mnemonics that never fall through.
var unconditional = map[string]bool{
	"b": true, "ba": true, "bl": true, "bla": true,
	"blr": true, "blrl": true, "bctr": true, "bctrl": true,
}

// IsConditionalText reports whether disassembly text is a branch that may
// fall through ("beq", "bdnz", "bnelr", "bc"). Only text is needed, so it
// works on recorded traces.
func IsConditionalText(text string) bool {
	mn, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	mn = strings.ToLower(strings.TrimRight(mn, "+-"))
	return strings.HasPrefix(mn, "b") && !unconditional[mn]
}
