package disasm

import "fmt"

// Gekko paired-single instructions reuse primary opcodes 4, 56, 57, 60 and 61,
// which the generic decoder reads as VMX or 64-bit forms. They are decoded
// here first.

func decodePaired(raw uint32) (mnemonic, operands string, ok bool) {
	d := int((raw >> 21) & 0x1F)
	a := int((raw >> 16) & 0x1F)
	b := int((raw >> 11) & 0x1F)
	c := int((raw >> 6) & 0x1F)

	switch raw >> 26 {
	case 56, 57, 60, 61:
		names := map[uint32]string{56: "psq_l", 57: "psq_lu", 60: "psq_st", 61: "psq_stu"}
		w := (raw >> 15) & 1
		i := (raw >> 12) & 7
		disp := signExtend(raw&0xFFF, 12)
		return names[raw>>26], fmt.Sprintf("p%d, %d(r%d), %d, qr%d", d, disp, a, w, i), true
	case 4:
	default:
		return "", "", false
	}

	switch (raw >> 1) & 0x3FF {
	case 40:
		return "ps_neg", fmt.Sprintf("p%d, p%d", d, b), true
	case 72:
		return "ps_mr", fmt.Sprintf("p%d, p%d", d, b), true
	case 528:
		return "ps_merge00", fmt.Sprintf("p%d, p%d, p%d", d, a, b), true
	case 560:
		return "ps_merge01", fmt.Sprintf("p%d, p%d, p%d", d, a, b), true
	case 592:
		return "ps_merge10", fmt.Sprintf("p%d, p%d, p%d", d, a, b), true
	case 624:
		return "ps_merge11", fmt.Sprintf("p%d, p%d, p%d", d, a, b), true
	}

	switch (raw >> 1) & 0x3F {
	case 6, 7, 38, 39:
		names := map[uint32]string{6: "psq_lx", 7: "psq_stx", 38: "psq_lux", 39: "psq_stux"}
		w := (raw >> 10) & 1
		i := (raw >> 7) & 7
		return names[(raw>>1)&0x3F], fmt.Sprintf("p%d, r%d, r%d, %d, qr%d", d, a, b, w, i), true
	}

	switch (raw >> 1) & 0x1F {
	case 18:
		return "ps_div", fmt.Sprintf("p%d, p%d, p%d", d, a, b), true
	case 20:
		return "ps_sub", fmt.Sprintf("p%d, p%d, p%d", d, a, b), true
	case 21:
		return "ps_add", fmt.Sprintf("p%d, p%d, p%d", d, a, b), true
	case 25:
		return "ps_mul", fmt.Sprintf("p%d, p%d, p%d", d, a, c), true
	}
	return "", "", false
}
