package disasm

// Load/store detection from the raw 32-bit encoding.

// MemOp describes a decoded load or store.
type MemOp struct {
	Store    bool
	RT       int // source/destination register (GPR or FPR, see Float)
	RA       int
	RB       int
	Disp     int32
	Indexed  bool // X-form: EA = (RA|0) + RB
	Update   bool // RA receives the EA
	Size     int  // bytes per element
	Signed   bool // lha/lhax
	Reverse  bool // byte-reversed
	Float    bool
	Single   bool // single precision float in memory
	Multiple bool // lmw/stmw
	Paired   bool // psq_l/psq_st
	W        bool // paired: one element only
	GQR      int
}

type dForm struct {
	store, update, float, single, signed, multiple bool
	size                                            int
}

var dForms = map[uint32]dForm{
	32: {size: 4},
	33: {size: 4, update: true},
	34: {size: 1},
	35: {size: 1, update: true},
	36: {size: 4, store: true},
	37: {size: 4, store: true, update: true},
	38: {size: 1, store: true},
	39: {size: 1, store: true, update: true},
	40: {size: 2},
	41: {size: 2, update: true},
	42: {size: 2, signed: true},
	43: {size: 2, signed: true, update: true},
	44: {size: 2, store: true},
	45: {size: 2, store: true, update: true},
	46: {size: 4, multiple: true},
	47: {size: 4, store: true, multiple: true},
	48: {size: 4, float: true, single: true},
	49: {size: 4, float: true, single: true, update: true},
	50: {size: 8, float: true},
	51: {size: 8, float: true, update: true},
	52: {size: 4, float: true, single: true, store: true},
	53: {size: 4, float: true, single: true, store: true, update: true},
	54: {size: 8, float: true, store: true},
	55: {size: 8, float: true, store: true, update: true},
}

type xForm struct {
	store, update, float, single, signed, reverse bool
	size                                           int
}

// xForms is keyed by the 10-bit extended opcode of primary opcode 31.
var xForms = map[uint32]xForm{
	20:  {size: 4}, // lwarx
	23:  {size: 4},
	55:  {size: 4, update: true},
	87:  {size: 1},
	119: {size: 1, update: true},
	150: {size: 4, store: true}, // stwcx.
	151: {size: 4, store: true},
	183: {size: 4, store: true, update: true},
	215: {size: 1, store: true},
	247: {size: 1, store: true, update: true},
	279: {size: 2},
	311: {size: 2, update: true},
	343: {size: 2, signed: true},
	375: {size: 2, signed: true, update: true},
	407: {size: 2, store: true},
	439: {size: 2, store: true, update: true},
	534: {size: 4, reverse: true},
	662: {size: 4, store: true, reverse: true},
	790: {size: 2, reverse: true},
	918: {size: 2, store: true, reverse: true},
	535: {size: 4, float: true, single: true},
	567: {size: 4, float: true, single: true, update: true},
	599: {size: 8, float: true},
	631: {size: 8, float: true, update: true},
	663: {size: 4, float: true, single: true, store: true},
	695: {size: 4, float: true, single: true, store: true, update: true},
	727: {size: 8, float: true, store: true},
	759: {size: 8, float: true, store: true, update: true},
}

// DecodeMemOp decodes a load or store. Returns ok=false for anything else.
func DecodeMemOp(raw uint32) (MemOp, bool) {
	op := raw >> 26
	rt := int((raw >> 21) & 0x1F)
	ra := int((raw >> 16) & 0x1F)
	rb := int((raw >> 11) & 0x1F)

	if f, ok := dForms[op]; ok {
		return MemOp{
			Store: f.store, RT: rt, RA: ra,
			Disp:   int32(int16(raw & 0xFFFF)),
			Update: f.update, Size: f.size, Signed: f.signed,
			Float: f.float, Single: f.single, Multiple: f.multiple,
		}, true
	}

	switch op {
	case 31:
		f, ok := xForms[(raw>>1)&0x3FF]
		if !ok {
			return MemOp{}, false
		}
		return MemOp{
			Store: f.store, RT: rt, RA: ra, RB: rb, Indexed: true,
			Update: f.update, Size: f.size, Signed: f.signed, Reverse: f.reverse,
			Float: f.float, Single: f.single,
		}, true
	case 56, 57, 60, 61:
		return MemOp{
			Store: op >= 60, RT: rt, RA: ra,
			Disp:   signExtend(raw&0xFFF, 12),
			Update: op == 57 || op == 61, Size: 4, Float: true, Single: true,
			Paired: true, W: (raw>>15)&1 != 0, GQR: int((raw >> 12) & 7),
		}, true
	case 4:
		xo := (raw >> 1) & 0x3F
		if xo != 6 && xo != 7 && xo != 38 && xo != 39 {
			return MemOp{}, false
		}
		return MemOp{
			Store: xo == 7 || xo == 39, RT: rt, RA: ra, RB: rb, Indexed: true,
			Update: xo >= 38, Size: 4, Float: true, Single: true,
			Paired: true, W: (raw>>10)&1 != 0, GQR: int((raw >> 7) & 7),
		}, true
	}
	return MemOp{}, false
}

// EffectiveAddress computes the address a MemOp touches given the current
// general purpose registers.
func (m MemOp) EffectiveAddress(gpr func(n int) uint32) uint32 {
	var base uint32
	if m.RA != 0 || m.Update {
		base = gpr(m.RA)
	}
	if m.Indexed {
		return base + gpr(m.RB)
	}
	return base + uint32(m.Disp)
}

// Bytes returns the number of bytes the access covers.
func (m MemOp) Bytes() int {
	switch {
	case m.Multiple:
		return (32 - m.RT) * 4
	case m.Paired && !m.W:
		return 2 * m.Size
	}
	return m.Size
}
