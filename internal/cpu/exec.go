package cpu

import (
	"math"
	"math/bits"

	"ppctrace/internal/disasm"
)

const (
	sprXER = 1
	sprLR  = 8
	sprCTR = 9

	xerSO = 1 << 31
	xerCA = 1 << 29
)

func float64bits(f float64) uint64 { return math.Float64bits(f) }

func simm(raw uint32) uint32 { return uint32(int32(int16(raw & 0xFFFF))) }
func uimm(raw uint32) uint32 { return raw & 0xFFFF }

// fields returns the three register fields common to D, X and XO forms.
func fields(raw uint32) (d, a, b int) {
	return int((raw >> 21) & 0x1F), int((raw >> 16) & 0x1F), int((raw >> 11) & 0x1F)
}

// mask builds the rotate mask for MB..ME in big-endian bit numbering.
func mask(mb, me uint32) uint32 {
	m := (uint32(0xFFFFFFFF) >> mb) & (uint32(0xFFFFFFFF) << (31 - me))
	if mb > me {
		m = (uint32(0xFFFFFFFF) >> mb) | (uint32(0xFFFFFFFF) << (31 - me))
	}
	return m
}

func (c *CPU) setCRField(f int, v uint32) {
	shift := uint(28 - 4*f)
	c.CR = c.CR&^(0xF<<shift) | (v&0xF)<<shift
}

func (c *CPU) crField(f int) uint32 { return (c.CR >> uint(28-4*f)) & 0xF }

func (c *CPU) crBit(bit int) bool { return (c.CR>>uint(31-bit))&1 != 0 }

func (c *CPU) setCRBit(bit int, v bool) {
	m := uint32(1) << uint(31-bit)
	if v {
		c.CR |= m
	} else {
		c.CR &^= m
	}
}

func (c *CPU) so() uint32 {
	if c.XER&xerSO != 0 {
		return 1
	}
	return 0
}

func (c *CPU) compareSigned(f int, a, b int32) {
	v := c.so()
	switch {
	case a < b:
		v |= 8
	case a > b:
		v |= 4
	default:
		v |= 2
	}
	c.setCRField(f, v)
}

func (c *CPU) compareUnsigned(f int, a, b uint32) {
	v := c.so()
	switch {
	case a < b:
		v |= 8
	case a > b:
		v |= 4
	default:
		v |= 2
	}
	c.setCRField(f, v)
}

func (c *CPU) compareFloat(f int, a, b float64) {
	var v uint32
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		v = 1
	case a < b:
		v = 8
	case a > b:
		v = 4
	default:
		v = 2
	}
	c.setCRField(f, v)
}

func (c *CPU) setCR0(v uint32) { c.compareSigned(0, int32(v), 0) }

func (c *CPU) setCA(ca bool) {
	if ca {
		c.XER |= xerCA
	} else {
		c.XER &^= xerCA
	}
}

func (c *CPU) ca() uint32 {
	if c.XER&xerCA != 0 {
		return 1
	}
	return 0
}

// addCarry returns a+b+cin and the carry out.
func addCarry(a, b, cin uint32) (uint32, bool) {
	s, c1 := bits.Add32(a, b, cin)
	return s, c1 != 0
}

// execute runs one instruction and returns the next PC.
func (c *CPU) execute(raw uint32) (uint32, error) {
	pc := c.pc.Load()
	next := pc + 4

	if m, ok := disasm.DecodeMemOp(raw); ok {
		c.memory(m)
		return next, nil
	}
	if bi := disasm.DecodeBranch(raw, pc); bi != nil {
		return c.branch(bi, next), nil
	}

	d, a, b := fields(raw)
	rc := raw&1 != 0

	switch raw >> 26 {
	case 7: // mulli
		c.GPR[d] = uint32(int32(c.GPR[a]) * int32(simm(raw)))
	case 8: // subfic
		r, ca := addCarry(^c.GPR[a], simm(raw), 1)
		c.GPR[d] = r
		c.setCA(ca)
	case 10: // cmpli
		c.compareUnsigned(d>>2, c.GPR[a], uimm(raw))
	case 11: // cmpi
		c.compareSigned(d>>2, int32(c.GPR[a]), int32(simm(raw)))
	case 12, 13: // addic, addic.
		r, ca := addCarry(c.GPR[a], simm(raw), 0)
		c.GPR[d] = r
		c.setCA(ca)
		if raw>>26 == 13 {
			c.setCR0(r)
		}
	case 14: // addi
		c.GPR[d] = c.base(a) + simm(raw)
	case 15: // addis
		c.GPR[d] = c.base(a) + uimm(raw)<<16
	case 19:
		return next, c.execCR(raw)
	case 20, 21, 23: // rlwimi, rlwinm, rlwnm
		sh := uint32(b)
		if raw>>26 == 23 {
			sh = c.GPR[b] & 0x1F
		}
		m := mask((raw>>6)&0x1F, (raw>>1)&0x1F)
		r := bits.RotateLeft32(c.GPR[d], int(sh)) & m
		if raw>>26 == 20 {
			r |= c.GPR[a] &^ m
		}
		c.GPR[a] = r
		if rc {
			c.setCR0(r)
		}
	case 24: // ori
		c.GPR[a] = c.GPR[d] | uimm(raw)
	case 25: // oris
		c.GPR[a] = c.GPR[d] | uimm(raw)<<16
	case 26: // xori
		c.GPR[a] = c.GPR[d] ^ uimm(raw)
	case 27: // xoris
		c.GPR[a] = c.GPR[d] ^ uimm(raw)<<16
	case 28: // andi.
		c.GPR[a] = c.GPR[d] & uimm(raw)
		c.setCR0(c.GPR[a])
	case 29: // andis.
		c.GPR[a] = c.GPR[d] & (uimm(raw) << 16)
		c.setCR0(c.GPR[a])
	case 31:
		return next, c.exec31(raw)
	case 4:
		return next, c.execPaired(raw)
	case 59:
		return next, c.execFloat(raw, true)
	case 63:
		return next, c.execFloat(raw, false)
	default:
		return next, ErrUnimplemented
	}
	return next, nil
}

// base is the (rA|0) operand.
func (c *CPU) base(a int) uint32 {
	if a == 0 {
		return 0
	}
	return c.GPR[a]
}

func (c *CPU) branch(bi *disasm.BranchInfo, next uint32) uint32 {
	taken := true
	if bi.BO&0x04 == 0 {
		c.CTR--
		taken = (c.CTR != 0) != (bi.BO&0x02 != 0)
	}
	if bi.BO&0x10 == 0 {
		taken = taken && c.crBit(int(bi.BI)) == (bi.BO&0x08 != 0)
	}

	target := bi.Target
	switch {
	case bi.ToLR:
		target = c.LR &^ 3
	case bi.ToCTR:
		target = c.CTR &^ 3
	}
	if bi.Link {
		c.LR = next
	}
	if !taken {
		return next
	}
	return target
}

func (c *CPU) execCR(raw uint32) error {
	d, a, b := fields(raw)
	switch (raw >> 1) & 0x3FF {
	case 0: // mcrf
		c.setCRField(d>>2, c.crField(a>>2))
	case 150: // isync
	case 257:
		c.setCRBit(d, c.crBit(a) && c.crBit(b))
	case 449:
		c.setCRBit(d, c.crBit(a) || c.crBit(b))
	case 193:
		c.setCRBit(d, c.crBit(a) != c.crBit(b))
	case 33:
		c.setCRBit(d, !(c.crBit(a) || c.crBit(b)))
	case 289:
		c.setCRBit(d, c.crBit(a) == c.crBit(b))
	case 129:
		c.setCRBit(d, c.crBit(a) && !c.crBit(b))
	case 417:
		c.setCRBit(d, c.crBit(a) || !c.crBit(b))
	case 225:
		c.setCRBit(d, !(c.crBit(a) && c.crBit(b)))
	default:
		return ErrUnimplemented
	}
	return nil
}

func (c *CPU) exec31(raw uint32) error {
	d, a, b := fields(raw)
	rc := raw&1 != 0
	rs := d

	setA := func(v uint32) {
		c.GPR[a] = v
		if rc {
			c.setCR0(v)
		}
	}

	switch (raw >> 1) & 0x3FF {
	case 0: // cmp
		c.compareSigned(d>>2, int32(c.GPR[a]), int32(c.GPR[b]))
		return nil
	case 32: // cmpl
		c.compareUnsigned(d>>2, c.GPR[a], c.GPR[b])
		return nil
	case 28:
		setA(c.GPR[rs] & c.GPR[b])
		return nil
	case 60:
		setA(c.GPR[rs] &^ c.GPR[b])
		return nil
	case 444:
		setA(c.GPR[rs] | c.GPR[b])
		return nil
	case 412:
		setA(c.GPR[rs] | ^c.GPR[b])
		return nil
	case 316:
		setA(c.GPR[rs] ^ c.GPR[b])
		return nil
	case 124:
		setA(^(c.GPR[rs] | c.GPR[b]))
		return nil
	case 476:
		setA(^(c.GPR[rs] & c.GPR[b]))
		return nil
	case 284:
		setA(^(c.GPR[rs] ^ c.GPR[b]))
		return nil
	case 24: // slw
		sh := c.GPR[b] & 0x3F
		if sh > 31 {
			setA(0)
		} else {
			setA(c.GPR[rs] << sh)
		}
		return nil
	case 536: // srw
		sh := c.GPR[b] & 0x3F
		if sh > 31 {
			setA(0)
		} else {
			setA(c.GPR[rs] >> sh)
		}
		return nil
	case 792, 824: // sraw, srawi
		sh := uint32(b)
		if (raw>>1)&0x3FF == 792 {
			sh = c.GPR[b] & 0x3F
		}
		v := int32(c.GPR[rs])
		if sh > 31 {
			sh = 31
		}
		r := v >> sh
		c.setCA(v < 0 && uint32(v)<<(32-sh) != 0 && sh != 0)
		setA(uint32(r))
		return nil
	case 26: // cntlzw
		setA(uint32(bits.LeadingZeros32(c.GPR[rs])))
		return nil
	case 954: // extsb
		setA(uint32(int32(int8(c.GPR[rs]))))
		return nil
	case 922: // extsh
		setA(uint32(int32(int16(c.GPR[rs]))))
		return nil
	case 339: // mfspr
		switch spr(raw) {
		case sprXER:
			c.GPR[d] = c.XER
		case sprLR:
			c.GPR[d] = c.LR
		case sprCTR:
			c.GPR[d] = c.CTR
		default:
			return ErrUnimplemented
		}
		return nil
	case 467: // mtspr
		switch spr(raw) {
		case sprXER:
			c.XER = c.GPR[d]
		case sprLR:
			c.LR = c.GPR[d]
		case sprCTR:
			c.CTR = c.GPR[d]
		default:
			return ErrUnimplemented
		}
		return nil
	case 19: // mfcr
		c.GPR[d] = c.CR
		return nil
	case 144: // mtcrf
		crm := (raw >> 12) & 0xFF
		for f := 0; f < 8; f++ {
			if crm&(0x80>>uint(f)) != 0 {
				c.setCRField(f, c.GPR[d]>>uint(28-4*f))
			}
		}
		return nil
	case 1014: // dcbz
		ea := (c.base(a) + c.GPR[b]) &^ 31
		c.Mem.WriteBytes(ea, make([]byte, 32))
		return nil
	case 86, 54, 470, 982, 278, 246, 598, 854: // cache hints and barriers
		return nil
	}

	var r uint32
	switch (raw >> 1) & 0x1FF {
	case 266: // add
		r = c.GPR[a] + c.GPR[b]
	case 10: // addc
		var ca bool
		r, ca = addCarry(c.GPR[a], c.GPR[b], 0)
		c.setCA(ca)
	case 138: // adde
		var ca bool
		r, ca = addCarry(c.GPR[a], c.GPR[b], c.ca())
		c.setCA(ca)
	case 202: // addze
		var ca bool
		r, ca = addCarry(c.GPR[a], 0, c.ca())
		c.setCA(ca)
	case 40: // subf
		r = c.GPR[b] - c.GPR[a]
	case 8: // subfc
		var ca bool
		r, ca = addCarry(^c.GPR[a], c.GPR[b], 1)
		c.setCA(ca)
	case 136: // subfe
		var ca bool
		r, ca = addCarry(^c.GPR[a], c.GPR[b], c.ca())
		c.setCA(ca)
	case 104: // neg
		r = -c.GPR[a]
	case 235: // mullw
		r = uint32(int32(c.GPR[a]) * int32(c.GPR[b]))
	case 75: // mulhw
		r = uint32((int64(int32(c.GPR[a])) * int64(int32(c.GPR[b]))) >> 32)
	case 11: // mulhwu
		r = uint32((uint64(c.GPR[a]) * uint64(c.GPR[b])) >> 32)
	case 491: // divw
		x, y := int32(c.GPR[a]), int32(c.GPR[b])
		if y == 0 || (x == math.MinInt32 && y == -1) {
			r = 0
		} else {
			r = uint32(x / y)
		}
	case 459: // divwu
		if c.GPR[b] == 0 {
			r = 0
		} else {
			r = c.GPR[a] / c.GPR[b]
		}
	default:
		return ErrUnimplemented
	}
	c.GPR[d] = r
	if rc {
		c.setCR0(r)
	}
	return nil
}

func spr(raw uint32) uint32 {
	return ((raw >> 16) & 0x1F) | ((raw>>11)&0x1F)<<5
}

func (c *CPU) execFloat(raw uint32, single bool) error {
	d, a, b := fields(raw)
	fc := int((raw >> 6) & 0x1F)
	round := func(v float64) float64 {
		if single {
			return float64(float32(v))
		}
		return v
	}
	set := func(v float64) {
		c.FPR[d][0] = round(v)
		if single {
			c.FPR[d][1] = c.FPR[d][0]
		}
	}

	if !single {
		switch (raw >> 1) & 0x3FF {
		case 0, 32: // fcmpu, fcmpo
			c.compareFloat(d>>2, c.FPR[a][0], c.FPR[b][0])
			return nil
		case 72: // fmr
			c.FPR[d][0] = c.FPR[b][0]
			return nil
		case 40: // fneg
			c.FPR[d][0] = -c.FPR[b][0]
			return nil
		case 264: // fabs
			c.FPR[d][0] = math.Abs(c.FPR[b][0])
			return nil
		case 12: // frsp
			c.FPR[d][0] = float64(float32(c.FPR[b][0]))
			return nil
		case 15: // fctiwz
			c.FPR[d][0] = math.Float64frombits(uint64(uint32(int32(c.FPR[b][0]))))
			return nil
		}
	}

	switch (raw >> 1) & 0x1F {
	case 18:
		set(c.FPR[a][0] / c.FPR[b][0])
	case 20:
		set(c.FPR[a][0] - c.FPR[b][0])
	case 21:
		set(c.FPR[a][0] + c.FPR[b][0])
	case 25:
		set(c.FPR[a][0] * c.FPR[fc][0])
	case 28:
		set(c.FPR[a][0]*c.FPR[fc][0] - c.FPR[b][0])
	case 29:
		set(c.FPR[a][0]*c.FPR[fc][0] + c.FPR[b][0])
	default:
		return ErrUnimplemented
	}
	return nil
}

func (c *CPU) execPaired(raw uint32) error {
	d, a, b := fields(raw)
	fc := int((raw >> 6) & 0x1F)
	pa, pb, pc := c.FPR[a], c.FPR[b], c.FPR[fc]
	f32 := func(v float64) float64 { return float64(float32(v)) }

	switch (raw >> 1) & 0x3FF {
	case 40:
		c.FPR[d] = [2]float64{-pb[0], -pb[1]}
		return nil
	case 72:
		c.FPR[d] = pb
		return nil
	case 528:
		c.FPR[d] = [2]float64{pa[0], pb[0]}
		return nil
	case 560:
		c.FPR[d] = [2]float64{pa[0], pb[1]}
		return nil
	case 592:
		c.FPR[d] = [2]float64{pa[1], pb[0]}
		return nil
	case 624:
		c.FPR[d] = [2]float64{pa[1], pb[1]}
		return nil
	}

	switch (raw >> 1) & 0x1F {
	case 18:
		c.FPR[d] = [2]float64{f32(pa[0] / pb[0]), f32(pa[1] / pb[1])}
	case 20:
		c.FPR[d] = [2]float64{f32(pa[0] - pb[0]), f32(pa[1] - pb[1])}
	case 21:
		c.FPR[d] = [2]float64{f32(pa[0] + pb[0]), f32(pa[1] + pb[1])}
	case 25:
		c.FPR[d] = [2]float64{f32(pa[0] * pc[0]), f32(pa[1] * pc[1])}
	default:
		return ErrUnimplemented
	}
	return nil
}

func (c *CPU) memory(m disasm.MemOp) {
	ea := m.EffectiveAddress(c.gpr)
	mem := c.Mem

	switch {
	case m.Multiple:
		for r, addr := m.RT, ea; r < 32; r, addr = r+1, addr+4 {
			if m.Store {
				mem.Write32(addr, c.GPR[r])
			} else {
				c.GPR[r] = mem.Read32(addr)
			}
		}
	case m.Paired:
		if m.Store {
			mem.Write32(ea, math.Float32bits(float32(c.FPR[m.RT][0])))
			if !m.W {
				mem.Write32(ea+4, math.Float32bits(float32(c.FPR[m.RT][1])))
			}
		} else {
			ps0 := float64(math.Float32frombits(mem.Read32(ea)))
			ps1 := 1.0
			if !m.W {
				ps1 = float64(math.Float32frombits(mem.Read32(ea + 4)))
			}
			c.FPR[m.RT] = [2]float64{ps0, ps1}
		}
	case m.Float:
		switch {
		case m.Store && m.Single:
			mem.Write32(ea, math.Float32bits(float32(c.FPR[m.RT][0])))
		case m.Store:
			mem.Write64(ea, math.Float64bits(c.FPR[m.RT][0]))
		case m.Single:
			v := float64(math.Float32frombits(mem.Read32(ea)))
			c.FPR[m.RT] = [2]float64{v, v}
		default:
			c.FPR[m.RT][0] = math.Float64frombits(mem.Read64(ea))
		}
	case m.Store:
		v := c.GPR[m.RT]
		switch m.Size {
		case 1:
			mem.Write8(ea, uint8(v))
		case 2:
			if m.Reverse {
				v = uint32(bits.ReverseBytes16(uint16(v)))
			}
			mem.Write16(ea, uint16(v))
		default:
			if m.Reverse {
				v = bits.ReverseBytes32(v)
			}
			mem.Write32(ea, v)
		}
	default:
		var v uint32
		switch m.Size {
		case 1:
			v = uint32(mem.Read8(ea))
		case 2:
			h := mem.Read16(ea)
			if m.Reverse {
				h = bits.ReverseBytes16(h)
			}
			v = uint32(h)
			if m.Signed {
				v = uint32(int32(int16(h)))
			}
		default:
			v = mem.Read32(ea)
			if m.Reverse {
				v = bits.ReverseBytes32(v)
			}
		}
		c.GPR[m.RT] = v
	}

	if m.Update {
		c.GPR[m.RA] = ea
	}
}
