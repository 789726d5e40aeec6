// Package asm encodes the PowerPC instructions the CPU model runs. It backs
// the sample programs of the CLI and the tests; it is not a general
// assembler.
package asm

import "encoding/binary"

func d(op, rt, ra int, imm uint16) uint32 {
	return uint32(op)<<26 | uint32(rt&31)<<21 | uint32(ra&31)<<16 | uint32(imm)
}

func x(rt, ra, rb, xo int) uint32 {
	return 31<<26 | uint32(rt&31)<<21 | uint32(ra&31)<<16 | uint32(rb&31)<<11 | uint32(xo)<<1
}

func Addi(rd, ra int, imm int16) uint32  { return d(14, rd, ra, uint16(imm)) }
func Addis(rd, ra int, imm int16) uint32 { return d(15, rd, ra, uint16(imm)) }
func Li(rd int, imm int16) uint32        { return Addi(rd, 0, imm) }
func Lis(rd int, imm int16) uint32       { return Addis(rd, 0, imm) }
func Mulli(rd, ra int, imm int16) uint32 { return d(7, rd, ra, uint16(imm)) }
func Ori(ra, rs int, imm uint16) uint32  { return d(24, rs, ra, imm) }
func Nop() uint32                        { return Ori(0, 0, 0) }

func Add(rd, ra, rb int) uint32   { return x(rd, ra, rb, 266) }
func Subf(rd, ra, rb int) uint32  { return x(rd, ra, rb, 40) }
func Mullw(rd, ra, rb int) uint32 { return x(rd, ra, rb, 235) }
func Or(ra, rs, rb int) uint32    { return x(rs, ra, rb, 444) }
func Mr(ra, rs int) uint32        { return Or(ra, rs, rs) }
func And(ra, rs, rb int) uint32   { return x(rs, ra, rb, 28) }

// Rlwinm encodes rlwinm ra, rs, sh, mb, me.
func Rlwinm(ra, rs, sh, mb, me int) uint32 {
	return 21<<26 | uint32(rs&31)<<21 | uint32(ra&31)<<16 | uint32(sh&31)<<11 | uint32(mb&31)<<6 | uint32(me&31)<<1
}

// Rlwimi encodes rlwimi ra, rs, sh, mb, me.
func Rlwimi(ra, rs, sh, mb, me int) uint32 {
	return Rlwinm(ra, rs, sh, mb, me)&^(63<<26) | 20<<26
}

func Lwz(rd int, disp int16, ra int) uint32  { return d(32, rd, ra, uint16(disp)) }
func Lbz(rd int, disp int16, ra int) uint32  { return d(34, rd, ra, uint16(disp)) }
func Stw(rs int, disp int16, ra int) uint32  { return d(36, rs, ra, uint16(disp)) }
func Stwu(rs int, disp int16, ra int) uint32 { return d(37, rs, ra, uint16(disp)) }
func Stb(rs int, disp int16, ra int) uint32  { return d(38, rs, ra, uint16(disp)) }
func Lfs(fd int, disp int16, ra int) uint32  { return d(48, fd, ra, uint16(disp)) }
func Stfs(fs int, disp int16, ra int) uint32 { return d(52, fs, ra, uint16(disp)) }
func Lwzx(rd, ra, rb int) uint32             { return x(rd, ra, rb, 23) }
func Stwx(rs, ra, rb int) uint32             { return x(rs, ra, rb, 151) }

// Fadds encodes fadds fd, fa, fb.
func Fadds(fd, fa, fb int) uint32 {
	return 59<<26 | uint32(fd&31)<<21 | uint32(fa&31)<<16 | uint32(fb&31)<<11 | 21<<1
}

// Cmpwi encodes cmpwi crf, ra, imm.
func Cmpwi(crf, ra int, imm int16) uint32 { return d(11, crf<<2, ra, uint16(imm)) }

// Cmpw encodes cmpw crf, ra, rb.
func Cmpw(crf, ra, rb int) uint32 { return x(crf<<2, ra, rb, 0) }

// B encodes a relative branch; off is in bytes from the branch itself.
func B(off int32) uint32  { return 18<<26 | uint32(off)&0x03FFFFFC }
func Bl(off int32) uint32 { return B(off) | 1 }

// Bc encodes a relative conditional branch.
func Bc(bo, bi int, off int16) uint32 {
	return 16<<26 | uint32(bo&31)<<21 | uint32(bi&31)<<16 | uint32(uint16(off))&0xFFFC
}

// Condition register bits within a field.
const (
	LT = 0
	GT = 1
	EQ = 2
)

func Beq(crf int, off int16) uint32 { return Bc(12, crf*4+EQ, off) }
func Bne(crf int, off int16) uint32 { return Bc(4, crf*4+EQ, off) }
func Blt(crf int, off int16) uint32 { return Bc(12, crf*4+LT, off) }
func Bdnz(off int16) uint32         { return Bc(16, 0, off) }

func Blr() uint32 { return 0x4E800020 }

func mtspr(spr, rs int) uint32 {
	return 31<<26 | uint32(rs&31)<<21 | uint32(spr&31)<<16 | uint32(spr>>5)<<11 | 467<<1
}

func mfspr(rd, spr int) uint32 {
	return 31<<26 | uint32(rd&31)<<21 | uint32(spr&31)<<16 | uint32(spr>>5)<<11 | 339<<1
}

func Mtlr(rs int) uint32  { return mtspr(8, rs) }
func Mflr(rd int) uint32  { return mfspr(rd, 8) }
func Mtctr(rs int) uint32 { return mtspr(9, rs) }

// Program accumulates instruction words from a base address.
type Program struct {
	Base  uint32
	Words []uint32
}

// PC returns the address the next emitted word will occupy.
func (p *Program) PC() uint32 { return p.Base + uint32(4*len(p.Words)) }

// Emit appends words and returns the address of the first one.
func (p *Program) Emit(words ...uint32) uint32 {
	pc := p.PC()
	p.Words = append(p.Words, words...)
	return pc
}

// Patch replaces the word at addr.
func (p *Program) Patch(addr uint32, word uint32) {
	p.Words[(addr-p.Base)/4] = word
}

// Bytes returns the big-endian image.
func (p *Program) Bytes() []byte {
	out := make([]byte, 4*len(p.Words))
	for i, w := range p.Words {
		binary.BigEndian.PutUint32(out[i*4:], w)
	}
	return out
}
