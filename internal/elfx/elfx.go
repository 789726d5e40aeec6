// Package elfx loads 32-bit big-endian PowerPC executables (DOL files
// converted to ELF, homebrew builds) into emulator memory.
package elfx

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	ErrNotELF       = errors.New("elfx: not an ELF file")
	ErrNotPPC       = errors.New("elfx: not PowerPC (EM_PPC)")
	ErrNotExec      = errors.New("elfx: not an executable")
	ErrNot32Bit     = errors.New("elfx: not 32-bit ELF")
	ErrNotBigEndian = errors.New("elfx: not big-endian")
	ErrNoSymbol     = errors.New("elfx: symbol not found")
	ErrNoSegment    = errors.New("elfx: no PT_LOAD segment covers address")
)

// File wraps a debug/elf.File with the accessors the loader needs.
type File struct {
	ELF  *elf.File
	raw  io.ReaderAt
	size int64
}

// Open opens an ELF file and validates it is a 32-bit big-endian PowerPC
// executable.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	var verr error
	switch {
	case ef.Class != elf.ELFCLASS32:
		verr = ErrNot32Bit
	case ef.Data != elf.ELFDATA2MSB:
		verr = ErrNotBigEndian
	case ef.Machine != elf.EM_PPC:
		verr = ErrNotPPC
	case ef.Type != elf.ET_EXEC:
		verr = ErrNotExec
	}
	if verr != nil {
		f.Close()
		return nil, verr
	}

	return &File{ELF: ef, raw: f, size: info.Size()}, nil
}

// Close releases resources.
func (f *File) Close() error {
	err := f.ELF.Close()
	if c, ok := f.raw.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// FileSize returns the size of the underlying file.
func (f *File) FileSize() int64 { return f.size }

// Entry returns the entry point.
func (f *File) Entry() uint32 { return uint32(f.ELF.Entry) }

// Symbol looks up a symbol by exact name in the static symbol table.
// Returns the symbol's address and size.
func (f *File) Symbol(name string) (addr, size uint32, err error) {
	syms, err := f.ELF.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return 0, 0, fmt.Errorf("elfx: symtab: %w", err)
	}
	for _, s := range syms {
		if s.Name == name {
			return uint32(s.Value), uint32(s.Size), nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrNoSymbol, name)
}

// Symbols returns function and object symbols by address. A file without
// a symbol table yields an empty map.
func (f *File) Symbols() (map[uint32]string, error) {
	out := make(map[uint32]string)
	syms, err := f.ELF.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return out, nil
		}
		return nil, fmt.Errorf("elfx: symtab: %w", err)
	}
	for _, s := range syms {
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_NOTYPE:
		default:
			continue
		}
		if s.Name == "" || s.Value == 0 {
			continue
		}
		if _, dup := out[uint32(s.Value)]; !dup {
			out[uint32(s.Value)] = s.Name
		}
	}
	return out, nil
}

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
func (f *File) VAToFileOffset(va uint32) (uint32, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if uint64(va) >= p.Vaddr && uint64(va) < p.Vaddr+p.Filesz {
			offset := uint64(va) - p.Vaddr + p.Off
			if offset >= uint64(f.size) {
				return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
			}
			return uint32(offset), nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// ReadBytesAtVA reads up to n bytes starting at the given virtual address.
func (f *File) ReadBytesAtVA(va uint32, n int) ([]byte, error) {
	off, err := f.VAToFileOffset(va)
	if err != nil {
		return nil, err
	}
	// Clamp to file size.
	avail := f.size - int64(off)
	if int64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	_, err = f.raw.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf, nil
}

// SegmentInfo describes a PT_LOAD segment.
type SegmentInfo struct {
	Vaddr  uint32
	Memsz  uint32
	Filesz uint32
	Offset uint32
	Flags  elf.ProgFlag
}

// Exec reports whether the segment is executable.
func (s SegmentInfo) Exec() bool { return s.Flags&elf.PF_X != 0 }

// LoadSegments returns all PT_LOAD segments ordered by address.
func (f *File) LoadSegments() []SegmentInfo {
	var segs []SegmentInfo
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, SegmentInfo{
			Vaddr:  uint32(p.Vaddr),
			Memsz:  uint32(p.Memsz),
			Filesz: uint32(p.Filesz),
			Offset: uint32(p.Off),
			Flags:  p.Flags,
		})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Vaddr < segs[j].Vaddr })
	return segs
}

// Memory is the destination of LoadInto.
type Memory interface {
	WriteBytes(addr uint32, data []byte)
}

// LoadInto copies every PT_LOAD segment into mem and zero fills the part of
// each segment that has no file backing. It returns the number of bytes
// placed.
func (f *File) LoadInto(mem Memory) (int, error) {
	total := 0
	for _, s := range f.LoadSegments() {
		data := make([]byte, s.Memsz)
		if s.Filesz > 0 {
			n := min(s.Filesz, s.Memsz)
			if _, err := f.raw.ReadAt(data[:n], int64(s.Offset)); err != nil && !errors.Is(err, io.EOF) {
				return total, fmt.Errorf("elfx: read segment 0x%08x: %w", s.Vaddr, err)
			}
		}
		mem.WriteBytes(s.Vaddr, data)
		total += len(data)
	}
	return total, nil
}

// ByteOrder returns the ELF byte order.
func (f *File) ByteOrder() binary.ByteOrder {
	return f.ELF.ByteOrder
}
