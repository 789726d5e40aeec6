package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"ppctrace/internal/cpu"
	"ppctrace/internal/disasm"
	"ppctrace/internal/elfx"
)

// image is a program loaded from an ELF executable or a raw binary.
type image struct {
	entry   uint32
	symbols map[uint32]string
	code    []region
}

// region is a contiguous run of bytes at a virtual address.
type region struct {
	addr uint32
	data []byte
	exec bool
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return uint32(v), nil
}

// loadImage reads either an ELF (elfPath) or a raw big-endian binary placed
// at base.
func loadImage(elfPath, binPath, base string) (*image, error) {
	switch {
	case elfPath != "" && binPath != "":
		return nil, fmt.Errorf("--elf and --bin are mutually exclusive")
	case elfPath != "":
		return loadELF(elfPath)
	case binPath != "":
		if base == "" {
			return nil, fmt.Errorf("--bin needs --base")
		}
		addr, err := parseAddr(base)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(binPath)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return &image{
			entry:   addr,
			symbols: map[uint32]string{},
			code:    []region{{addr: addr, data: data, exec: true}},
		}, nil
	}
	return nil, fmt.Errorf("--elf or --bin is required")
}

func loadELF(path string) (*image, error) {
	ef, err := elfx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer ef.Close()

	syms, err := ef.Symbols()
	if err != nil {
		return nil, err
	}
	img := &image{entry: ef.Entry(), symbols: syms}
	for _, s := range ef.LoadSegments() {
		data := make([]byte, s.Memsz)
		if s.Filesz > 0 {
			b, err := ef.ReadBytesAtVA(s.Vaddr, int(min(s.Filesz, s.Memsz)))
			if err != nil {
				return nil, fmt.Errorf("segment 0x%08x: %w", s.Vaddr, err)
			}
			copy(data, b)
		}
		img.code = append(img.code, region{addr: s.Vaddr, data: data, exec: s.Exec()})
	}
	return img, nil
}

// load copies every region into the CPU's memory.
func (img *image) load(c *cpu.CPU) {
	for _, r := range img.code {
		c.Mem.Load(r.addr, r.data)
	}
}

// lookup resolves symbols for listings.
func (img *image) lookup() disasm.SymbolLookup {
	return disasm.PlaceholderLookup(img.symbols)
}

// regionAt returns the executable region containing addr.
func (img *image) regionAt(addr uint32) (region, bool) {
	for _, r := range img.code {
		if r.exec && addr >= r.addr && uint64(addr) < uint64(r.addr)+uint64(len(r.data)) {
			return r, true
		}
	}
	return region{}, false
}
