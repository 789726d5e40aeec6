package elfx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const (
	testVaddr = 0x80003100
	testBSS   = 16
)

var testCode = []byte{
	0x38, 0x80, 0x00, 0x05, // li r4, 5
	0x38, 0x64, 0x00, 0x0a, // addi r3, r4, 10
	0x4e, 0x80, 0x00, 0x20, // blr
}

// buildELF assembles a minimal ELF32 image with one PT_LOAD segment and no
// section headers.
func buildELF(class, data byte, typ, machine uint16) []byte {
	var bo binary.ByteOrder = binary.BigEndian
	if data == 1 {
		bo = binary.LittleEndian
	}
	var b bytes.Buffer
	b.Write([]byte{0x7f, 'E', 'L', 'F', class, data, 1, 0})
	b.Write(make([]byte, 8))
	w := func(v any) { binary.Write(&b, bo, v) }
	const ehsize, phsize = 52, 32
	w(typ)
	w(machine)
	w(uint32(1))         // version
	w(uint32(testVaddr)) // entry
	w(uint32(ehsize))    // phoff
	w(uint32(0))         // shoff
	w(uint32(0))         // flags
	w(uint16(ehsize))
	w(uint16(phsize))
	w(uint16(1)) // phnum
	w(uint16(40))
	w(uint16(0)) // shnum
	w(uint16(0)) // shstrndx

	w(uint32(1)) // PT_LOAD
	w(uint32(ehsize + phsize))
	w(uint32(testVaddr))
	w(uint32(testVaddr))
	w(uint32(len(testCode)))
	w(uint32(len(testCode) + testBSS))
	w(uint32(5)) // R+X
	w(uint32(4))
	b.Write(testCode)
	return b.Bytes()
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "image.elf")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		t.Fatal(err)
	}
	return tmp
}

type fakeMem map[uint32][]byte

func (m fakeMem) WriteBytes(addr uint32, data []byte) { m[addr] = append([]byte(nil), data...) }

func TestOpenValid(t *testing.T) {
	ef, err := Open(writeTemp(t, buildELF(1, 2, 2, 20)))
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if ef.FileSize() == 0 {
		t.Error("file size is 0")
	}
	if ef.Entry() != testVaddr {
		t.Errorf("Entry = 0x%x", ef.Entry())
	}
	if ef.ByteOrder() != binary.BigEndian {
		t.Error("expected big-endian byte order")
	}
}

func TestOpenRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"not elf", []byte("not an ELF file at all"), ErrNotELF},
		{"64-bit", append([]byte{0x7f, 'E', 'L', 'F', 2, 2, 1, 0}, make([]byte, 56)...), nil},
		{"little endian", buildELF(1, 1, 2, 20), ErrNotBigEndian},
		{"wrong machine", buildELF(1, 2, 2, 183), ErrNotPPC},
		{"shared object", buildELF(1, 2, 3, 20), ErrNotExec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(writeTemp(t, tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadSegmentsAndLoadInto(t *testing.T) {
	ef, err := Open(writeTemp(t, buildELF(1, 2, 2, 20)))
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	segs := ef.LoadSegments()
	if len(segs) != 1 {
		t.Fatalf("segments = %+v", segs)
	}
	s := segs[0]
	if s.Vaddr != testVaddr || s.Filesz != uint32(len(testCode)) || s.Memsz != s.Filesz+testBSS || !s.Exec() {
		t.Errorf("segment = %+v", s)
	}

	mem := fakeMem{}
	n, err := ef.LoadInto(mem)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(testCode)+testBSS {
		t.Errorf("loaded %d bytes", n)
	}
	got := mem[testVaddr]
	if !bytes.Equal(got[:len(testCode)], testCode) || !bytes.Equal(got[len(testCode):], make([]byte, testBSS)) {
		t.Errorf("loaded image = % x", got)
	}
}

func TestVAToFileOffset(t *testing.T) {
	ef, err := Open(writeTemp(t, buildELF(1, 2, 2, 20)))
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	off, err := ef.VAToFileOffset(testVaddr + 4)
	if err != nil {
		t.Fatal(err)
	}
	if off != 52+32+4 {
		t.Errorf("offset = 0x%x", off)
	}
	b, err := ef.ReadBytesAtVA(testVaddr+4, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, testCode[4:]) {
		t.Errorf("ReadBytesAtVA = % x", b)
	}
	if _, err := ef.VAToFileOffset(0xDEADBEEF); !errors.Is(err, ErrNoSegment) {
		t.Errorf("err = %v, want ErrNoSegment", err)
	}
}

func TestSymbolsWithoutTable(t *testing.T) {
	ef, err := Open(writeTemp(t, buildELF(1, 2, 2, 20)))
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	syms, err := ef.Symbols()
	if err != nil || len(syms) != 0 {
		t.Errorf("Symbols = %v, %v", syms, err)
	}
	if _, _, err := ef.Symbol("main"); !errors.Is(err, ErrNoSymbol) {
		t.Errorf("err = %v, want ErrNoSymbol", err)
	}
}

func FuzzELFOpen(f *testing.F) {
	f.Add(buildELF(1, 2, 2, 20))
	f.Add([]byte("\x7fELF\x01\x02\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00"))
	f.Add([]byte("not an elf at all"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		tmp := filepath.Join(t.TempDir(), "fuzz.elf")
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			t.Fatal(err)
		}
		ef, err := Open(tmp)
		if err != nil {
			return // expected
		}
		// If it opens, exercise the API.
		ef.FileSize()
		ef.LoadSegments()
		ef.Symbols()
		ef.VAToFileOffset(0)
		ef.Close()
	})
}
