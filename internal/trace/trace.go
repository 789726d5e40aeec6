// Package trace records linear instruction traces by single stepping a CPU.
package trace

import "fmt"

// Entry is one executed instruction. Entries are immutable once recorded.
type Entry struct {
	Addr      uint32
	Text      string // cleaned disassembly
	MemTarget uint32 // effective address, valid when HasMem
	HasMem    bool
}

func (e Entry) String() string {
	if e.HasMem {
		return fmt.Sprintf("0x%08x  %-32s [0x%08x]", e.Addr, e.Text, e.MemTarget)
	}
	return fmt.Sprintf("0x%08x  %s", e.Addr, e.Text)
}

// CPU is what the recorder needs from the emulated processor.
type CPU interface {
	// Stepping reports whether the CPU is stopped and may be single stepped.
	Stepping() bool
	// PauseAndLock takes exclusive control of execution until unlock is called.
	PauseAndLock() (unlock func())
	PC() uint32
	Step() error
	Disassemble(addr uint32) string
	// EffectiveAddress resolves the memory address the instruction at addr
	// touches with the current register state.
	EffectiveAddress(addr uint32) (uint32, bool)
	Interpreter() bool
	SetInterpreter(on bool)
}

// Breakpoints is what the recorder needs from the breakpoint store.
type Breakpoints interface {
	ClearTemporary()
}
