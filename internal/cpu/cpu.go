// Package cpu is a reference model of a 32-bit Gekko-class PowerPC core: the
// integer, floating point, paired-single load/store and branch subset needed
// to run small programs and record their instruction traces.
package cpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/apex/log"

	"ppctrace/internal/disasm"
	"ppctrace/internal/ppc"
)

var (
	ErrUnimplemented = errors.New("cpu: unimplemented instruction")
	ErrNotStepping   = errors.New("cpu: single step needs interpreter mode")
)

// Mode is the execution strategy.
type Mode int32

const (
	ModeInterpreter Mode = iota
	// ModeJIT stands in for block-compiled execution. Run behaves the same,
	// but single stepping is refused.
	ModeJIT
)

func (m Mode) String() string {
	if m == ModeJIT {
		return "jit"
	}
	return "interpreter"
}

// State is the run state seen by the debugger.
type State int32

const (
	StateStepping State = iota // stopped, may be single stepped
	StateRunning
)

// StopReason tells why Run returned.
type StopReason int

const (
	StopBreakpoint StopReason = iota
	StopStepLimit
	StopCancelled
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopBreakpoint:
		return "breakpoint"
	case StopStepLimit:
		return "step limit"
	case StopCancelled:
		return "cancelled"
	}
	return "error"
}

// BreakpointChecker is consulted after every instruction Run executes.
type BreakpointChecker interface {
	IsBreakpoint(addr uint32) bool
}

// CPU holds architectural state plus the execution lock. Register fields
// may be touched directly only while the CPU is stepping or the caller holds
// the lock from PauseAndLock.
type CPU struct {
	GPR [32]uint32
	FPR [32][2]float64 // ps0 is the scalar value
	LR  uint32
	CTR uint32
	CR  uint32
	XER uint32
	Mem *Memory

	Log log.Interface

	pc    atomic.Uint32
	steps atomic.Uint64
	mu    sync.Mutex
	state atomic.Int32
	mode  atomic.Int32
}

// New returns a CPU in the stepping state with empty memory.
func New() *CPU {
	return &CPU{Mem: NewMemory(), Log: log.Log}
}

// PC returns the program counter. It may be read while Run is executing.
func (c *CPU) PC() uint32 { return c.pc.Load() }

// SetPC moves the program counter.
func (c *CPU) SetPC(addr uint32) { c.pc.Store(addr) }

// Steps returns how many instructions have executed.
func (c *CPU) Steps() uint64 { return c.steps.Load() }

// State returns the current run state.
func (c *CPU) State() State { return State(c.state.Load()) }

// Stepping reports whether the CPU is stopped.
func (c *CPU) Stepping() bool { return c.State() == StateStepping }

// Mode returns the execution mode.
func (c *CPU) Mode() Mode { return Mode(c.mode.Load()) }

// SetMode switches the execution mode.
func (c *CPU) SetMode(m Mode) { c.mode.Store(int32(m)) }

// Interpreter reports whether the CPU is in interpreter mode.
func (c *CPU) Interpreter() bool { return c.Mode() == ModeInterpreter }

// SetInterpreter switches between interpreter and JIT mode.
func (c *CPU) SetInterpreter(on bool) {
	if on {
		c.SetMode(ModeInterpreter)
	} else {
		c.SetMode(ModeJIT)
	}
}

// PauseAndLock takes exclusive control of execution. The returned function
// releases it.
func (c *CPU) PauseAndLock() (unlock func()) {
	c.mu.Lock()
	var once sync.Once
	return func() { once.Do(c.mu.Unlock) }
}

// Step executes exactly one instruction. Callers hold the execution lock or
// own the stepping CPU.
func (c *CPU) Step() error {
	if c.Mode() != ModeInterpreter {
		return ErrNotStepping
	}
	return c.step()
}

func (c *CPU) step() error {
	pc := c.pc.Load()
	raw, err := c.Mem.Fetch(pc)
	if err != nil {
		return err
	}
	next, err := c.execute(raw)
	if err != nil {
		return fmt.Errorf("%w: 0x%08x at 0x%08x (%s)", err, raw, pc, disasm.DisasmOne(raw, pc))
	}
	c.pc.Store(next)
	c.steps.Add(1)
	return nil
}

// Run executes until a breakpoint is hit, ctx is cancelled, maxSteps
// instructions have run (0 = unlimited) or an instruction fails. The CPU is
// back in the stepping state when Run returns.
func (c *CPU) Run(ctx context.Context, bps BreakpointChecker, maxSteps int) (StopReason, error) {
	c.state.Store(int32(StateRunning))
	defer c.state.Store(int32(StateStepping))

	for n := 0; maxSteps <= 0 || n < maxSteps; n++ {
		if ctx.Err() != nil {
			c.Log.Debugf("cpu: run cancelled at 0x%08x", c.pc.Load())
			return StopCancelled, nil
		}
		c.mu.Lock()
		err := c.step()
		pc := c.pc.Load()
		c.mu.Unlock()
		if err != nil {
			c.Log.WithError(err).Warn("cpu: run stopped")
			return StopError, err
		}
		if bps != nil && bps.IsBreakpoint(pc) {
			c.Log.WithField("pc", fmt.Sprintf("0x%08x", pc)).Debug("cpu: breakpoint")
			return StopBreakpoint, nil
		}
	}
	return StopStepLimit, nil
}

// Disassemble returns the cleaned text of the instruction at addr.
func (c *CPU) Disassemble(addr uint32) string {
	raw, err := c.Mem.Fetch(addr)
	if err != nil {
		return "??"
	}
	return ppc.Clean(disasm.DisasmOne(raw, addr))
}

// EffectiveAddress resolves the memory address the load or store at addr
// would touch with the current register values. ok is false for
// instructions that do not access memory.
func (c *CPU) EffectiveAddress(addr uint32) (uint32, bool) {
	raw, err := c.Mem.Fetch(addr)
	if err != nil {
		return 0, false
	}
	m, ok := disasm.DecodeMemOp(raw)
	if !ok {
		return 0, false
	}
	return m.EffectiveAddress(c.gpr), true
}

func (c *CPU) gpr(n int) uint32 { return c.GPR[n] }

// Reg returns the value of an integer register, or the bit pattern of ps0
// for a floating point one.
func (c *CPU) Reg(r ppc.Reg) uint64 {
	switch r.Kind {
	case ppc.KindGPR:
		return uint64(c.GPR[r.N])
	case ppc.KindFPR:
		return float64bits(c.FPR[r.N][0])
	}
	return 0
}
