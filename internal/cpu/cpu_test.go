package cpu

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"ppctrace/internal/asm"
	"ppctrace/internal/breakpoint"
)

const (
	codeBase = 0x80003100
	dataBase = 0x80100000
	dataHi   = -0x7FF0 // lis value for dataBase
)

func load(t *testing.T, words ...uint32) *CPU {
	t.Helper()
	p := asm.Program{Base: codeBase}
	p.Emit(words...)
	c := New()
	c.Mem.Load(p.Base, p.Bytes())
	c.SetPC(p.Base)
	return c
}

func stepN(t *testing.T, c *CPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("step %d at 0x%08x: %v", i, c.PC(), err)
		}
	}
}

func TestArithmeticAndMemory(t *testing.T) {
	c := load(t,
		asm.Li(4, 5),
		asm.Addi(3, 4, 10),
		asm.Lis(5, dataHi),
		asm.Stw(3, 0, 5),
		asm.Lwz(6, 0, 5),
		asm.Stwu(3, 8, 5),
	)
	stepN(t, c, 3)

	if c.GPR[3] != 15 {
		t.Errorf("r3 = %d, want 15", c.GPR[3])
	}
	if c.GPR[5] != dataBase {
		t.Errorf("r5 = 0x%x, want 0x%x", c.GPR[5], dataBase)
	}

	ea, ok := c.EffectiveAddress(c.PC())
	if !ok || ea != dataBase {
		t.Errorf("EffectiveAddress(stw) = 0x%x, %v; want 0x%x", ea, ok, dataBase)
	}
	if _, ok := c.EffectiveAddress(codeBase); ok {
		t.Error("li reported a memory access")
	}

	stepN(t, c, 3)
	if got := c.Mem.Read32(dataBase); got != 15 {
		t.Errorf("mem = %d, want 15", got)
	}
	if c.GPR[6] != 15 {
		t.Errorf("r6 = %d, want 15", c.GPR[6])
	}
	if c.GPR[5] != dataBase+8 {
		t.Errorf("stwu did not update r5: 0x%x", c.GPR[5])
	}
	if c.Steps() != 6 {
		t.Errorf("steps = %d, want 6", c.Steps())
	}
}

func TestCountedLoop(t *testing.T) {
	c := load(t,
		asm.Li(3, 0),
		asm.Li(4, 3),
		asm.Mtctr(4),
		asm.Addi(3, 3, 1),
		asm.Bdnz(-4),
	)
	stepN(t, c, 3+3*2)
	if c.GPR[3] != 3 {
		t.Errorf("r3 = %d, want 3", c.GPR[3])
	}
	if c.PC() != codeBase+20 {
		t.Errorf("pc = 0x%x, want fall through to 0x%x", c.PC(), codeBase+20)
	}
}

func TestCompareAndBranch(t *testing.T) {
	c := load(t,
		asm.Li(3, 15),
		asm.Cmpwi(0, 3, 15),
		asm.Beq(0, 8),
		asm.Li(3, 0), // skipped
		asm.Cmpwi(7, 3, 20),
		asm.Blt(7, 8),
		asm.Li(3, 1), // skipped
		asm.Nop(),
	)
	stepN(t, c, 5)
	if c.GPR[3] != 15 {
		t.Errorf("r3 = %d, want 15", c.GPR[3])
	}
	if c.PC() != codeBase+28 {
		t.Errorf("pc = 0x%x, want 0x%x", c.PC(), codeBase+28)
	}
}

func TestCallAndReturn(t *testing.T) {
	c := load(t,
		asm.Bl(12),
		asm.Li(4, 2),
		asm.Nop(),
		asm.Li(3, 1), // callee
		asm.Blr(),
	)
	stepN(t, c, 4)
	if c.GPR[3] != 1 || c.GPR[4] != 2 {
		t.Errorf("r3=%d r4=%d, want 1 2", c.GPR[3], c.GPR[4])
	}
	if c.LR != codeBase+4 {
		t.Errorf("lr = 0x%x, want 0x%x", c.LR, codeBase+4)
	}
}

func TestRotate(t *testing.T) {
	c := load(t,
		asm.Lis(3, 0x1234),
		asm.Ori(3, 3, 0x5678),
		asm.Rlwinm(4, 3, 8, 24, 31),
		asm.Li(5, -1),
		asm.Rlwimi(5, 3, 0, 16, 31),
	)
	stepN(t, c, 5)
	if c.GPR[4] != 0x12 {
		t.Errorf("rlwinm = 0x%x, want 0x12", c.GPR[4])
	}
	if c.GPR[5] != 0xFFFF5678 {
		t.Errorf("rlwimi = 0x%x, want 0xFFFF5678", c.GPR[5])
	}
}

func TestFloatSingle(t *testing.T) {
	c := load(t,
		asm.Lis(5, dataHi),
		asm.Lfs(1, 0, 5),
		asm.Lfs(2, 4, 5),
		asm.Fadds(3, 1, 2),
		asm.Stfs(3, 8, 5),
	)
	c.Mem.Write32(dataBase, math.Float32bits(1.5))
	c.Mem.Write32(dataBase+4, math.Float32bits(2.25))
	stepN(t, c, 5)
	if got := math.Float32frombits(c.Mem.Read32(dataBase + 8)); got != 3.75 {
		t.Errorf("stored %v, want 3.75", got)
	}
}

func TestJITModeRefusesStep(t *testing.T) {
	c := load(t, asm.Nop())
	c.SetInterpreter(false)
	if err := c.Step(); !errors.Is(err, ErrNotStepping) {
		t.Fatalf("err = %v, want ErrNotStepping", err)
	}
	c.SetMode(ModeInterpreter)
	if err := c.Step(); err != nil {
		t.Fatal(err)
	}
}

func TestUnmappedFetch(t *testing.T) {
	c := load(t, asm.Nop())
	stepN(t, c, 1)

	// Same page, zero word: mapped but not an instruction.
	if err := c.Step(); !errors.Is(err, ErrUnimplemented) {
		t.Fatalf("err = %v, want ErrUnimplemented", err)
	}

	c.SetPC(0x90000000)
	if err := c.Step(); !errors.Is(err, ErrUnmapped) {
		t.Fatalf("err = %v, want ErrUnmapped", err)
	}
}

func TestRunStopsAtBreakpoint(t *testing.T) {
	c := load(t,
		asm.Li(3, 0),
		asm.Addi(3, 3, 1),
		asm.B(-4),
	)
	var bps breakpoint.Set
	bps.Add(codeBase+8, false)

	reason, err := c.Run(context.Background(), &bps, 100)
	if err != nil {
		t.Fatal(err)
	}
	if reason != StopBreakpoint {
		t.Fatalf("reason = %v, want breakpoint", reason)
	}
	if c.PC() != codeBase+8 {
		t.Errorf("pc = 0x%x", c.PC())
	}
	if !c.Stepping() {
		t.Error("cpu not stepping after Run")
	}

	bps.Remove(codeBase + 8)
	reason, _ = c.Run(context.Background(), &bps, 10)
	if reason != StopStepLimit {
		t.Errorf("reason = %v, want step limit", reason)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reason, _ = c.Run(ctx, nil, 0)
	if reason != StopCancelled {
		t.Errorf("reason = %v, want cancelled", reason)
	}
}

func TestPCReadableWhileRunning(t *testing.T) {
	c := load(t,
		asm.Li(3, 0),
		asm.Addi(3, 3, 1),
		asm.B(-4),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan StopReason, 1)
	go func() {
		reason, _ := c.Run(ctx, nil, 0)
		done <- reason
	}()
	for c.Steps() < 1000 {
		if pc := c.PC(); pc < codeBase || pc > codeBase+8 {
			cancel()
			t.Fatalf("pc = 0x%x outside the loop", pc)
		}
	}
	cancel()
	if reason := <-done; reason != StopCancelled {
		t.Errorf("reason = %v, want cancelled", reason)
	}
}

func TestDisassemble(t *testing.T) {
	c := load(t, asm.Stw(3, 8, 1))
	if got := c.Disassemble(codeBase); !strings.HasPrefix(got, "stw r3") {
		t.Errorf("Disassemble = %q", got)
	}
	if got := c.Disassemble(0x90000000); got != "??" {
		t.Errorf("Disassemble(unmapped) = %q", got)
	}
}

func TestPauseAndLockUnlockOnce(t *testing.T) {
	c := New()
	unlock := c.PauseAndLock()
	unlock()
	unlock()
	// A second PauseAndLock would deadlock if the first unlock had not run.
	c.PauseAndLock()()
}

func TestMask(t *testing.T) {
	tests := []struct{ mb, me, want uint32 }{
		{0, 31, 0xFFFFFFFF},
		{24, 31, 0x000000FF},
		{0, 7, 0xFF000000},
		{28, 3, 0xF000000F},
	}
	for _, tt := range tests {
		if got := mask(tt.mb, tt.me); got != tt.want {
			t.Errorf("mask(%d,%d) = 0x%08x, want 0x%08x", tt.mb, tt.me, got, tt.want)
		}
	}
}
