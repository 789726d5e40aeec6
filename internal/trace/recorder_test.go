package trace

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// scriptCPU replays a fixed PC sequence. texts maps addresses to disassembly
// and eas to effective addresses of memory instructions.
type scriptCPU struct {
	pcs    []uint32
	idx    int
	texts  map[uint32]string
	eas    map[uint32]uint32
	failAt int // step index that fails; 0 = never

	stepping bool
	interp   bool
	locked   int
	unlocked int
	onStep   func()
}

func (c *scriptCPU) Stepping() bool { return c.stepping }

func (c *scriptCPU) PauseAndLock() func() {
	c.locked++
	return func() { c.unlocked++ }
}

func (c *scriptCPU) PC() uint32 { return c.pcs[c.idx] }

func (c *scriptCPU) Step() error {
	if !c.interp {
		return errors.New("not interpreting")
	}
	if c.onStep != nil {
		c.onStep()
	}
	if c.failAt != 0 && c.idx+1 == c.failAt {
		return errors.New("boom")
	}
	if c.idx+1 < len(c.pcs) {
		c.idx++
	}
	return nil
}

func (c *scriptCPU) Disassemble(addr uint32) string {
	if s, ok := c.texts[addr]; ok {
		return s
	}
	return "nop"
}

func (c *scriptCPU) EffectiveAddress(addr uint32) (uint32, bool) {
	ea, ok := c.eas[addr]
	return ea, ok
}

func (c *scriptCPU) Interpreter() bool      { return c.interp }
func (c *scriptCPU) SetInterpreter(on bool) { c.interp = on }

type countingBreakpoints struct{ cleared int }

func (b *countingBreakpoints) ClearTemporary() { b.cleared++ }

func newScript(pcs ...uint32) *scriptCPU {
	return &scriptCPU{
		pcs:      pcs,
		stepping: true,
		texts: map[uint32]string{
			0x100: "addi r3, r4, 10",
			0x104: "stw   r3,\t0(r5)",
			0x108: "li r6, 1",
			0x10c: "lwz r7, 0(r5)",
		},
		eas: map[uint32]uint32{0x104: 0x8000, 0x10c: 0x8000},
	}
}

func addrs(entries []Entry) []uint32 {
	out := make([]uint32, len(entries))
	for i, e := range entries {
		out[i] = e.Addr
	}
	return out
}

func TestRecordUntilStopAddress(t *testing.T) {
	cpu := newScript(0x100, 0x104, 0x108, 0x10c, 0x110)
	rec, err := NewRecorder(cpu, nil).Record(Options{StopAddr: 0x10c, HasStop: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{Addr: 0x100, Text: "addi r3, r4, 10"},
		{Addr: 0x104, Text: "stw r3, 0(r5)", MemTarget: 0x8000, HasMem: true},
		{Addr: 0x108, Text: "li r6, 1"},
		{Addr: 0x10c, Text: "lwz r7, 0(r5)", MemTarget: 0x8000, HasMem: true},
	}
	if diff := cmp.Diff(want, rec.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if !rec.Started || rec.TimedOut || rec.Truncated {
		t.Errorf("flags: %+v", rec)
	}
	if rec.Start != 0x100 {
		t.Errorf("start = 0x%x", rec.Start)
	}
}

func TestRecordLimit(t *testing.T) {
	cpu := newScript(0x100, 0x104, 0x108, 0x10c, 0x110)
	rec, err := NewRecorder(cpu, nil).Record(Options{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Entries) != 3 || !rec.Truncated {
		t.Fatalf("got %d entries truncated=%v, want 3 true", len(rec.Entries), rec.Truncated)
	}
}

func TestRecordTimeout(t *testing.T) {
	cpu := newScript(0x100, 0x104, 0x108, 0x10c, 0x110)
	r := NewRecorder(cpu, nil)
	now := time.Unix(0, 0)
	r.Now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	rec, err := r.Record(Options{TimeLimit: 3 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.TimedOut {
		t.Fatal("expected timeout")
	}
	if len(rec.Entries) == 0 || len(rec.Entries) >= 5 {
		t.Errorf("entries = %d", len(rec.Entries))
	}
}

func TestTimeLimitClamp(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, DefaultTimeLimit},
		{-time.Second, DefaultTimeLimit},
		{5 * time.Second, 5 * time.Second},
		{time.Hour, MaxTimeLimit},
	}
	for _, tt := range tests {
		if got := (Options{TimeLimit: tt.in}).effectiveTimeLimit(); got != tt.want {
			t.Errorf("effectiveTimeLimit(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResetOnLoopKeepsLastIteration(t *testing.T) {
	cpu := newScript(
		0x100, 0x104, 0x108,
		0x100, 0x104, 0x108,
		0x100, 0x104, 0x10c,
	)
	rec, err := NewRecorder(cpu, nil).Record(Options{ResetOnLoop: true, StopAddr: 0x10c, HasStop: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{0x100, 0x104, 0x10c}, addrs(rec.Entries)); diff != "" {
		t.Errorf("addresses (-want +got):\n%s", diff)
	}
}

func TestResetOnLoopStopAtStart(t *testing.T) {
	cpu := newScript(0x100, 0x104, 0x108, 0x100, 0x104, 0x108, 0x100)
	rec, err := NewRecorder(cpu, nil).Record(Options{ResetOnLoop: true, StopAddr: 0x100, HasStop: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{0x100}, addrs(rec.Entries)); diff != "" {
		t.Errorf("addresses (-want +got):\n%s", diff)
	}
}

func TestRecordIgnoredWhenRunning(t *testing.T) {
	cpu := newScript(0x100, 0x104)
	cpu.stepping = false
	rec, err := NewRecorder(cpu, nil).Record(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Started || rec.Entries != nil {
		t.Errorf("expected no-op, got %+v", rec)
	}
	if cpu.locked != 0 {
		t.Error("cpu was locked")
	}
}

func TestRecordIgnoredWhileRecording(t *testing.T) {
	cpu := newScript(0x100, 0x104, 0x108)
	r := NewRecorder(cpu, nil)

	var inner Recording
	cpu.onStep = func() {
		if r.State() != StateRecording {
			t.Error("state not recording during step")
		}
		inner, _ = r.Record(Options{})
	}
	outer, err := r.Record(Options{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !outer.Started || inner.Started {
		t.Errorf("outer.Started=%v inner.Started=%v", outer.Started, inner.Started)
	}
	if r.State() != StateIdle {
		t.Errorf("state = %v after recording", r.State())
	}
}

func TestRecordRestoresCPU(t *testing.T) {
	cpu := newScript(0x100, 0x104)
	var bps countingBreakpoints
	if _, err := NewRecorder(cpu, &bps).Record(Options{Limit: 2}); err != nil {
		t.Fatal(err)
	}
	if cpu.interp {
		t.Error("interpreter mode not restored")
	}
	if cpu.locked != 1 || cpu.unlocked != 1 {
		t.Errorf("locked=%d unlocked=%d", cpu.locked, cpu.unlocked)
	}
	if bps.cleared != 1 {
		t.Errorf("temporary breakpoints cleared %d times", bps.cleared)
	}
}

func TestRecordStepError(t *testing.T) {
	cpu := newScript(0x100, 0x104, 0x108)
	cpu.failAt = 2
	r := NewRecorder(cpu, nil)
	rec, err := r.Record(Options{})
	if err == nil {
		t.Fatal("expected step error")
	}
	if diff := cmp.Diff([]uint32{0x100, 0x104}, addrs(rec.Entries)); diff != "" {
		t.Errorf("partial entries (-want +got):\n%s", diff)
	}
	if r.State() != StateIdle || cpu.unlocked != 1 {
		t.Error("recorder did not release after error")
	}
}
