package trace

import (
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"

	"ppctrace/internal/ppc"
)

const (
	DefaultLimit     = 100_000
	DefaultTimeLimit = 10 * time.Second
	MaxTimeLimit     = 30 * time.Second
)

// Options controls one recording.
type Options struct {
	Limit       int           // maximum entries; 0 = DefaultLimit
	TimeLimit   time.Duration // wall clock budget; 0 = DefaultTimeLimit, clamped to MaxTimeLimit
	StopAddr    uint32
	HasStop     bool // stop after capturing StopAddr
	ResetOnLoop bool // drop everything captured when the PC returns to the start
}

func (o Options) effectiveLimit() int {
	if o.Limit > 0 {
		return o.Limit
	}
	return DefaultLimit
}

func (o Options) effectiveTimeLimit() time.Duration {
	switch {
	case o.TimeLimit <= 0:
		return DefaultTimeLimit
	case o.TimeLimit > MaxTimeLimit:
		return MaxTimeLimit
	}
	return o.TimeLimit
}

// Recording is the result of Record.
type Recording struct {
	Entries   []Entry
	Start     uint32
	Started   bool // false when the call was ignored
	TimedOut  bool
	Truncated bool // Limit reached
	Elapsed   time.Duration
}

// State is the recorder session state.
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Recorder owns the one-recording-at-a-time session for a CPU.
type Recorder struct {
	Log log.Interface
	Now func() time.Time

	cpu CPU
	bps Breakpoints

	mu    sync.Mutex
	state State
}

// NewRecorder returns an idle recorder. bps may be nil.
func NewRecorder(cpu CPU, bps Breakpoints) *Recorder {
	return &Recorder{Log: log.Log, Now: time.Now, cpu: cpu, bps: bps}
}

// State returns the session state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return false
	}
	r.state = StateRecording
	return true
}

func (r *Recorder) end() {
	r.mu.Lock()
	r.state = StateIdle
	r.mu.Unlock()
}

// Record single steps the CPU from its current PC and captures one Entry per
// instruction until the stop address, the entry limit or the time limit is
// reached. If the CPU is running or another recording is active the call
// does nothing and returns a Recording with Started unset.
//
// A failing step ends the recording; the entries captured so far are
// returned together with the error.
func (r *Recorder) Record(opts Options) (Recording, error) {
	if !r.cpu.Stepping() {
		r.Log.Debug("trace: cpu not stepping, record ignored")
		return Recording{}, nil
	}
	if !r.begin() {
		r.Log.Debug("trace: recording already active, record ignored")
		return Recording{}, nil
	}
	defer r.end()

	limit := opts.effectiveLimit()
	began := r.Now()
	deadline := began.Add(opts.effectiveTimeLimit())

	unlock := r.cpu.PauseAndLock()
	defer unlock()
	if r.bps != nil {
		r.bps.ClearTemporary()
	}
	wasInterp := r.cpu.Interpreter()
	r.cpu.SetInterpreter(true)
	defer r.cpu.SetInterpreter(wasInterp)

	start := r.cpu.PC()
	rec := Recording{Start: start, Started: true}
	r.Log.WithFields(log.Fields{
		"start": fmt.Sprintf("0x%08x", start),
		"limit": limit,
	}).Debug("trace: recording")

	entries := make([]Entry, 0, min(limit, 4096))
	entries = append(entries, r.capture(start))

	var err error
	for {
		if !r.Now().Before(deadline) {
			rec.TimedOut = true
			break
		}
		if len(entries) >= limit {
			rec.Truncated = true
			break
		}
		pc := r.cpu.PC()
		if serr := r.cpu.Step(); serr != nil {
			err = fmt.Errorf("trace: step at 0x%08x: %w", pc, serr)
			break
		}
		pc = r.cpu.PC()
		if opts.ResetOnLoop && pc == start {
			entries = entries[:0]
		}
		entries = append(entries, r.capture(pc))
		if opts.HasStop && pc == opts.StopAddr {
			break
		}
	}

	rec.Entries = entries
	rec.Elapsed = r.Now().Sub(began)
	r.Log.WithFields(log.Fields{
		"entries":   len(entries),
		"timed_out": rec.TimedOut,
		"truncated": rec.Truncated,
	}).Info("trace: recorded")
	return rec, err
}

// capture builds the entry for the instruction at pc before it executes, so
// the effective address reflects the registers it will use.
func (r *Recorder) capture(pc uint32) Entry {
	text := ppc.Clean(r.cpu.Disassemble(pc))
	e := Entry{Addr: pc, Text: text}
	if ppc.IsMemory(ppc.Mnemonic(text)) {
		e.MemTarget, e.HasMem = r.cpu.EffectiveAddress(pc)
	}
	return e
}
