package dataflow

import (
	"ppctrace/internal/ppc"
	"ppctrace/internal/trace"
)

// Forward follows the target from oldest to newest entry and reports the
// instructions that define, move or consume it. The first instruction that
// touches the seed is always reported and never retires it.
func Forward(entries []trace.Entry, q Query) (Result, error) {
	span, err := Select(entries, q.Range, false)
	if err != nil {
		return Result{}, err
	}
	t, err := newTracker(q, DirForward)
	if err != nil {
		return Result{}, err
	}
	for i := span.Begin; i <= span.End; i++ {
		if t.set.Empty() {
			break
		}
		t.res.Scanned++
		if t.forward(i, entries[i]) {
			break
		}
	}
	return t.result(), nil
}

// forward processes one entry and reports whether the scan must stop.
func (t *tracker) forward(i int, e trace.Entry) bool {
	if t.skip(e) {
		return false
	}
	a := Extract(e)
	if !a.Reg0.Valid() {
		return false
	}
	m := t.match(a)
	if !m.any() {
		return false
	}

	excluded := ppc.IsExcluded(a.Mnemonic)
	memOp := a.IsLoad || a.IsStore
	// A tracked base or index register only forms the address.
	addressOnly := memOp && m.sources() && !m.reg0 && !m.mem
	show := t.verbose
	if !show && !excluded && !addressOnly {
		show = (m.reg0 && a.IsStore) || (m.mem && a.IsLoad) || m.sources() || t.firstHit
	}
	if show && t.emit(i, a, m) {
		return true
	}
	if excluded || addressOnly {
		// Neither writes a tracked value, so the first hit is still pending.
		return false
	}

	switch {
	case memOp:
		switch {
		case m.mem && a.IsLoad:
			t.set.AddReg(a.Reg0)
		case m.mem && a.IsStore:
			// Storing a tracked register back leaves the memory tracked.
			if !m.reg0 && !t.firstHit {
				t.set.RemoveMem(a.MemTarget)
			}
		case m.reg0 && a.IsStore:
			t.set.AddMem(a.MemTarget)
		case m.reg0 && a.IsLoad:
			if !t.firstHit {
				t.set.RemoveReg(a.Reg0)
			}
		}
	case m.sources() && !m.reg0:
		t.set.AddReg(a.Reg0)
	case m.reg0 && !m.sources():
		if !t.firstHit && !ppc.IsCombiner(a.Mnemonic) {
			t.set.RemoveReg(a.Reg0)
		}
	}
	t.firstHit = false
	return false
}
