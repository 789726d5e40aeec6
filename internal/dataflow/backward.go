package dataflow

import (
	"ppctrace/internal/ppc"
	"ppctrace/internal/trace"
)

// Backward follows the target from newest to oldest entry and reports the
// instructions that produced it: register definitions and the stores that
// filled tracked memory.
func Backward(entries []trace.Entry, q Query) (Result, error) {
	span, err := Select(entries, q.Range, true)
	if err != nil {
		return Result{}, err
	}
	t, err := newTracker(q, DirBackward)
	if err != nil {
		return Result{}, err
	}
	for i := span.Begin; i >= span.End && i >= 0; i-- {
		if t.set.Empty() {
			break
		}
		t.res.Scanned++
		if t.backward(i, entries[i]) {
			break
		}
	}
	return t.result(), nil
}

func (t *tracker) backward(i int, e trace.Entry) bool {
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
	show := t.verbose
	if !show && !excluded {
		show = (m.reg0 && !a.IsStore) || (m.mem && a.IsStore)
	}
	if show && t.emit(i, a, m) {
		return true
	}
	if excluded {
		return false
	}

	switch {
	case a.IsLoad || a.IsStore:
		switch {
		case m.mem && a.IsStore:
			t.set.AddReg(a.Reg0)
			t.set.RemoveMem(a.MemTarget)
		case m.reg0 && a.IsLoad:
			t.set.RemoveReg(a.Reg0)
			t.set.AddMem(a.MemTarget)
		}
	case m.reg0:
		selfRef := a.Reg1 == a.Reg0 || a.Reg2 == a.Reg0
		if !selfRef && !ppc.IsCombiner(a.Mnemonic) {
			t.set.RemoveReg(a.Reg0)
		}
		for _, r := range a.Sources() {
			t.set.AddReg(r)
		}
	}
	return false
}
