package dataflow

import (
	"fmt"

	"ppctrace/internal/trace"
)

// DefaultLimit caps the number of outputs when Query.Limit is unset.
const DefaultLimit = 1000

// Direction is the scan order of a run.
type Direction uint8

const (
	DirForward Direction = iota
	DirBackward
)

func (d Direction) String() string {
	if d == DirBackward {
		return "backward"
	}
	return "forward"
}

// Query parameterises a tracking run.
type Query struct {
	Target  Target
	Range   Range
	Limit   int  // max outputs (0 = DefaultLimit)
	Verbose bool // also emit excluded and suppressed matches
}

func (q Query) effectiveLimit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return DefaultLimit
}

// Output is one reported trace entry.
type Output struct {
	Index     int
	Addr      uint32
	MemTarget uint32
	HasMem    bool
	Text      string
	Via       []string // tracked locations the entry matched
}

func (o Output) String() string {
	if o.HasMem {
		return fmt.Sprintf("0x%08x  %-32s  [0x%08x]", o.Addr, o.Text, o.MemTarget)
	}
	return fmt.Sprintf("0x%08x  %s", o.Addr, o.Text)
}

// Result is the outcome of a tracking run.
type Result struct {
	Direction Direction
	Target    Target
	Outputs   []Output
	Truncated bool       // more than Limit outputs would have been produced
	Remaining TrackedSet // tracked set when the scan stopped
	Scanned   int        // entries visited
}

// match records which tracked locations an entry touches.
type match struct {
	reg0 bool
	reg1 bool
	reg2 bool
	mem  bool
}

func (m match) any() bool     { return m.reg0 || m.reg1 || m.reg2 || m.mem }
func (m match) sources() bool { return m.reg1 || m.reg2 }

// tracker holds the state shared by both scan directions.
type tracker struct {
	set      TrackedSet
	limit    int
	verbose  bool
	firstHit bool
	res      Result
}

func newTracker(q Query, dir Direction) (*tracker, error) {
	set, err := q.Target.seed()
	if err != nil {
		return nil, err
	}
	return &tracker{
		set:      set,
		limit:    q.effectiveLimit(),
		verbose:  q.Verbose,
		firstHit: dir == DirForward,
		res:      Result{Direction: dir, Target: q.Target},
	}, nil
}

// skip is the cheap pre-check run before operand extraction: with no
// registers tracked only an access to tracked memory can matter.
func (t *tracker) skip(e trace.Entry) bool {
	return len(t.set.Regs) == 0 && !(e.HasMem && t.set.HasMem(e.MemTarget))
}

func (t *tracker) match(a Attributes) match {
	return match{
		reg0: t.set.HasReg(a.Reg0),
		reg1: t.set.HasReg(a.Reg1),
		reg2: t.set.HasReg(a.Reg2),
		mem:  a.HasMem && t.set.HasMem(a.MemTarget),
	}
}

// emit appends an output. It returns true when the limit was already
// reached, in which case the run is truncated and must stop.
func (t *tracker) emit(i int, a Attributes, m match) bool {
	if len(t.res.Outputs) >= t.limit {
		t.res.Truncated = true
		return true
	}
	var via []string
	add := func(loc string) {
		for _, v := range via {
			if v == loc {
				return
			}
		}
		via = append(via, loc)
	}
	if m.reg0 {
		add(a.Reg0.String())
	}
	if m.reg1 {
		add(a.Reg1.String())
	}
	if m.reg2 {
		add(a.Reg2.String())
	}
	if m.mem {
		add(fmt.Sprintf("0x%08x", a.MemTarget))
	}
	t.res.Outputs = append(t.res.Outputs, Output{
		Index:     i,
		Addr:      a.Addr,
		MemTarget: a.MemTarget,
		HasMem:    a.HasMem,
		Text:      a.Text,
		Via:       via,
	})
	return false
}

func (t *tracker) result() Result {
	t.res.Remaining = t.set.Clone()
	return t.res
}
