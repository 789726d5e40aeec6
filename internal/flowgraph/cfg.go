package flowgraph

import (
	"github.com/zboralski/lattice"

	"ppctrace/internal/dataflow"
	"ppctrace/internal/disasm"
	"ppctrace/internal/trace"
)

// Block is a run of consecutive trace entries.
type Block struct {
	ID    int
	Start int // first entry index
	End   int // one past the last entry index
}

// SplitBlocks cuts a trace into straight-line runs. A run ends after an
// entry whose successor is not the next word in memory.
func SplitBlocks(entries []trace.Entry) []Block {
	var blocks []Block
	start := 0
	for i := range entries {
		last := i == len(entries)-1
		if last || entries[i+1].Addr != entries[i].Addr+4 {
			blocks = append(blocks, Block{ID: len(blocks), Start: start, End: i + 1})
			start = i + 1
		}
	}
	return blocks
}

// BuildTimeline constructs a one-function CFG of the executed trace: blocks
// follow execution order and every reported output appears as a call site
// labelled with its instruction, so the rendered graph shows where in the
// run the value was touched.
func BuildTimeline(name string, entries []trace.Entry, res dataflow.Result) *lattice.CFGGraph {
	byIndex := make(map[int]dataflow.Output, len(res.Outputs))
	for _, o := range res.Outputs {
		byIndex[o.Index] = o
	}

	f := &lattice.FuncCFG{Name: name}
	blocks := SplitBlocks(entries)
	for bi, b := range blocks {
		lb := &lattice.BasicBlock{
			ID:    b.ID,
			Start: b.Start,
			End:   b.End,
			Term:  bi == len(blocks)-1,
		}
		if !lb.Term {
			cond := ""
			if disasm.IsConditionalText(entries[b.End-1].Text) {
				cond = "T"
			}
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: b.ID + 1, Cond: cond})
		}
		for idx := b.Start; idx < b.End; idx++ {
			if o, ok := byIndex[idx]; ok {
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: idx,
					Callee: NodeName(o),
				})
			}
		}
		f.Blocks = append(f.Blocks, lb)
	}
	return &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{f}}
}
