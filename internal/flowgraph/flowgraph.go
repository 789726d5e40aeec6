// Package flowgraph turns tracking results into lattice graphs for DOT
// rendering.
package flowgraph

import (
	"fmt"
	"slices"

	"github.com/zboralski/lattice"

	"ppctrace/internal/dataflow"
	"ppctrace/internal/ppc"
	"ppctrace/internal/trace"
)

// NodeName is the graph label of an output.
func NodeName(o dataflow.Output) string {
	return fmt.Sprintf("0x%08x %s", o.Addr, o.Text)
}

// Locations returns the locations an output writes and reads, as register
// names and hex addresses.
func Locations(o dataflow.Output) (defs, uses []string) {
	a := dataflow.Extract(trace.Entry{Addr: o.Addr, Text: o.Text, MemTarget: o.MemTarget, HasMem: o.HasMem})
	mem := fmt.Sprintf("0x%08x", a.MemTarget)
	for _, r := range a.Sources() {
		uses = append(uses, r.String())
	}
	switch {
	case a.IsStore:
		uses = append(uses, a.Reg0.String())
		defs = append(defs, mem)
	case a.IsLoad:
		uses = append(uses, mem)
		defs = append(defs, a.Reg0.String())
	case a.Reg0.Valid():
		if ppc.IsCombiner(a.Mnemonic) {
			uses = append(uses, a.Reg0.String())
		}
		if !ppc.IsExcluded(a.Mnemonic) {
			defs = append(defs, a.Reg0.String())
		} else {
			uses = append(uses, a.Reg0.String())
		}
	}
	return defs, uses
}

// Build constructs the def-use graph of a result. Each output becomes a node
// and each definition is linked to the later outputs that read it, up to its
// next redefinition. Edges run in program order for both scan directions.
func Build(res dataflow.Result) *lattice.Graph {
	outs := programOrder(res)
	defs := make([][]string, len(outs))
	uses := make([][]string, len(outs))
	for i, o := range outs {
		defs[i], uses[i] = Locations(o)
	}

	g := &lattice.Graph{}
	for _, o := range outs {
		g.Nodes = append(g.Nodes, NodeName(o))
	}
	for i, from := range outs {
		for _, d := range defs[i] {
			for j := i + 1; j < len(outs); j++ {
				if slices.Contains(uses[j], d) {
					g.Edges = append(g.Edges, lattice.Edge{
						Caller: NodeName(from),
						Callee: NodeName(outs[j]),
					})
				}
				if slices.Contains(defs[j], d) {
					break
				}
			}
		}
	}
	g.Dedup()
	return g
}

func programOrder(res dataflow.Result) []dataflow.Output {
	outs := slices.Clone(res.Outputs)
	if res.Direction == dataflow.DirBackward {
		slices.Reverse(outs)
	}
	return outs
}
