package flowgraph

import (
	"slices"
	"strings"
	"testing"

	"github.com/zboralski/lattice/render"

	"ppctrace/internal/dataflow"
	"ppctrace/internal/ppc"
	"ppctrace/internal/trace"
)

var entries = []trace.Entry{
	{Addr: 0x80003100, Text: "li r4, 5"},
	{Addr: 0x80003104, Text: "addi r3, r4, 10"},
	{Addr: 0x80003108, Text: "bl 0x80003200"},
	{Addr: 0x80003200, Text: "stw r3, 0(r5)", MemTarget: 0x80100000, HasMem: true},
	{Addr: 0x80003204, Text: "blr"},
	{Addr: 0x8000310c, Text: "lwz r6, 0(r5)", MemTarget: 0x80100000, HasMem: true},
}

func TestBuildForward(t *testing.T) {
	res, err := dataflow.Forward(entries, dataflow.Query{Target: dataflow.RegTarget(ppc.GPR(4))})
	if err != nil {
		t.Fatal(err)
	}
	g := Build(res)
	if len(g.Nodes) != 4 {
		t.Fatalf("nodes = %v", g.Nodes)
	}
	want := map[[2]string]bool{}
	for _, w := range [][2]int{{0, 1}, {1, 3}, {3, 5}} {
		want[[2]string{NodeName(outputAt(res, w[0])), NodeName(outputAt(res, w[1]))}] = true
	}
	if len(g.Edges) != len(want) {
		t.Fatalf("edges = %+v", g.Edges)
	}
	for _, e := range g.Edges {
		if !want[[2]string{e.Caller, e.Callee}] {
			t.Errorf("unexpected edge %s -> %s", e.Caller, e.Callee)
		}
	}
	dot := render.DOT(g, "r4 forward")
	if !strings.Contains(dot, "digraph") {
		t.Errorf("DOT output missing digraph header:\n%s", dot)
	}
}

func TestBuildBackwardPointsForward(t *testing.T) {
	res, err := dataflow.Backward(entries, dataflow.Query{Target: dataflow.RegTarget(ppc.GPR(6))})
	if err != nil {
		t.Fatal(err)
	}
	g := Build(res)
	if len(g.Edges) == 0 {
		t.Fatalf("no edges for %+v", res.Outputs)
	}
	oldest := NodeName(res.Outputs[len(res.Outputs)-1])
	found := false
	for _, e := range g.Edges {
		found = found || e.Caller == oldest
		if e.Callee == oldest {
			t.Errorf("edge into oldest output: %s -> %s", e.Caller, e.Callee)
		}
	}
	if !found {
		t.Errorf("no edge starts at oldest output %q: %+v", oldest, g.Edges)
	}
}

func TestLocations(t *testing.T) {
	tests := []struct {
		out        dataflow.Output
		defs, uses []string
	}{
		{dataflow.Output{Text: "add r3, r4, r5"}, []string{"r3"}, []string{"r4", "r5"}},
		{dataflow.Output{Text: "stw r3, 0(r5)", MemTarget: 0x8000, HasMem: true}, []string{"0x00008000"}, []string{"r5", "r3"}},
		{dataflow.Output{Text: "lwz r6, 0(r5)", MemTarget: 0x8000, HasMem: true}, []string{"r6"}, []string{"r5", "0x00008000"}},
		{dataflow.Output{Text: "rlwimi r3, r7, 8, 16, 23"}, []string{"r3"}, []string{"r7", "r3"}},
		{dataflow.Output{Text: "cmpwi r3, 0"}, nil, []string{"r3"}},
	}
	for _, tt := range tests {
		defs, uses := Locations(tt.out)
		if !slices.Equal(defs, tt.defs) || !slices.Equal(uses, tt.uses) {
			t.Errorf("Locations(%q) = %v, %v; want %v, %v", tt.out.Text, defs, uses, tt.defs, tt.uses)
		}
	}
}

func outputAt(res dataflow.Result, index int) dataflow.Output {
	for _, o := range res.Outputs {
		if o.Index == index {
			return o
		}
	}
	return dataflow.Output{}
}

func TestSplitBlocks(t *testing.T) {
	got := SplitBlocks(entries)
	want := []Block{{0, 0, 3}, {1, 3, 5}, {2, 5, 6}}
	if len(got) != len(want) {
		t.Fatalf("blocks = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if SplitBlocks(nil) != nil {
		t.Error("SplitBlocks(nil) should be empty")
	}
}

func TestBuildTimeline(t *testing.T) {
	res, err := dataflow.Forward(entries, dataflow.Query{Target: dataflow.RegTarget(ppc.GPR(4))})
	if err != nil {
		t.Fatal(err)
	}
	cfg := BuildTimeline("trace", entries, res)
	if len(cfg.Funcs) != 1 {
		t.Fatalf("funcs = %d", len(cfg.Funcs))
	}
	f := cfg.Funcs[0]
	if len(f.Blocks) != 3 {
		t.Fatalf("blocks = %d", len(f.Blocks))
	}
	if len(f.Blocks[0].Calls) != 2 || len(f.Blocks[1].Calls) != 1 || len(f.Blocks[2].Calls) != 1 {
		t.Errorf("calls per block = %d %d %d",
			len(f.Blocks[0].Calls), len(f.Blocks[1].Calls), len(f.Blocks[2].Calls))
	}
	if !f.Blocks[2].Term || f.Blocks[0].Term {
		t.Error("only the last block should be terminal")
	}
	if dot := render.DOTCFG(cfg, "trace"); dot == "" {
		t.Error("expected non-empty DOT output")
	}
}
