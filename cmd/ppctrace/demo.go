package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zboralski/lattice/render"

	"ppctrace/internal/asm"
	"ppctrace/internal/cpu"
	"ppctrace/internal/dataflow"
	"ppctrace/internal/flowgraph"
	"ppctrace/internal/output"
	"ppctrace/internal/session"
	"ppctrace/internal/trace"
)

const (
	demoBase = 0x80003100
	demoData = 0x80100000
	demoHi   = -0x7FF0 // upper half of demoData for lis
	demoSum  = demoData + 0x40
)

// demoProgram sums four words at demoData into demoSum. It returns the
// program and the address of its final blr.
func demoProgram() (asm.Program, uint32) {
	p := asm.Program{Base: demoBase}
	p.Emit(
		asm.Lis(5, demoHi),
		asm.Li(3, 0),
		asm.Li(4, 4),
		asm.Mtctr(4),
	)
	loop := p.Emit(asm.Lwz(6, 0, 5))
	p.Emit(
		asm.Add(3, 3, 6),
		asm.Addi(5, 5, 4),
	)
	p.Emit(asm.Bdnz(int16(int32(loop) - int32(p.PC()))))
	p.Emit(
		asm.Lis(7, demoHi),
		asm.Stw(3, demoSum-demoData, 7),
	)
	end := p.Emit(asm.Blr())
	return p, end
}

func cmdDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	outDir := fs.String("out", "", "output directory")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outDir == "" {
		return fmt.Errorf("--out is required")
	}
	defer common.setup()()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	p, end := demoProgram()
	binPath := filepath.Join(*outDir, "demo.bin")
	if err := os.WriteFile(binPath, p.Bytes(), 0644); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c := cpu.New()
	c.Mem.Load(p.Base, p.Bytes())
	for i := uint32(0); i < 4; i++ {
		c.Mem.Write32(demoData+4*i, i+1)
	}
	c.SetPC(p.Base)
	c.GPR[1] = defaultStack

	s := session.New(c, nil)
	rec, err := s.Record(trace.Options{StopAddr: end, HasStop: true})
	if err != nil {
		return err
	}
	tracePath := filepath.Join(*outDir, "trace.jsonl")
	if err := output.WriteTraceFile(tracePath, rec.Entries); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "recorded %d instructions -> %s (sum = %d)\n",
		len(rec.Entries), tracePath, c.Mem.Read32(demoSum))

	storeAddr := end - 4
	res, err := s.Backward(dataflow.Query{
		Target: dataflow.MemTarget(demoSum),
		Range:  dataflow.From(storeAddr),
	})
	if err != nil {
		return err
	}
	printResult(res)

	dotPath := filepath.Join(*outDir, "flow.dot")
	if err := output.WriteDOT(dotPath, render.DOT(flowgraph.Build(res), "where the sum came from")); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n\ntry:\n  ppctrace disasm --bin %s --base 0x%08x\n  ppctrace track --in %s --mem 0x%08x --backward --from 0x%08x\n",
		dotPath, binPath, demoBase, tracePath, uint32(demoSum), storeAddr)
	return nil
}
