package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/zboralski/lattice/render"

	"ppctrace/internal/dataflow"
	"ppctrace/internal/diag"
	"ppctrace/internal/flowgraph"
	"ppctrace/internal/output"
	"ppctrace/internal/session"
)

func cmdTrack(args []string) error {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	inPath := fs.String("in", "", "input trace file (.jsonl)")
	reg := fs.String("reg", "", "register to track (r0-r31, f0-f31, sp, rtoc, pN)")
	mem := fs.String("mem", "", "memory address to track")
	backward := fs.Bool("backward", false, "trace where the value came from")
	from := fs.String("from", "", "range start address (newest end with --backward)")
	to := fs.String("to", "", "range end address (oldest end with --backward)")
	limit := fs.Int("limit", 0, "max reported instructions (0 = 1000)")
	verbose := fs.Bool("verbose", false, "report every match, including compares and address-only uses")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	dotPath := fs.String("dot", "", "write the def-use graph as DOT")
	cfgPath := fs.String("cfg", "", "write the trace timeline as DOT")
	strict := fs.Bool("strict", false, "fail on the first malformed trace line")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return fmt.Errorf("--in is required")
	}
	if (*reg == "") == (*mem == "") {
		return fmt.Errorf("exactly one of --reg and --mem is required")
	}
	defer common.setup()()

	target, err := dataflow.ParseTarget(*reg + *mem)
	if err != nil {
		return err
	}
	if (*reg != "" && target.IsMem) || (*mem != "" && !target.IsMem) {
		return fmt.Errorf("%w: %q", dataflow.ErrInvalidTarget, *reg+*mem)
	}

	q := dataflow.Query{Target: target, Limit: *limit, Verbose: *verbose}
	if *from != "" {
		if q.Range.Start, err = parseAddr(*from); err != nil {
			return err
		}
		q.Range.HasStart = true
	}
	if *to != "" {
		if q.Range.End, err = parseAddr(*to); err != nil {
			return err
		}
		q.Range.HasEnd = true
	}

	mode := diag.ModeBestEffort
	if *strict {
		mode = diag.ModeStrict
	}
	var loadDiags diag.Diags
	entries, err := output.ReadTraceFile(*inPath, mode, &loadDiags)
	if err != nil {
		return err
	}
	for _, d := range loadDiags.Items() {
		fmt.Fprintln(os.Stderr, colorWarn(d.String()))
	}
	fmt.Fprintf(os.Stderr, "loaded %d entries from %s\n", len(entries), *inPath)

	s := session.New(nil, nil)
	s.Load(entries)
	run := s.Forward
	if *backward {
		run = s.Backward
	}
	res, err := run(q)
	diags := s.Diags()
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, colorWarn(d.String()))
	}
	if err != nil {
		return err
	}

	if *asJSON {
		if err := output.WriteResultJSON(os.Stdout, res, diags); err != nil {
			return err
		}
	} else {
		printResult(res)
	}

	if *dotPath != "" {
		title := fmt.Sprintf("%s %s", res.Target, res.Direction)
		if err := output.WriteDOT(*dotPath, render.DOT(flowgraph.Build(res), title)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", *dotPath)
	}
	if *cfgPath != "" {
		cfg := flowgraph.BuildTimeline("trace", entries, res)
		if err := output.WriteDOT(*cfgPath, render.DOTCFG(cfg, "trace")); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", *cfgPath)
	}
	return nil
}

func printResult(res dataflow.Result) {
	fmt.Printf("; %s %s: %d outputs, %d entries scanned\n",
		res.Direction, colorHit(res.Target), len(res.Outputs), res.Scanned)
	for _, o := range res.Outputs {
		line := fmt.Sprintf("%s  %-32s", colorAddr("0x%08x", o.Addr), o.Text)
		if o.HasMem {
			line += " " + colorAddr("[0x%08x]", o.MemTarget)
		}
		if len(o.Via) > 0 {
			line += "  ; " + colorLoc(strings.Join(o.Via, ", "))
		}
		fmt.Println(line)
	}
	if res.Truncated {
		fmt.Println(colorWarn("; truncated"))
	}
	fmt.Printf("; still tracked: %s\n", res.Remaining)
}
