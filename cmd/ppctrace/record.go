package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/apex/log"
	"github.com/fatih/color"

	"ppctrace/internal/breakpoint"
	"ppctrace/internal/cpu"
	"ppctrace/internal/output"
	"ppctrace/internal/session"
	"ppctrace/internal/trace"
)

const defaultStack = 0x817FFF00

var (
	colorAddr = color.New(color.Faint).SprintfFunc()
	colorWarn = color.New(color.FgYellow).SprintFunc()
	colorHit  = color.New(color.Bold, color.FgHiCyan).SprintFunc()
	colorLoc  = color.New(color.FgHiGreen).SprintFunc()
)

func cmdRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	elfPath := fs.String("elf", "", "path to a PowerPC ELF executable")
	binPath := fs.String("bin", "", "path to a raw big-endian code image")
	base := fs.String("base", "", "load address of --bin")
	entry := fs.String("entry", "", "start address (default: entry point)")
	sp := fs.String("sp", fmt.Sprintf("0x%08x", defaultStack), "initial stack pointer")
	brk := fs.String("break", "", "run to this address before recording (default: record from the start)")
	maxRun := fs.Int("max-run", 50_000_000, "instruction budget for reaching --break")
	limit := fs.Int("limit", 0, "max recorded instructions (0 = 100000)")
	timeout := fs.Duration("timeout", 0, "recording time limit (0 = 10s, max 30s)")
	stop := fs.String("stop", "", "stop recording at this address")
	resetOnLoop := fs.Bool("reset-on-loop", false, "keep only the last pass through the start address")
	outPath := fs.String("out", "", "output trace file (.jsonl)")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outPath == "" {
		return fmt.Errorf("--out is required")
	}
	defer common.setup()()

	img, err := loadImage(*elfPath, *binPath, *base)
	if err != nil {
		return err
	}
	c := cpu.New()
	img.load(c)
	pc := img.entry
	if *entry != "" {
		if pc, err = parseAddr(*entry); err != nil {
			return err
		}
	}
	stack, err := parseAddr(*sp)
	if err != nil {
		return err
	}
	c.SetPC(pc)
	c.GPR[1] = stack

	opts := trace.Options{
		Limit:       *limit,
		TimeLimit:   *timeout,
		ResetOnLoop: *resetOnLoop,
	}
	if *stop != "" {
		if opts.StopAddr, err = parseAddr(*stop); err != nil {
			return err
		}
		opts.HasStop = true
	}

	bps := &breakpoint.Set{}
	if *brk != "" {
		addr, err := parseAddr(*brk)
		if err != nil {
			return err
		}
		bps.Add(addr, false)
		if err := runToBreakpoint(c, bps, *maxRun); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "stopped at 0x%08x after %d instructions\n", c.PC(), c.Steps())
	}

	s := session.New(c, bps)
	rec, err := s.Record(opts)
	if err != nil {
		log.WithError(err).Warn("recording ended early")
	}
	for _, d := range s.Diags() {
		fmt.Fprintln(os.Stderr, colorWarn(d.String()))
	}
	if !rec.Started {
		return fmt.Errorf("recording did not start")
	}

	if werr := output.WriteTraceFile(*outPath, rec.Entries); werr != nil {
		return werr
	}
	fmt.Fprintf(os.Stderr, "recorded %s instructions from %s in %s -> %s\n",
		colorHit(len(rec.Entries)), colorAddr("0x%08x", rec.Start),
		rec.Elapsed.Round(time.Millisecond), *outPath)
	return err
}

// runToBreakpoint runs the CPU on its own goroutine, as an emulation thread
// would, and waits for it to stop.
func runToBreakpoint(c *cpu.CPU, bps *breakpoint.Set, maxRun int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	type result struct {
		reason cpu.StopReason
		err    error
	}
	done := make(chan result, 1)
	go func() {
		reason, err := c.Run(ctx, bps, maxRun)
		done <- result{reason, err}
	}()
	r := <-done

	switch {
	case r.err != nil:
		return fmt.Errorf("run: %w", r.err)
	case r.reason != cpu.StopBreakpoint:
		return fmt.Errorf("run: breakpoint not reached (%s at 0x%08x)", r.reason, c.PC())
	}
	return nil
}
