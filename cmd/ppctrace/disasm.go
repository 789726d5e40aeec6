package main

import (
	"flag"
	"fmt"
	"os"

	"ppctrace/internal/disasm"
	"ppctrace/internal/output"
)

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	elfPath := fs.String("elf", "", "path to a PowerPC ELF executable")
	binPath := fs.String("bin", "", "path to a raw big-endian code image")
	base := fs.String("base", "", "load address of --bin")
	start := fs.String("start", "", "first address (default: entry point)")
	count := fs.Int("count", 0, "max instructions (0 = to end of segment)")
	outPath := fs.String("out", "", "write the listing to this file instead of stdout")
	common := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	defer common.setup()()

	img, err := loadImage(*elfPath, *binPath, *base)
	if err != nil {
		return err
	}
	from := img.entry
	if *start != "" {
		if from, err = parseAddr(*start); err != nil {
			return err
		}
	}
	r, ok := img.regionAt(from)
	if !ok {
		return fmt.Errorf("0x%08x is not in an executable segment", from)
	}

	data := r.data[from-r.addr:]
	insts := disasm.Disassemble(data, disasm.Options{
		BaseAddr: from,
		MaxSteps: *count,
		Symbols:  img.lookup(),
	})
	fmt.Fprintf(os.Stderr, "disassembled %d instructions from 0x%08x\n", len(insts), from)

	anns := []disasm.Annotator{disasm.BranchAnnotator(img.lookup()), disasm.MemAnnotatorStatic()}
	if *outPath != "" {
		return output.WriteASM(*outPath, insts, img.lookup(), anns...)
	}
	_, err = fmt.Fprint(os.Stdout, disasm.Format(insts, img.lookup(), anns...))
	return err
}
