package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/pkg/profile"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "record":
		err = cmdRecord(os.Args[2:])
	case "track":
		err = cmdTrack(os.Args[2:])
	case "demo":
		err = cmdDemo(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `ppctrace: PowerPC instruction trace recorder and data-flow tracker

Usage:
  ppctrace disasm --elf <path> | --bin <path> --base <addr>   Disassemble an image
  ppctrace record --elf <path> --break <addr> --out <file>     Run to a breakpoint, record a trace
  ppctrace track  --in <file> (--reg <r> | --mem <addr>)       Track a value through a trace
  ppctrace demo   --out <dir>                                  Write a sample image and trace

Record flags:
  --entry <addr>        Start address (default: ELF entry or --base)
  --limit <n>           Max recorded instructions (default 100000)
  --timeout <dur>       Wall clock budget, at most 30s (default 10s)
  --stop <addr>         Stop recording at this address
  --reset-on-loop       Keep only the last pass through the start address

Track flags:
  --backward            Trace where the value came from
  --from <addr>         Range start   --to <addr>   Range end
                        With --backward, --from is the newest end of the range
                        (where the scan starts) and --to the oldest
  --limit <n>           Max reported instructions (default 1000)
  --verbose             Also report compares, cache ops and address-only uses
  --json                Print the result as JSON
  --dot <file>          Write the def-use graph as DOT
  --cfg <file>          Write the trace timeline as DOT

Common flags:
  -v                    Debug logging
  --cpuprofile <dir>    Write a CPU profile to dir
`)
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	verbose    *bool
	cpuprofile *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		verbose:    fs.Bool("v", false, "debug logging"),
		cpuprofile: fs.String("cpuprofile", "", "write a CPU profile to this directory"),
	}
}

// setup installs the log handler and starts profiling. The returned function
// stops the profiler.
func (c *commonFlags) setup() (stop func()) {
	log.SetHandler(cli.New(os.Stderr))
	log.SetLevel(log.InfoLevel)
	if *c.verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *c.cpuprofile == "" {
		return func() {}
	}
	p := profile.Start(profile.CPUProfile, profile.ProfilePath(*c.cpuprofile), profile.NoShutdownHook)
	return p.Stop
}
