// Command validator is the master side of the Differential State
// Validator: it drives a debugged reference process and an instrumented
// process to execute the same program lockstep, diffing their register
// state after every instruction (spec §1, §2). Its event loop mirrors
// start_master in original_source/tools/validator/master.cpp; everything
// about spawning the two processes and wiring their pipes is external to
// this module (spec §1's Non-goals) and is expected to have already
// happened by the time ctrlFD/dataFD are handed to this process.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rs/xid"
	"github.com/xyproto/env/v2"

	"dbivalidate/internal/diff"
	"dbivalidate/internal/driver"
	"dbivalidate/internal/isa"
	"dbivalidate/internal/master"
	"dbivalidate/internal/memmap"
	"dbivalidate/internal/wire"
)

var logger = log.New(os.Stderr, "validator: ", log.LstdFlags)

func main() {
	var (
		ctrlFD      = flag.Int("ctrl-fd", 3, "file descriptor of the control pipe (master -> instrumented)")
		dataFD      = flag.Int("data-fd", 4, "file descriptor of the data pipe (instrumented -> master)")
		debuggedPID = flag.Int("debugged-pid", 0, "pid of the already-stopped reference process")
		isaName     = flag.String("isa", "x86_64", "target architecture: arm32, aarch64, x86, x86_64")
		verbose     = flag.Bool("v", false, "enable verbose diagnostic logging, independent of VALIDATOR_VERBOSITY")
	)
	flag.Parse()

	if *debuggedPID == 0 {
		logger.Fatal("-debugged-pid is required")
	}

	runID := xid.New()
	if *verbose {
		logger.Printf("run %s starting: isa=%s debugged-pid=%d", runID, *isaName, *debuggedPID)
	}

	verbosity, ok := diff.ParseVerbosity(env.Str("VALIDATOR_VERBOSITY", "Stat"))
	if !ok && *verbose {
		logger.Printf("did not understand VALIDATOR_VERBOSITY, defaulting to Stat")
	}
	coveragePath := env.Str("VALIDATOR_COVERAGE", "")

	ctrl := os.NewFile(uintptr(*ctrlFD), "ctrl")
	data := os.NewFile(uintptr(*dataFD), "data")
	if ctrl == nil || data == nil {
		logger.Print("could not open communication pipes with instrumented process, exiting!")
		os.Exit(int(master.ExitPipeCreationFail))
	}

	debugged := driver.NewPtrace(*debuggedPID)

	var provider memmap.Provider // nil: falls back to zero-width DiffMap windows until wired to /proc/<pid>/maps

	engine := diff.New(*debuggedPID, -1, provider, verbosity)

	exitCode := runISA(*isaName, debugged, data, ctrl, engine)

	fmt.Fprintf(os.Stderr, "run %s: %s\n", runID, exitCode)

	if err := master.Finish(engine, coveragePath); err != nil {
		logger.Printf("finishing run: %v", err)
	}

	os.Exit(int(exitCode))
}

// runISA dispatches to the generic master.Run instantiated for the
// requested architecture's paired state type, since Go generics can't be
// selected at runtime without an explicit switch (spec §4.1: the
// comparison tables are per-ISA, but the driving loop is not).
func runISA(name string, debugged *driver.Ptrace, data *os.File, ctrl *os.File, engine *diff.Engine) master.ExitCode {
	switch name {
	case "x86_64":
		readState := func(r io.Reader, mnemonicLen, disassemblyLen int) (uint64, string, string, isa.X86_64State, error) {
			address, mnemonic, disassembly, gpr, fpr, err := wire.ReadTypedInstructionEvent[isa.X86_64GPRState, isa.X86_64FPRState](r, mnemonicLen, disassemblyLen)
			return address, mnemonic, disassembly, isa.X86_64State{GPR: gpr, FPR: fpr}, err
		}
		return master.Run[isa.X86_64State](debugged, data, ctrl, isa.X86_64Table, readState, engine)
	default:
		logger.Fatalf("unsupported -isa %q: only x86_64 has a ptrace-backed driver in this build; arm32/aarch64/x86 need an external driver.Debugger implementation", name)
		return master.ExitDataPipeLost
	}
}
