// Package master implements the validator's driving event loop: the Go
// counterpart of start_master in original_source/tools/validator/
// master.cpp. It owns the exit-code contract the original's literal
// VALIDATOR_ERR_* constants expressed, and drives process control purely
// through internal/driver.Debugger and the wire protocol — it never
// touches ptrace or the FIFOs directly (spec §1's Non-goals).
package master

import (
	"fmt"
	"io"

	"dbivalidate/internal/diff"
	"dbivalidate/internal/driver"
	"dbivalidate/internal/isa"
	"dbivalidate/internal/wire"
)

// ExitCode mirrors the original's VALIDATOR_ERR_* enum (validator.h),
// named instead of left as bare integers.
type ExitCode int

const (
	ExitOK ExitCode = iota
	ExitPipeCreationFail
	ExitDataPipeLost
	ExitCtrlPipeLost
	ExitDebuggedExited
	ExitDebuggedCrashed
)

func (c ExitCode) String() string {
	switch c {
	case ExitOK:
		return "ok"
	case ExitPipeCreationFail:
		return "could not create communication pipes"
	case ExitDataPipeLost:
		return "data pipe lost"
	case ExitCtrlPipeLost:
		return "control pipe lost"
	case ExitDebuggedExited:
		return "debugged process exited unexpectedly"
	case ExitDebuggedCrashed:
		return "debugged process crashed"
	default:
		return "unknown"
	}
}

const bufferLen = 128 // mirrors master.cpp's fixed mnemonic/disassembly BUFFER_SIZE

// StateReader decodes one typed instruction event off the data pipe,
// wrapping wire.ReadTypedInstructionEvent's generic GPR/FPR pair into a
// single paired state S the caller's isa table can consume.
type StateReader[S any] func(r io.Reader, mnemonicLen, disassemblyLen int) (address uint64, mnemonic, disassembly string, instr S, err error)

// Run drives one validation session to completion: it alternates reading
// instrumented-side events off data, stepping the debugged process to
// match, and feeding both paired states into engine via isa.Observe(table,
// ...). It does not flush the engine's logs, cascades, or coverage; Finish
// does that. It returns the same exit code taxonomy master.cpp's
// exit(error) used.
func Run[S any](debugged driver.Debugger[S], data io.Reader, ctrl io.Writer, table []isa.Descriptor[S], readState StateReader[S], engine *diff.Engine) ExitCode {
	for {
		event, err := wire.ReadEvent(data)
		if err != nil {
			debugged.ContinueExecution()
			return ExitDataPipeLost
		}

		switch event {
		case wire.EventExit:
			debugged.ContinueExecution()
			return ExitOK

		case wire.EventExecTransfer:
			addr, err := wire.ReadExecTransferEvent(data)
			if err != nil {
				debugged.ContinueExecution()
				return ExitDataPipeLost
			}
			engine.SignalExecTransfer(addr)

		case wire.EventInstruction:
			if err := wire.WriteCommand(ctrl, wire.CommandContinue); err != nil {
				debugged.ContinueExecution()
				return ExitCtrlPipeLost
			}

			address, mnemonic, disassembly, instr, err := readState(data, bufferLen, bufferLen)
			if err != nil {
				debugged.ContinueExecution()
				return ExitDataPipeLost
			}

			if err := debugged.SetBreakpoint(address); err != nil {
				return ExitCtrlPipeLost
			}

			var dbgState S
			exited := false
			for {
				if err := debugged.ContinueExecution(); err != nil {
					return ExitCtrlPipeLost
				}
				status, _, err := debugged.WaitForStatus()
				if err != nil {
					return ExitCtrlPipeLost
				}
				if status == driver.StatusExited {
					engine.SignalCriticalState()
					wire.WriteCommand(ctrl, wire.CommandStop)
					exited = true
					break
				}
				if status == driver.StatusCrashed {
					engine.SignalCriticalState()
					wire.WriteCommand(ctrl, wire.CommandStop)
					return ExitDebuggedCrashed
				}
				currentPC, err := debugged.PC()
				if err != nil {
					return ExitCtrlPipeLost
				}
				if dbgState, err = debugged.GetState(); err != nil {
					return ExitCtrlPipeLost
				}
				if currentPC == address {
					break
				}
			}
			if exited {
				return ExitDebuggedExited
			}

			observations := isa.Observe(table, &dbgState, &instr)
			engine.SignalNewState(address, mnemonic, disassembly, observations)
			if err := debugged.UnsetBreakpoint(); err != nil {
				return ExitCtrlPipeLost
			}

		default:
			return ExitDataPipeLost
		}
	}
}

// Finish mirrors master.cpp's trailing flushLastLog/logCascades/
// logCoverage sequence. coveragePath is the VALIDATOR_COVERAGE value, or
// "" to skip the coverage dump.
func Finish(engine *diff.Engine, coveragePath string) error {
	engine.FlushLastLog()
	engine.LogCascades()
	if coveragePath == "" {
		return nil
	}
	if err := engine.LogCoverage(coveragePath); err != nil {
		return fmt.Errorf("master: writing coverage file: %w", err)
	}
	return nil
}
