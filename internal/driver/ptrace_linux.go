//go:build linux

package driver

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"

	"dbivalidate/internal/isa"
)

// Ptrace is a real Debugger[isa.X86_64State]-shaped backend driving a
// traced child over PTRACE_CONT/PTRACE_GETREGS, grounded on the
// ptrace(2) calling convention used throughout
// other_examples/...gvisor...subprocess.go's thread.resume/wait (raw
// PTRACE_CONT/PTRACE_SETOPTIONS syscalls and unix.Wait4 status decoding).
// It only supports x86_64, the one ISA whose GETREGS layout
// (unix.PtraceRegs) ships in golang.org/x/sys/unix; ARM32/AArch64/x86
// targets are expected to run under a cross-debugger external to this
// module (spec §1's Non-goals: ptrace mechanics are interface-only).
type Ptrace struct {
	pid         int
	breakpoint  uintptr
	savedOpcode [1]byte
	hasBreak    bool
}

// NewPtrace attaches to an already-stopped tracee pid (the caller is
// expected to have done the fork/PTRACE_TRACEME/exec dance — that
// bootstrap lives outside this module per spec §1).
func NewPtrace(pid int) *Ptrace {
	return &Ptrace{pid: pid}
}

func (p *Ptrace) PID() int { return p.pid }

// int3Opcode is the x86 breakpoint instruction (0xCC).
const int3Opcode = 0xCC

func (p *Ptrace) SetBreakpoint(address uint64) error {
	if p.hasBreak {
		return fmt.Errorf("driver: breakpoint already set")
	}
	if _, err := unix.PtracePeekText(p.pid, uintptr(address), p.savedOpcode[:]); err != nil {
		return fmt.Errorf("driver: PtracePeekText: %w", err)
	}
	if _, err := unix.PtracePokeText(p.pid, uintptr(address), []byte{int3Opcode}); err != nil {
		return fmt.Errorf("driver: PtracePokeText: %w", err)
	}
	p.breakpoint = uintptr(address)
	p.hasBreak = true
	return nil
}

func (p *Ptrace) UnsetBreakpoint() error {
	if !p.hasBreak {
		return nil
	}
	if _, err := unix.PtracePokeText(p.pid, p.breakpoint, p.savedOpcode[:]); err != nil {
		return fmt.Errorf("driver: restoring breakpoint opcode: %w", err)
	}
	p.hasBreak = false
	return nil
}

func (p *Ptrace) ContinueExecution() error {
	return unix.PtraceCont(p.pid, 0)
}

// GetState reads GPRs via PTRACE_GETREGS. golang.org/x/sys/unix has no
// PTRACE_GETFPREGS wrapper, so the FPR half is left zeroed: every FPR
// field of the instrumented side is compared against zero on the
// debugged side, not against the tracee's real FPU state.
func (p *Ptrace) GetState() (isa.X86_64State, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(p.pid, &regs); err != nil {
		return isa.X86_64State{}, fmt.Errorf("driver: PtraceGetRegs: %w", err)
	}
	var s isa.X86_64State
	s.GPR = isa.X86_64GPRState{
		RAX: regs.Rax, RBX: regs.Rbx, RCX: regs.Rcx, RDX: regs.Rdx,
		RSI: regs.Rsi, RDI: regs.Rdi,
		R8: regs.R8, R9: regs.R9, R10: regs.R10, R11: regs.R11,
		R12: regs.R12, R13: regs.R13, R14: regs.R14, R15: regs.R15,
		RBP: regs.Rbp, RSP: regs.Rsp,
		RFlags: regs.Eflags,
	}
	return s, nil
}

func (p *Ptrace) PC() (uint64, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(p.pid, &regs); err != nil {
		return 0, fmt.Errorf("driver: PtraceGetRegs: %w", err)
	}
	return regs.Rip, nil
}

func (p *Ptrace) WaitForStatus() (Status, int, error) {
	var status unix.WaitStatus
	if _, err := unix.Wait4(p.pid, &status, 0, nil); err != nil {
		return StatusStopped, 0, fmt.Errorf("driver: wait4: %w", err)
	}
	switch {
	case status.Exited():
		return StatusExited, status.ExitStatus(), nil
	case status.Signaled():
		return StatusCrashed, int(status.Signal()), nil
	case status.Stopped() && status.StopSignal() != syscall.SIGTRAP:
		return StatusCrashed, int(status.StopSignal()), nil
	default:
		return StatusStopped, 0, nil
	}
}
