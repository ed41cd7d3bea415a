package wire

import (
	"encoding/binary"
	"io"
)

// InstructionEvent carries one executed instruction across the pipe,
// matching readInstructionEvent/writeInstructionEvent in pipes.cpp. GPR
// and FPR are opaque fixed-size payloads: their layout is ISA-specific
// (internal/isa decodes them), so this package only frames the bytes.
type InstructionEvent struct {
	Address     uint64
	Mnemonic    string
	Disassembly string
	GPR         []byte
	FPR         []byte
}

// WriteInstructionEvent writes the INSTRUCTION event tag followed by the
// address, the two C-strings, and the two fixed-size state payloads, and
// flushes if w supports it — mirroring the original's trailing fflush.
func WriteInstructionEvent(w io.Writer, ev InstructionEvent) error {
	if err := WriteEvent(w, EventInstruction); err != nil {
		return err
	}
	if err := writeU64(w, ev.Address); err != nil {
		return err
	}
	if err := WriteCString(w, ev.Mnemonic); err != nil {
		return err
	}
	if err := WriteCString(w, ev.Disassembly); err != nil {
		return err
	}
	if _, err := w.Write(ev.GPR); err != nil {
		return err
	}
	if _, err := w.Write(ev.FPR); err != nil {
		return err
	}
	return flush(w)
}

// ReadInstructionEvent reads the fields written by WriteInstructionEvent.
// The caller has already consumed the EVENT tag via ReadEvent and supplies
// gprSize/fprSize for the target ISA (spec §4.1's per-ISA state sizes).
func ReadInstructionEvent(r io.Reader, mnemonicLen, disassemblyLen, gprSize, fprSize int) (InstructionEvent, error) {
	var ev InstructionEvent

	addr, err := readU64(r)
	if err != nil {
		return ev, err
	}
	ev.Address = addr

	if ev.Mnemonic, err = ReadCString(r, mnemonicLen); err != nil {
		return ev, err
	}
	if ev.Disassembly, err = ReadCString(r, disassemblyLen); err != nil {
		return ev, err
	}

	ev.GPR = make([]byte, gprSize)
	if _, err := io.ReadFull(r, ev.GPR); err != nil {
		return ev, err
	}
	ev.FPR = make([]byte, fprSize)
	if _, err := io.ReadFull(r, ev.FPR); err != nil {
		return ev, err
	}

	return ev, nil
}

// WriteTypedInstructionEvent is WriteInstructionEvent's typed counterpart:
// it writes a paired GPR/FPR state directly via encoding/binary instead of
// a pre-serialized byte slice, for any state struct composed only of
// fixed-size numeric fields and arrays — every internal/isa state type
// qualifies.
func WriteTypedInstructionEvent[G, F any](w io.Writer, address uint64, mnemonic, disassembly string, gpr G, fpr F) error {
	if err := WriteEvent(w, EventInstruction); err != nil {
		return err
	}
	if err := writeU64(w, address); err != nil {
		return err
	}
	if err := WriteCString(w, mnemonic); err != nil {
		return err
	}
	if err := WriteCString(w, disassembly); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, gpr); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, fpr); err != nil {
		return err
	}
	return flush(w)
}

// ReadTypedInstructionEvent reads the fields written by
// WriteTypedInstructionEvent directly into typed G/F state structs,
// skipping the opaque-bytes intermediate ReadInstructionEvent uses.
func ReadTypedInstructionEvent[G, F any](r io.Reader, mnemonicLen, disassemblyLen int) (address uint64, mnemonic, disassembly string, gpr G, fpr F, err error) {
	if address, err = readU64(r); err != nil {
		return
	}
	if mnemonic, err = ReadCString(r, mnemonicLen); err != nil {
		return
	}
	if disassembly, err = ReadCString(r, disassemblyLen); err != nil {
		return
	}
	if err = binary.Read(r, byteOrder, &gpr); err != nil {
		return
	}
	err = binary.Read(r, byteOrder, &fpr)
	return
}

// WriteExecTransferEvent writes the EXEC_TRANSFER event tag followed by
// the transfer address, matching writeExecTransferEvent.
func WriteExecTransferEvent(w io.Writer, address uint64) error {
	if err := WriteEvent(w, EventExecTransfer); err != nil {
		return err
	}
	if err := writeU64(w, address); err != nil {
		return err
	}
	return flush(w)
}

// ReadExecTransferEvent reads the address written by
// WriteExecTransferEvent. The caller has already consumed the EVENT tag.
func ReadExecTransferEvent(r io.Reader) (uint64, error) {
	return readU64(r)
}

// MismatchMemAccessEvent carries a detected memory-access mismatch. It is
// framed (spec's Open Question: the protocol defines it) but never
// produced by this validator's diff core, which only compares register
// state (spec §1's Non-goals exclude memory-content diffing) — kept so a
// future memory-access comparator has a ready wire format.
type MismatchMemAccessEvent struct {
	Address                            uint64
	DoRead, MayRead, DoWrite, MayWrite bool
	Accesses                           []byte
}

// WriteMismatchMemAccessEvent writes the MISSMATCHMEMACCESS event tag,
// the address, the four access-flag booleans as single bytes, and the
// opaque accesses payload, matching writeMismatchMemAccessEvent.
func WriteMismatchMemAccessEvent(w io.Writer, ev MismatchMemAccessEvent) error {
	if err := WriteEvent(w, EventMismatchMemAccess); err != nil {
		return err
	}
	if err := writeU64(w, ev.Address); err != nil {
		return err
	}
	for _, flag := range []bool{ev.DoRead, ev.MayRead, ev.DoWrite, ev.MayWrite} {
		if err := writeBool(w, flag); err != nil {
			return err
		}
	}
	if _, err := w.Write(ev.Accesses); err != nil {
		return err
	}
	return flush(w)
}

// ReadMismatchMemAccessEvent reads the fields written by
// WriteMismatchMemAccessEvent. accessesSize is the fixed payload size for
// the number of accesses the caller expects.
func ReadMismatchMemAccessEvent(r io.Reader, accessesSize int) (MismatchMemAccessEvent, error) {
	var ev MismatchMemAccessEvent

	addr, err := readU64(r)
	if err != nil {
		return ev, err
	}
	ev.Address = addr

	flags := make([]*bool, 4)
	flags[0], flags[1], flags[2], flags[3] = &ev.DoRead, &ev.MayRead, &ev.DoWrite, &ev.MayWrite
	for _, f := range flags {
		v, err := readBool(r)
		if err != nil {
			return ev, err
		}
		*f = v
	}

	ev.Accesses = make([]byte, accessesSize)
	if _, err := io.ReadFull(r, ev.Accesses); err != nil {
		return ev, err
	}
	return ev, nil
}

func writeU64(w io.Writer, v uint64) error {
	var b [8]byte
	byteOrder.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b[:]), nil
}

func writeBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

type flusher interface{ Flush() error }

// flush calls Flush if w implements it (e.g. a bufio.Writer wrapping the
// pipe), matching the original's explicit fflush(pipe) after every write.
func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
