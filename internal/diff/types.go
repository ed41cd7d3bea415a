// Package diff implements the Differential State Validator's core: the
// pair-diff primitives, the DiffMap address-relocation explainer, and the
// cascade/report engine that turns a stream of per-instruction snapshots
// into deduplicated, severity-ranked cascades (spec §3, §4.2, §4.3).
package diff

import "fmt"

// Severity classifies a DiffError by its observed downstream effect.
// Severity is monotonically upgradable and must never be downgraded
// (spec §3's DiffError invariant).
type Severity int

const (
	NoImpact Severity = iota
	NonCritical
	Critical
)

func (s Severity) String() string {
	switch s {
	case NoImpact:
		return "no impact"
	case NonCritical:
		return "non critical"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Verbosity is the cumulative reporting ladder of spec §4.3: Stat ⊂
// Summary ⊂ Detail ⊂ Full.
type Verbosity int

const (
	Stat Verbosity = iota
	Summary
	Detail
	Full
)

// ParseVerbosity maps the VALIDATOR_VERBOSITY environment contract (spec
// §6) onto a Verbosity, defaulting to Stat for anything unrecognized.
func ParseVerbosity(s string) (Verbosity, bool) {
	switch s {
	case "Stat":
		return Stat, true
	case "Summary":
		return Summary, true
	case "Detail":
		return Detail, true
	case "Full":
		return Full, true
	default:
		return Stat, false
	}
}

// DiffError is one register divergence observed at one execID (spec §3).
// CauseExecID never changes after insertion; CascadeID equals CauseExecID
// iff this error begins a new cascade; Severity only ever upgrades.
type DiffError struct {
	RegName     string
	Real        uint64
	QBDI        uint64
	Severity    Severity
	CascadeID   uint64
	CauseExecID uint64
}

// DiffMap is a learned explanation for address divergence: within
// [anchor-LowerOffset, anchor+UpperOffset] the constant delta Real-QBDI is
// presumed to hold. SPR-style exact diffs use LowerOffset = UpperOffset =
// 0, so only the exact anchor pair is explained (spec §3).
type DiffMap struct {
	Real, QBDI               uint64
	LowerOffset, UpperOffset uint64
	CauseExecID              uint64
}

// explainsGPR reports whether this map explains a GPR-class divergence:
// the same relative offset from both anchors, with Real inside the
// learned window.
func (d DiffMap) explainsGPR(real, qbdi uint64) bool {
	if real-d.Real != qbdi-d.QBDI {
		return false
	}
	if d.Real >= real && d.Real-real <= d.LowerOffset {
		return true
	}
	if real >= d.Real && real-d.Real <= d.UpperOffset {
		return true
	}
	return false
}

// explainsSPR reports whether this map is a zero-width exact anchor that
// matches (real, qbdi) precisely.
func (d DiffMap) explainsSPR(real, qbdi uint64) bool {
	return d.LowerOffset == 0 && d.UpperOffset == 0 && d.Real == real && d.QBDI == qbdi
}

// Cascade is the post-hoc aggregation of errors sharing a CascadeID (spec
// §3). Severity is the max of its members; SimilarCascade absorbs
// duplicate cascades found at report time.
type Cascade struct {
	CascadeID      uint64
	CauseAddress   uint64
	Severity       Severity
	ExecIDs        []uint64
	SimilarCascade []uint64
}

// LogEntry is one executed instruction (spec §3). It is opened as cur by
// one SignalNewState call carrying only its address/mnemonic, receives
// its ErrorIDs from the *next* call's observations, then rotates to prev
// and is eventually dropped — the Go analogue of the original's owning
// two-slot buffer with manual delete (spec §9's design note).
type LogEntry struct {
	ExecID      uint64
	Address     uint64
	Disassembly string
	Transfer    uint64 // 0 means no transfer occurred during this instruction
	ErrorIDs    []int
}
