// Package isa holds the per-architecture register descriptor tables (the
// "what do we compare, and how do we mask it" half of the validator). It
// knows nothing about cascades or severities: it only turns two raw,
// architecture-specific register dumps into a flat list of named,
// already-masked value pairs for the diff core (package diff) to judge.
package isa

// ISA identifies one of the four supported architecture families.
type ISA int

const (
	ARM32 ISA = iota
	AArch64
	X86
	X86_64
)

func (a ISA) String() string {
	switch a {
	case ARM32:
		return "ARM32"
	case AArch64:
		return "AArch64"
	case X86:
		return "X86"
	case X86_64:
		return "X86_64"
	default:
		return "unknown"
	}
}

// Kind classifies a comparable field and picks which of the diff core's
// three primitives judges it (spec §4.2): GPR fields get DiffMap
// address-window learning; SPR/flags/vector fields get exact-anchor
// DiffMap explanation only; Raw fields ("compared raw", spec.md:52 — the
// x87/SSE control words and AArch64's fpcr/fpsr) never consult a DiffMap
// at all and fall straight to cascade inference.
type Kind int

const (
	KindGPR Kind = iota
	KindFlags
	KindControl
	KindVector
	KindRaw
)

// Descriptor is one row of a register descriptor table: a named,
// already-extracted comparison field. Extract receives the paired raw
// dumps and returns the two values ready for comparison, with any masking
// or sub-field slicing already applied. Keeping extraction here (rather
// than in the diff core) is what lets the diff core stay a single
// table-driven dispatcher instead of one procedure per ISA.
type Descriptor[S any] struct {
	Name     string
	Kind     Kind
	GPRIndex int // dispatch index for diffGPR-class registers; -1 otherwise
	Extract  func(dbg, instr *S) (real, qbdi uint64)
}

// Observation is one extracted, ISA-agnostic comparison field: the output
// of running a Descriptor table against a paired state. The diff core
// (package diff) consumes a slice of these and never sees ISA-specific
// struct layouts.
type Observation struct {
	Name     string
	Kind     Kind
	GPRIndex int
	Real     uint64
	QBDI     uint64
}

// Observe runs every descriptor in table against the paired dumps,
// producing the flat observation list the diff core iterates over. Order
// matches table order, so duplicate-register bugs (spec §9: x9, x19/x29
// compared twice in the original) cannot reappear unless a table itself
// lists a name twice.
func Observe[S any](table []Descriptor[S], dbg, instr *S) []Observation {
	obs := make([]Observation, 0, len(table))
	for _, d := range table {
		real, qbdi := d.Extract(dbg, instr)
		obs = append(obs, Observation{
			Name:     d.Name,
			Kind:     d.Kind,
			GPRIndex: d.GPRIndex,
			Real:     real,
			QBDI:     qbdi,
		})
	}
	return obs
}
