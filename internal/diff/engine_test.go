package diff_test

import (
	"os"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"dbivalidate/internal/diff"
	"dbivalidate/internal/isa"
	"dbivalidate/internal/memmap"
)

// observe builds the isa.Observation list for one instruction by running
// the real x86_64 table against a pair of states differing only in the
// fields the test sets, keeping these specs grounded on the production
// comparison path instead of a parallel test-only diff.
func observe(dbg, instr isa.X86_64State) []isa.Observation {
	return isa.Observe(isa.X86_64Table, &dbg, &instr)
}

var _ = Describe("Engine", func() {
	var engine *diff.Engine

	BeforeEach(func() {
		engine = diff.New(100, 200, nil, diff.Stat)
	})

	Describe("a clean run", func() {
		It("produces no errors and no DiffMaps for three identical states", func() {
			state := isa.X86_64State{}
			state.GPR.RAX = 0x1234

			engine.SignalNewState(0x1000, "mov", "mov rax, 0x1234", nil)
			engine.SignalNewState(0x1004, "add", "add rax, 1", observe(state, state))
			engine.SignalNewState(0x1008, "jmp", "jmp 0x1000", observe(state, state))
			engine.FlushLastLog()

			Expect(engine.Errors()).To(BeEmpty())
			Expect(engine.DiffMaps()).To(BeEmpty())
		})
	})

	Describe("a benign pointer shift", func() {
		It("records one DiffMap at the transfer and raises no errors at either instruction", func() {
			maps := memmap.Static{Regions: []memmap.Region{
				{Start: 0x7f0000000000, End: 0x7f0000002000},
				{Start: 0x550000009000, End: 0x55000000b000},
			}}
			engine = diff.New(100, 200, maps, diff.Stat)

			// The entry opened by this first call is cur; its transfer flag
			// and the observations passed with the NEXT call decide whether
			// the pointer divergence below is explained.
			engine.SignalNewState(0x1000, "mov", "mov rax, [rbx]", nil)
			engine.SignalExecTransfer(0x1000)

			var dbg, instr isa.X86_64State
			dbg.GPR.RAX = 0x7f0000001000
			instr.GPR.RAX = 0x55000000a000
			engine.SignalNewState(0x1004, "add", "add rax, 0x40", observe(dbg, instr))

			Expect(engine.DiffMaps()).To(HaveLen(1))
			Expect(engine.Errors()).To(BeEmpty())

			var dbg2, instr2 isa.X86_64State
			dbg2.GPR.RAX = 0x7f0000001040
			instr2.GPR.RAX = 0x55000000a040
			engine.SignalNewState(0x1008, "mov", "mov [rcx], rax", observe(dbg2, instr2))
			engine.FlushLastLog()

			Expect(engine.Errors()).To(BeEmpty())
			Expect(engine.DiffMaps()).To(HaveLen(1))
		})
	})

	Describe("propagation and escalation", func() {
		It("links the second divergence into the first cascade and upgrades the first error's severity", func() {
			// Two no-divergence priming calls before the interesting one:
			// the first opens cur with nothing yet to diff against, the
			// second diffs (trivially, nothing differs) and rotates it to
			// prev, so the RBX divergence below lands on an entry that has
			// a real prev and no pending transfer — an ordinary diff, not
			// a boundary learn.
			engine.SignalNewState(0x1000, "nop", "nop", nil)
			engine.SignalNewState(0x1004, "nop", "nop", nil)

			var dbg1, instr1 isa.X86_64State
			dbg1.GPR.RBX = 0x10
			instr1.GPR.RBX = 0x20
			engine.SignalNewState(0x1008, "mov", "mov rbx, 0x20", observe(dbg1, instr1))

			Expect(engine.Errors()).To(HaveLen(1))
			Expect(engine.Errors()[0].Severity).To(Equal(diff.NoImpact))
			firstCascade := engine.Errors()[0].CascadeID

			var dbg2, instr2 isa.X86_64State
			dbg2.GPR.RCX = 0x30
			instr2.GPR.RCX = 0x40
			engine.SignalNewState(0x100C, "add", "add rcx, 0x10", observe(dbg2, instr2))
			engine.FlushLastLog()

			Expect(engine.Errors()).To(HaveLen(2))
			Expect(engine.Errors()[1].CascadeID).To(Equal(firstCascade))
			Expect(engine.Errors()[0].Severity).To(Equal(diff.NonCritical))
		})
	})

	Describe("critical marking", func() {
		It("upgrades every error on the most recently diffed instruction to Critical", func() {
			engine.SignalNewState(0x1000, "nop", "nop", nil)
			engine.SignalNewState(0x1004, "nop", "nop", nil)

			var dbg1, instr1 isa.X86_64State
			dbg1.GPR.RBX = 0x10
			instr1.GPR.RBX = 0x20
			engine.SignalNewState(0x1008, "mov", "mov rbx, 0x20", observe(dbg1, instr1))

			var dbg2, instr2 isa.X86_64State
			dbg2.GPR.RCX = 0x30
			instr2.GPR.RCX = 0x40
			engine.SignalNewState(0x100C, "add", "add rcx, 0x10", observe(dbg2, instr2))

			engine.SignalCriticalState()

			Expect(engine.Errors()[1].Severity).To(Equal(diff.Critical))
		})
	})

	Describe("AC-flag noise", func() {
		It("never raises an error when RFLAGS differs only in the AC bit", func() {
			engine.SignalNewState(0x1000, "nop", "nop", nil)

			var dbg1, instr1 isa.X86_64State
			dbg1.GPR.RFlags = 0x206
			instr1.GPR.RFlags = 0x202
			engine.SignalNewState(0x1004, "add", "add rax, rbx", observe(dbg1, instr1))

			var dbg2, instr2 isa.X86_64State
			dbg2.GPR.RFlags = 0x206
			instr2.GPR.RFlags = 0x202
			engine.SignalNewState(0x1008, "sub", "sub rax, rbx", observe(dbg2, instr2))
			engine.FlushLastLog()

			Expect(engine.Errors()).To(BeEmpty())
		})
	})

	Describe("a control-word divergence", func() {
		It("raises an error even when a DiffMap already anchors the exact same values", func() {
			// Prime a DiffMap with a zero-width anchor at (500, 600) via an
			// ordinary GPR boundary learn.
			engine.SignalNewState(0x1000, "nop", "nop", nil)
			engine.SignalExecTransfer(0x1000)

			var dbg1, instr1 isa.X86_64State
			dbg1.GPR.RAX = 500
			instr1.GPR.RAX = 600
			engine.SignalNewState(0x1004, "mov", "mov rax, [rbx]", observe(dbg1, instr1))

			Expect(engine.DiffMaps()).To(HaveLen(1))
			Expect(engine.Errors()).To(BeEmpty())

			// fcw diverges by the exact same (500, 600) pair the DiffMap above
			// anchors. A KindControl field routed through diffSPR would be
			// silently explained by that anchor (spec.md: "compared raw" means
			// no DiffMap ever applies to it), so the only correct outcome is a
			// real error.
			var dbg2, instr2 isa.X86_64State
			dbg2.FPR.FCW = 500
			instr2.FPR.FCW = 600
			engine.SignalNewState(0x1008, "fldcw", "fldcw [rax]", observe(dbg2, instr2))
			engine.FlushLastLog()

			Expect(engine.Errors()).To(HaveLen(1))
			Expect(engine.Errors()[0].RegName).To(Equal("fcw"))
			Expect(engine.DiffMaps()).To(HaveLen(1))
		})
	})

	Describe("AArch64 nzcv divergence", func() {
		It("gets GPR-class address-window DiffMap explanation, not exact-anchor only", func() {
			// nzcv's mask (top nibble only) only ever yields one of 16
			// discrete values, so the window has to be wide enough to span
			// a full 0x10000000 step between two such values.
			maps := memmap.Static{Regions: []memmap.Region{{Start: 0x10000000, End: 0x50000000}}}
			engine = diff.New(100, 200, maps, diff.Stat)

			observeAArch64 := func(dbg, instr isa.AArch64State) []isa.Observation {
				return isa.Observe(isa.AArch64Table, &dbg, &instr)
			}

			engine.SignalNewState(0x2000, "nop", "nop", nil)
			engine.SignalExecTransfer(0x2000)

			var dbg1, instr1 isa.AArch64State
			dbg1.GPR.NZCV = 0x10000000
			instr1.GPR.NZCV = 0x20000000
			engine.SignalNewState(0x2004, "cmp", "cmp x0, x1", observeAArch64(dbg1, instr1))

			Expect(engine.DiffMaps()).To(HaveLen(1))
			Expect(engine.Errors()).To(BeEmpty())

			// A different masked value pair with the same relative offset
			// from the learned anchor: a GPR-class DiffMap (address-window)
			// explains this; an SPR-class DiffMap (exact anchor only) would
			// not, and would raise an error instead.
			var dbg2, instr2 isa.AArch64State
			dbg2.GPR.NZCV = 0x20000000
			instr2.GPR.NZCV = 0x30000000
			engine.SignalNewState(0x2008, "b.eq", "b.eq 0x2010", observeAArch64(dbg2, instr2))
			engine.FlushLastLog()

			Expect(engine.Errors()).To(BeEmpty())
			Expect(engine.DiffMaps()).To(HaveLen(1))
		})
	})

	Describe("coverage dump", func() {
		It("writes mnemonic: count lines sorted by count descending", func() {
			state := isa.X86_64State{}
			counts := map[string]int{"mov": 3, "add": 5, "jmp": 2}
			for mnemonic, n := range counts {
				for i := 0; i < n; i++ {
					engine.SignalNewState(0x1000, mnemonic, mnemonic, observe(state, state))
				}
			}
			engine.FlushLastLog()

			path := GinkgoT().TempDir() + "/coverage.txt"
			Expect(engine.LogCoverage(path)).To(Succeed())

			got, err := readFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("add: 5\nmov: 3\njmp: 2\n"))
		})
	})

	Describe("flushLastLog", func() {
		It("is idempotent on empty state", func() {
			Expect(func() {
				engine.FlushLastLog()
				engine.FlushLastLog()
			}).NotTo(Panic())
		})
	})

	Describe("cascade ordering", func() {
		It("orders cascades by severity descending after building them", func() {
			engine.SignalNewState(0x1000, "nop", "nop", nil)
			engine.SignalNewState(0x1004, "nop", "nop", nil)

			var dbg1, instr1 isa.X86_64State
			dbg1.GPR.RBX = 0x1
			instr1.GPR.RBX = 0x2
			engine.SignalNewState(0x1008, "mov", "mov", observe(dbg1, instr1))

			// A clean instruction between the two divergences keeps the
			// second one out of the first cascade.
			var clean isa.X86_64State
			engine.SignalNewState(0x100C, "nop", "nop", observe(clean, clean))

			// The second, later cascade is made Critical, so sorting has to
			// move it ahead of the first (NoImpact) one.
			var dbg2, instr2 isa.X86_64State
			dbg2.GPR.RCX = 0x3
			instr2.GPR.RCX = 0x4
			engine.SignalNewState(0x1010, "add", "add", observe(dbg2, instr2))
			engine.SignalCriticalState()
			engine.FlushLastLog()

			cascades := engine.BuildCascades()
			Expect(cascades).To(HaveLen(2))
			Expect(cmp.Diff([]diff.Severity{cascades[0].Severity, cascades[1].Severity}, []diff.Severity{diff.Critical, diff.NoImpact})).To(BeEmpty())
		})
	})
})

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}
