package isa

// ARM32GPRState is the general-purpose register dump of one side (reference
// or instrumented) for a 32-bit ARM process, matching the raw byte image
// carried over the data pipe (spec §6).
type ARM32GPRState struct {
	R    [13]uint32 // r0..r12
	SP   uint32
	LR   uint32
	CPSR uint32
}

// ARM32FPRState is the floating-point register dump: 32 single-precision
// lanes plus the FPSCR status/control word.
type ARM32FPRState struct {
	S     [32]uint32
	FPSCR uint32
}

// ARM32State pairs one side's GPR and FPR dumps for descriptor extraction.
type ARM32State struct {
	GPR ARM32GPRState
	FPR ARM32FPRState
}

func arm32GPR(idx int, name string, get func(*ARM32GPRState) uint32) Descriptor[ARM32State] {
	return Descriptor[ARM32State]{
		Name:     name,
		Kind:     KindGPR,
		GPRIndex: idx,
		Extract: func(dbg, instr *ARM32State) (uint64, uint64) {
			return uint64(get(&dbg.GPR)), uint64(get(&instr.GPR))
		},
	}
}

// ARM32Table compares r0-r12, sp, lr, cpsr in full (GPR class), the 32
// single-precision lanes as raw 32-bit words, and fpscr in full. Every
// logical register appears exactly once (spec §9 calls out the original's
// duplicated r9/r10 comparisons as a bug the table rewrite eliminates).
var ARM32Table = buildARM32Table()

func buildARM32Table() []Descriptor[ARM32State] {
	table := make([]Descriptor[ARM32State], 0, 13+3+32+1)
	for i := 0; i < 13; i++ {
		i := i
		table = append(table, arm32GPR(i, rname("r", i), func(g *ARM32GPRState) uint32 {
			return g.R[i]
		}))
	}
	table = append(table,
		arm32GPR(13, "sp", func(g *ARM32GPRState) uint32 { return g.SP }),
		arm32GPR(14, "lr", func(g *ARM32GPRState) uint32 { return g.LR }),
		arm32GPR(15, "cpsr", func(g *ARM32GPRState) uint32 { return g.CPSR }),
	)
	for i := 0; i < 32; i++ {
		i := i
		table = append(table, Descriptor[ARM32State]{
			Name:     rname("s", i),
			Kind:     KindVector,
			GPRIndex: -1,
			Extract: func(dbg, instr *ARM32State) (uint64, uint64) {
				return uint64(dbg.FPR.S[i]), uint64(instr.FPR.S[i])
			},
		})
	}
	// fpscr is dispatched through diffSPR (exact-anchor DiffMap only), not
	// raw diff() — unlike x86's fcw/fsw/... and AArch64's fpcr/fpsr, the
	// original's diffSPR("fpscr", ...) call gives it SPR treatment, so it
	// keeps Kind: KindControl rather than KindRaw.
	table = append(table, Descriptor[ARM32State]{
		Name:     "fpscr",
		Kind:     KindControl,
		GPRIndex: -1,
		Extract: func(dbg, instr *ARM32State) (uint64, uint64) {
			return uint64(dbg.FPR.FPSCR), uint64(instr.FPR.FPSCR)
		},
	})
	return table
}
