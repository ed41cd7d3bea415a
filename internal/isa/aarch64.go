package isa

// AArch64GPRState holds x0-x29, lr, sp and nzcv.
type AArch64GPRState struct {
	X    [30]uint64 // x0..x29
	LR   uint64
	SP   uint64
	NZCV uint64
}

// AArch64FPRState holds the 32 128-bit vector registers (as low/high 64-bit
// halves) plus fpcr/fpsr.
type AArch64FPRState struct {
	V    [32][2]uint64 // V[i][0] = bits [0:64), V[i][1] = bits [64:128)
	FPCR uint64
	FPSR uint64
}

// AArch64State pairs one side's GPR and FPR dumps.
type AArch64State struct {
	GPR AArch64GPRState
	FPR AArch64FPRState
}

const nzcvMask = 0xF0000000

// AArch64Table implements the masking rules of spec §4.1: x0-x29 (GPR idx
// 0-29), lr (idx 30), sp (idx 31) compared in full; NZCV compared only in
// the top nibble, through the GPR-class primitive (idx 32) per the
// original's diffGPR(32, nzcv & mask, ...); each v-register split into
// low/high 64-bit halves; fpcr masked on the instrumented side only; fpsr's
// mask is chosen based on whether the instrumented NZCV aliases into the
// instrumented FPSR. fpcr and fpsr are compared raw (KindRaw): the original
// calls diff() directly for both, never diffSPR.
var AArch64Table = buildAArch64Table()

func buildAArch64Table() []Descriptor[AArch64State] {
	table := make([]Descriptor[AArch64State], 0, 30+2+1+64+2)
	for i := 0; i < 30; i++ {
		i := i
		table = append(table, Descriptor[AArch64State]{
			Name:     rname("x", i),
			Kind:     KindGPR,
			GPRIndex: i,
			Extract: func(dbg, instr *AArch64State) (uint64, uint64) {
				return dbg.GPR.X[i], instr.GPR.X[i]
			},
		})
	}
	table = append(table,
		Descriptor[AArch64State]{
			Name: "lr", Kind: KindGPR, GPRIndex: 30,
			Extract: func(dbg, instr *AArch64State) (uint64, uint64) {
				return dbg.GPR.LR, instr.GPR.LR
			},
		},
		Descriptor[AArch64State]{
			Name: "sp", Kind: KindGPR, GPRIndex: 31,
			Extract: func(dbg, instr *AArch64State) (uint64, uint64) {
				return dbg.GPR.SP, instr.GPR.SP
			},
		},
		Descriptor[AArch64State]{
			Name: "nzcv", Kind: KindGPR, GPRIndex: 32,
			Extract: func(dbg, instr *AArch64State) (uint64, uint64) {
				return dbg.GPR.NZCV & nzcvMask, instr.GPR.NZCV & nzcvMask
			},
		},
	)
	for i := 0; i < 32; i++ {
		i := i
		table = append(table,
			Descriptor[AArch64State]{
				Name: slice64("v", i, 0, 64), Kind: KindVector, GPRIndex: -1,
				Extract: func(dbg, instr *AArch64State) (uint64, uint64) {
					return dbg.FPR.V[i][0], instr.FPR.V[i][0]
				},
			},
			Descriptor[AArch64State]{
				Name: slice64("v", i, 64, 128), Kind: KindVector, GPRIndex: -1,
				Extract: func(dbg, instr *AArch64State) (uint64, uint64) {
					return dbg.FPR.V[i][1], instr.FPR.V[i][1]
				},
			},
		)
	}
	table = append(table,
		Descriptor[AArch64State]{
			Name: "fpcr", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *AArch64State) (uint64, uint64) {
				return dbg.FPR.FPCR, instr.FPR.FPCR & 0x07F79F00
			},
		},
		Descriptor[AArch64State]{
			Name: "fpsr", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *AArch64State) (uint64, uint64) {
				// The aliasing between NZCV and the FPSR top nibble means the
				// mask we can safely apply depends on whether that aliasing is
				// currently observed on the instrumented side.
				if (dbg.FPR.FPSR&nzcvMask) == 0 && (instr.FPR.FPSR&nzcvMask) == (instr.GPR.NZCV&nzcvMask) {
					return dbg.FPR.FPSR, instr.FPR.FPSR & 0x0800009F
				}
				return dbg.FPR.FPSR, instr.FPR.FPSR & 0xF800009F
			},
		},
	)
	return table
}
