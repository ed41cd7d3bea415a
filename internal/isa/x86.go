package isa

// StReg is the x87 MMX/ST register layout: a 64-bit mantissa split into two
// 32-bit halves plus a 16-bit exponent/sign word, matching QBDI's MMSTReg.
type StReg struct {
	M0, M1 uint32
	E      uint16
}

// XMMReg is a 128-bit SSE register, addressed as four 32-bit lanes.
type XMMReg [4]uint32

// X86GPRState holds the 32-bit GPR set plus EFLAGS.
type X86GPRState struct {
	EAX, EBX, ECX, EDX uint32
	ESI, EDI           uint32
	EBP, ESP           uint32
	EFlags             uint32
}

// X86FPRState holds the x87/SSE state: 8 ST registers, 8 XMM registers, and
// the control/status words compared raw.
type X86FPRState struct {
	ST               [8]StReg
	XMM              [8]XMMReg
	FCW, FSW         uint16
	FTW, FOP         uint16
	MXCSR, MXCSRMask uint32
}

// X86State pairs one side's GPR and FPR dumps.
type X86State struct {
	GPR X86GPRState
	FPR X86FPRState
}

// clearAuxCarry clears the Auxiliary-Carry bit (bit 2): v & (v ^ 0x4) zeroes
// bit 2 unconditionally and leaves every other bit untouched, matching the
// original's noisy-AC-flag suppression exactly. Shared by EFLAGS (x86) and
// RFLAGS (x86_64), both of which carry AC at the same bit position.
func clearAuxCarry(v uint64) uint64 {
	return v & (v ^ 0x4)
}

func x86StFields(i int) []Descriptor[X86State] {
	name := rname("st", i)
	return []Descriptor[X86State]{
		{Name: name + ".m[0:32]", Kind: KindVector, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) {
				return uint64(dbg.FPR.ST[i].M0), uint64(instr.FPR.ST[i].M0)
			}},
		{Name: name + ".m[32:64]", Kind: KindVector, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) {
				return uint64(dbg.FPR.ST[i].M1), uint64(instr.FPR.ST[i].M1)
			}},
		{Name: name + ".e", Kind: KindVector, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) {
				return uint64(dbg.FPR.ST[i].E), uint64(instr.FPR.ST[i].E)
			}},
	}
}

func x86XMMFields(i int) []Descriptor[X86State] {
	base := rname("xmm", i)
	fields := make([]Descriptor[X86State], 4)
	for lane := 0; lane < 4; lane++ {
		lane := lane
		fields[lane] = Descriptor[X86State]{
			Name: base + bracket(lane*32, (lane+1)*32), Kind: KindVector, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) {
				return uint64(dbg.FPR.XMM[i][lane]), uint64(instr.FPR.XMM[i][lane])
			},
		}
	}
	return fields
}

// X86Table implements spec §4.1's x86 masking rules: the 32-bit GPR set in
// full, x87 STn decomposed into .m[0:32]/.m[32:64]/.e, XMM as four 32-bit
// slices, control words compared raw, and EFLAGS with the AC bit cleared on
// both sides before comparison.
var X86Table = buildX86Table()

func buildX86Table() []Descriptor[X86State] {
	gpr := func(idx int, name string, get func(*X86GPRState) uint32) Descriptor[X86State] {
		return Descriptor[X86State]{
			Name: name, Kind: KindGPR, GPRIndex: idx,
			Extract: func(dbg, instr *X86State) (uint64, uint64) {
				return uint64(get(&dbg.GPR)), uint64(get(&instr.GPR))
			},
		}
	}
	table := []Descriptor[X86State]{
		gpr(0, "eax", func(g *X86GPRState) uint32 { return g.EAX }),
		gpr(1, "ebx", func(g *X86GPRState) uint32 { return g.EBX }),
		gpr(2, "ecx", func(g *X86GPRState) uint32 { return g.ECX }),
		gpr(3, "edx", func(g *X86GPRState) uint32 { return g.EDX }),
		gpr(4, "esi", func(g *X86GPRState) uint32 { return g.ESI }),
		gpr(5, "edi", func(g *X86GPRState) uint32 { return g.EDI }),
		gpr(6, "ebp", func(g *X86GPRState) uint32 { return g.EBP }),
		gpr(7, "esp", func(g *X86GPRState) uint32 { return g.ESP }),
	}
	for i := 0; i < 8; i++ {
		table = append(table, x86StFields(i)...)
	}
	for i := 0; i < 8; i++ {
		table = append(table, x86XMMFields(i)...)
	}
	table = append(table,
		Descriptor[X86State]{Name: "fcw", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) { return uint64(dbg.FPR.FCW), uint64(instr.FPR.FCW) }},
		Descriptor[X86State]{Name: "fsw", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) { return uint64(dbg.FPR.FSW), uint64(instr.FPR.FSW) }},
		Descriptor[X86State]{Name: "ftw", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) { return uint64(dbg.FPR.FTW), uint64(instr.FPR.FTW) }},
		Descriptor[X86State]{Name: "fop", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) { return uint64(dbg.FPR.FOP), uint64(instr.FPR.FOP) }},
		Descriptor[X86State]{Name: "mxcsr", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) { return uint64(dbg.FPR.MXCSR), uint64(instr.FPR.MXCSR) }},
		Descriptor[X86State]{Name: "mxcsrmask", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86State) (uint64, uint64) { return uint64(dbg.FPR.MXCSRMask), uint64(instr.FPR.MXCSRMask) }},
		Descriptor[X86State]{Name: "eflags", Kind: KindGPR, GPRIndex: 17,
			Extract: func(dbg, instr *X86State) (uint64, uint64) {
				return clearAuxCarry(uint64(dbg.GPR.EFlags)), clearAuxCarry(uint64(instr.GPR.EFlags))
			}},
	)
	return table
}
