package isa

// X86_64GPRState holds the 16-register GPR set plus RFLAGS.
type X86_64GPRState struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI           uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	RBP, RSP           uint64
	RFlags             uint64
}

// X86_64FPRState holds 8 ST registers, 16 XMM registers, and the x87/SSE
// control/status words.
type X86_64FPRState struct {
	ST               [8]StReg
	XMM              [16]XMMReg
	FCW, FSW         uint16
	FTW, FOP         uint16
	MXCSR, MXCSRMask uint32
}

// X86_64State pairs one side's GPR and FPR dumps.
type X86_64State struct {
	GPR X86_64GPRState
	FPR X86_64FPRState
}

func x86_64StFields(i int) []Descriptor[X86_64State] {
	name := rname("st", i)
	return []Descriptor[X86_64State]{
		{Name: name + ".m[0:32]", Kind: KindVector, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) {
				return uint64(dbg.FPR.ST[i].M0), uint64(instr.FPR.ST[i].M0)
			}},
		{Name: name + ".m[32:64]", Kind: KindVector, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) {
				return uint64(dbg.FPR.ST[i].M1), uint64(instr.FPR.ST[i].M1)
			}},
		{Name: name + ".e", Kind: KindVector, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) {
				return uint64(dbg.FPR.ST[i].E), uint64(instr.FPR.ST[i].E)
			}},
	}
}

func x86_64XMMFields(i int) []Descriptor[X86_64State] {
	base := rname("xmm", i)
	fields := make([]Descriptor[X86_64State], 4)
	for lane := 0; lane < 4; lane++ {
		lane := lane
		fields[lane] = Descriptor[X86_64State]{
			Name: base + bracket(lane*32, (lane+1)*32), Kind: KindVector, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) {
				return uint64(dbg.FPR.XMM[i][lane]), uint64(instr.FPR.XMM[i][lane])
			},
		}
	}
	return fields
}

// X86_64Table mirrors X86Table with the 64-bit ABI's wider GPR set, 16 XMM
// registers, and RFLAGS' AC bit cleared the same way as EFLAGS.
var X86_64Table = buildX86_64Table()

func buildX86_64Table() []Descriptor[X86_64State] {
	gpr := func(idx int, name string, get func(*X86_64GPRState) uint64) Descriptor[X86_64State] {
		return Descriptor[X86_64State]{
			Name: name, Kind: KindGPR, GPRIndex: idx,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) {
				return get(&dbg.GPR), get(&instr.GPR)
			},
		}
	}
	table := []Descriptor[X86_64State]{
		gpr(0, "rax", func(g *X86_64GPRState) uint64 { return g.RAX }),
		gpr(1, "rbx", func(g *X86_64GPRState) uint64 { return g.RBX }),
		gpr(2, "rcx", func(g *X86_64GPRState) uint64 { return g.RCX }),
		gpr(3, "rdx", func(g *X86_64GPRState) uint64 { return g.RDX }),
		gpr(4, "rsi", func(g *X86_64GPRState) uint64 { return g.RSI }),
		gpr(5, "rdi", func(g *X86_64GPRState) uint64 { return g.RDI }),
		gpr(6, "r8", func(g *X86_64GPRState) uint64 { return g.R8 }),
		gpr(7, "r9", func(g *X86_64GPRState) uint64 { return g.R9 }),
		gpr(8, "r10", func(g *X86_64GPRState) uint64 { return g.R10 }),
		gpr(9, "r11", func(g *X86_64GPRState) uint64 { return g.R11 }),
		gpr(10, "r12", func(g *X86_64GPRState) uint64 { return g.R12 }),
		gpr(11, "r13", func(g *X86_64GPRState) uint64 { return g.R13 }),
		gpr(12, "r14", func(g *X86_64GPRState) uint64 { return g.R14 }),
		gpr(13, "r15", func(g *X86_64GPRState) uint64 { return g.R15 }),
		gpr(14, "rbp", func(g *X86_64GPRState) uint64 { return g.RBP }),
		gpr(15, "rsp", func(g *X86_64GPRState) uint64 { return g.RSP }),
	}
	for i := 0; i < 8; i++ {
		table = append(table, x86_64StFields(i)...)
	}
	for i := 0; i < 16; i++ {
		table = append(table, x86_64XMMFields(i)...)
	}
	table = append(table,
		Descriptor[X86_64State]{Name: "fcw", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) { return uint64(dbg.FPR.FCW), uint64(instr.FPR.FCW) }},
		Descriptor[X86_64State]{Name: "fsw", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) { return uint64(dbg.FPR.FSW), uint64(instr.FPR.FSW) }},
		Descriptor[X86_64State]{Name: "ftw", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) { return uint64(dbg.FPR.FTW), uint64(instr.FPR.FTW) }},
		Descriptor[X86_64State]{Name: "fop", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) { return uint64(dbg.FPR.FOP), uint64(instr.FPR.FOP) }},
		Descriptor[X86_64State]{Name: "mxcsr", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) { return uint64(dbg.FPR.MXCSR), uint64(instr.FPR.MXCSR) }},
		Descriptor[X86_64State]{Name: "mxcsrmask", Kind: KindRaw, GPRIndex: -1,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) { return uint64(dbg.FPR.MXCSRMask), uint64(instr.FPR.MXCSRMask) }},
		Descriptor[X86_64State]{Name: "rflags", Kind: KindGPR, GPRIndex: 17,
			Extract: func(dbg, instr *X86_64State) (uint64, uint64) {
				return clearAuxCarry(dbg.GPR.RFlags), clearAuxCarry(instr.GPR.RFlags)
			}},
	)
	return table
}
