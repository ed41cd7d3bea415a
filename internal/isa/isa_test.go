package isa

import "testing"

func TestObserveOrderMatchesTable(t *testing.T) {
	table := []Descriptor[int]{
		{Name: "a", Kind: KindGPR, GPRIndex: 0, Extract: func(dbg, instr *int) (uint64, uint64) { return 1, 1 }},
		{Name: "b", Kind: KindFlags, GPRIndex: -1, Extract: func(dbg, instr *int) (uint64, uint64) { return 2, 3 }},
	}
	var dbg, instr int
	obs := Observe(table, &dbg, &instr)
	if len(obs) != 2 {
		t.Fatalf("got %d observations, want 2", len(obs))
	}
	if obs[0].Name != "a" || obs[1].Name != "b" {
		t.Fatalf("observation order does not match table order: %+v", obs)
	}
	if obs[1].Real != 2 || obs[1].QBDI != 3 {
		t.Fatalf("observation b did not carry through Extract's values: %+v", obs[1])
	}
}

func TestX86TableNoDuplicateNames(t *testing.T) {
	assertNoDuplicateNames(t, "X86Table", namesOf(X86Table))
}

func TestX86_64TableNoDuplicateNames(t *testing.T) {
	assertNoDuplicateNames(t, "X86_64Table", namesOf(X86_64Table))
}

func TestARM32TableNoDuplicateNames(t *testing.T) {
	assertNoDuplicateNames(t, "ARM32Table", namesOf(ARM32Table))
}

func TestAArch64TableNoDuplicateNames(t *testing.T) {
	assertNoDuplicateNames(t, "AArch64Table", namesOf(AArch64Table))
}

func namesOf[S any](table []Descriptor[S]) []string {
	names := make([]string, len(table))
	for i, d := range table {
		names[i] = d.Name
	}
	return names
}

func assertNoDuplicateNames(t *testing.T, tableName string, names []string) {
	t.Helper()
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			t.Errorf("%s: duplicate register name %q (spec §9: the original compared x9/x19/x29 twice)", tableName, n)
		}
		seen[n] = true
	}
}

func TestClearAuxCarry(t *testing.T) {
	cases := []struct {
		in, want uint64
	}{
		{0x0, 0x0},
		{0x4, 0x0},
		{0x202, 0x202},
		{0x206, 0x202},
		{0xFFFFFFFF, 0xFFFFFFFB},
	}
	for _, c := range cases {
		if got := clearAuxCarry(c.in); got != c.want {
			t.Errorf("clearAuxCarry(0x%x) = 0x%x, want 0x%x", c.in, got, c.want)
		}
	}
}

func TestX86_64ControlWordsAreRaw(t *testing.T) {
	for _, name := range []string{"fcw", "fsw", "ftw", "fop", "mxcsr", "mxcsrmask"} {
		found := false
		for _, d := range X86_64Table {
			if d.Name == name {
				found = true
				if d.Kind != KindRaw {
					t.Errorf("%s: Kind = %v, want KindRaw (spec.md: control words compared raw)", name, d.Kind)
				}
			}
		}
		if !found {
			t.Fatalf("%s: not present in X86_64Table", name)
		}
	}
}

func TestAArch64NZCVIsGPRClass(t *testing.T) {
	for _, d := range AArch64Table {
		if d.Name == "nzcv" {
			if d.Kind != KindGPR {
				t.Errorf("nzcv: Kind = %v, want KindGPR (original: diffGPR(32, nzcv&mask, ...))", d.Kind)
			}
			return
		}
	}
	t.Fatal("nzcv: not present in AArch64Table")
}

func TestAArch64FPCRAndFPSRAreRaw(t *testing.T) {
	for _, name := range []string{"fpcr", "fpsr"} {
		found := false
		for _, d := range AArch64Table {
			if d.Name == name {
				found = true
				if d.Kind != KindRaw {
					t.Errorf("%s: Kind = %v, want KindRaw (original: diff() called directly)", name, d.Kind)
				}
			}
		}
		if !found {
			t.Fatalf("%s: not present in AArch64Table", name)
		}
	}
}

func TestARM32FPSCRKeepsSPRTreatment(t *testing.T) {
	for _, d := range ARM32Table {
		if d.Name == "fpscr" {
			if d.Kind != KindControl {
				t.Errorf("fpscr: Kind = %v, want KindControl (original: diffSPR(\"fpscr\", ...), unlike x86/AArch64's raw control words)", d.Kind)
			}
			return
		}
	}
	t.Fatal("fpscr: not present in ARM32Table")
}

func TestAArch64FPSRMaskSelection(t *testing.T) {
	dbg := &AArch64State{}
	instr := &AArch64State{}

	// NZCV clean on both sides and matching: narrower 0x0800009F mask applies.
	dbg.FPR.FPSR = 0
	instr.GPR.NZCV = 0x20000000
	instr.FPR.FPSR = 0x20000000 | 0xFF
	for _, d := range AArch64Table {
		if d.Name == "fpsr" {
			_, qbdi := d.Extract(dbg, instr)
			if qbdi != (0x20000000|0xFF)&0x0800009F {
				t.Errorf("fpsr narrow mask not applied: got 0x%x", qbdi)
			}
		}
	}

	// NZCV dirty: wider 0xF800009F mask applies instead.
	dbg.FPR.FPSR = 0xF0000000
	instr.FPR.FPSR = 0xFF
	for _, d := range AArch64Table {
		if d.Name == "fpsr" {
			_, qbdi := d.Extract(dbg, instr)
			if qbdi != 0xFF&0xF800009F {
				t.Errorf("fpsr wide mask not applied: got 0x%x", qbdi)
			}
		}
	}
}
