package memmap

// Static is a fixed-table Provider: the same region list is returned for
// every pid. Grounded on the teacher's internal/mips32.Memory, which checks
// address containment against a fixed extent before every access; here the
// containment check is per-region instead of per-buffer, and failure
// yields a zero-width window instead of an error.
type Static struct {
	Regions []Region
}

func (s Static) Maps(int) ([]Region, error) {
	return s.Regions, nil
}
