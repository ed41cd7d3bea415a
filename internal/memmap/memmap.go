// Package memmap models the reference process's memory mappings, the data
// the diff core consults to learn how wide a DiffMap's address window may
// safely be (spec §4.2, §6: getRemoteProcessMaps / getValidOffsetRange).
package memmap

// Region is the Go projection of one entry returned by the external
// getRemoteProcessMaps provider (spec §6). Only Start/End are consumed by
// the diff core; Name/Perms are carried for diagnostics.
type Region struct {
	Start, End uint64
	Name       string
	Perms      string
}

// Contains reports whether addr falls within [Start, End), mirroring the
// half-open range convention of /proc/<pid>/maps-style region listings.
func (r Region) Contains(addr uint64) bool {
	return r.Start <= addr && addr < r.End
}

// Provider is the external collaborator boundary for spec §6's
// getRemoteProcessMaps: given a pid, return every mapped region of that
// process. A real implementation reads /proc/<pid>/maps or an equivalent
// platform API; this package only consumes the result.
type Provider interface {
	Maps(pid int) ([]Region, error)
}

// ValidOffsetRange returns how far addr may move within its containing
// region before leaving it: (addr-region.Start, region.End-addr-1). If no
// provider is set, the lookup fails, or no region contains addr, it
// returns (0, 0) — a zero-width window that disables approximate DiffMap
// explanation for that anchor (spec §4.2: "missing region implies a
// zero-width window").
func ValidOffsetRange(p Provider, pid int, addr uint64) (lower, upper uint64) {
	if p == nil {
		return 0, 0
	}
	regions, err := p.Maps(pid)
	if err != nil {
		return 0, 0
	}
	for _, r := range regions {
		if r.Contains(addr) {
			return addr - r.Start, r.End - addr - 1
		}
	}
	return 0, 0
}
