package diff

import "sort"

// CoverageEntry is one line of the coverage dump: a mnemonic and how many
// times it was executed.
type CoverageEntry struct {
	Mnemonic string
	Count    uint64
}

// coverage tracks per-mnemonic execution counts while remembering the
// order each mnemonic was first seen, so the dump can break count ties by
// first-occurrence order (spec §4.3) instead of the map-iteration order
// the original relied on.
type coverage struct {
	counts map[string]uint64
	order  []string
}

func newCoverage() *coverage {
	return &coverage{counts: make(map[string]uint64)}
}

func (c *coverage) record(mnemonic string) {
	if _, seen := c.counts[mnemonic]; !seen {
		c.order = append(c.order, mnemonic)
	}
	c.counts[mnemonic]++
}

// dump returns (mnemonic, count) pairs sorted by count descending, ties
// broken by first-occurrence order (spec §4.3, §6, §8's literal coverage
// dump scenario).
func (c *coverage) dump() []CoverageEntry {
	entries := make([]CoverageEntry, len(c.order))
	for i, m := range c.order {
		entries[i] = CoverageEntry{Mnemonic: m, Count: c.counts[m]}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries
}

func (c *coverage) uniqueCount() int {
	return len(c.order)
}
