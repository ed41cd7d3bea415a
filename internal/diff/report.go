package diff

import (
	"fmt"
	"io"
	"os"
)

// Reporter renders the verbosity ladder of spec §4.3 to an io.Writer,
// replacing the original's direct fprintf(stderr, ...) calls with a
// single seam the master driver and tests can both redirect.
type Reporter struct {
	w io.Writer
}

// NewReporter wraps w. A nil w defaults to os.Stderr, matching the
// original's default trace destination.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stderr
	}
	return &Reporter{w: w}
}

// logEntry renders one instruction's Full-verbosity trace line: address,
// disassembly, and every error attached to it.
func (r *Reporter) logEntry(entry LogEntry, errors []DiffError) {
	fmt.Fprintf(r.w, "0x%016x: %s\n", entry.Address, entry.Disassembly)
	for _, eID := range entry.ErrorIDs {
		err := errors[eID]
		fmt.Fprintf(r.w, "    %s: real=0x%x qbdi=0x%x [%s]\n", err.RegName, err.Real, err.QBDI, err.Severity)
	}
}

// renderCascades prints cascades at the configured verbosity. Stat prints
// only the summary counts; Summary adds one line per cascade; Detail adds
// every execID in the cascade; Full additionally repeats the per-register
// divergence already traced live by logEntry.
func (r *Reporter) renderCascades(v Verbosity, e *Engine, cascades []Cascade) {
	counts := map[Severity]int{}
	for _, c := range cascades {
		counts[c.Severity]++
	}
	fmt.Fprintf(r.w, "cascades: %d (critical=%d, non-critical=%d, no-impact=%d)\n",
		len(cascades), counts[Critical], counts[NonCritical], counts[NoImpact])

	if v < Summary {
		return
	}

	for _, c := range cascades {
		fmt.Fprintf(r.w, "cascade %d @ 0x%016x [%s]", c.CascadeID, c.CauseAddress, c.Severity)
		if len(c.SimilarCascade) > 0 {
			fmt.Fprintf(r.w, " (+%d similar)", len(c.SimilarCascade))
		}
		fmt.Fprintln(r.w)

		if v < Detail {
			continue
		}

		for _, execID := range c.ExecIDs {
			fmt.Fprintf(r.w, "    exec #%d\n", execID)
		}

		if v < Full {
			continue
		}

		for _, err := range e.errors {
			if err.CascadeID == c.CascadeID {
				fmt.Fprintf(r.w, "        %s: real=0x%x qbdi=0x%x\n", err.RegName, err.Real, err.QBDI)
			}
		}
	}
}

// writeCoverageFile writes one "<mnemonic>: <count>" line per entry, in
// the order already established by coverage.dump (spec §6).
func writeCoverageFile(filename string, entries []CoverageEntry) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, e := range entries {
		if _, err := fmt.Fprintf(f, "%s: %d\n", e.Mnemonic, e.Count); err != nil {
			return err
		}
	}
	return nil
}

// severities lists the severity of each cascade, in cascade order. No
// caller in the module uses it.
func severities(cascades []Cascade) []Severity {
	out := make([]Severity, len(cascades))
	for i, c := range cascades {
		out[i] = c.Severity
	}
	return out
}
