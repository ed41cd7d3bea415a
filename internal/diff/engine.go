package diff

import (
	"io"
	"sort"

	"dbivalidate/internal/isa"
	"dbivalidate/internal/memmap"
)

// Engine is the Differential State Validator core: it owns the errors
// table, the DiffMap list, the saved-log index, and the coverage map for
// one validation run, and is driven by the four signal* calls spec §2
// describes. It is single-threaded and cooperative (spec §5): callers
// must serialize calls in execution order themselves.
//
// prev/cur mirror the two-slot log of spec §4.3 exactly, including its
// one-call lag: the register values passed to SignalNewState are diffed
// into the *existing* cur (the entry opened by the previous call), not
// into a freshly created entry for this call's address. cur only
// receives its own address/mnemonic here; its diffs arrive with the next
// call. The final cur opened by the run is therefore never diffed — it
// holds the trailing snapshot taken when the program had nothing left to
// execute against.
type Engine struct {
	prev, cur *LogEntry

	diffMaps  []DiffMap
	savedLogs []LogEntry // append-only, strictly increasing ExecID by construction
	errors    []DiffError
	coverage  *coverage

	debuggedPID, instrumentedPID int
	maps                         memmap.Provider

	verbosity Verbosity
	execID    uint64

	reporter *Reporter
}

// New constructs an Engine for one validation run. maps may be nil, in
// which case DiffMap address-window learning always falls back to a
// zero-width window (spec §4.2).
func New(debuggedPID, instrumentedPID int, maps memmap.Provider, verbosity Verbosity) *Engine {
	return &Engine{
		coverage:        newCoverage(),
		debuggedPID:     debuggedPID,
		instrumentedPID: instrumentedPID,
		maps:            maps,
		verbosity:       verbosity,
		reporter:        NewReporter(nil),
	}
}

// SetOutput redirects the live Full-verbosity trace and the final report
// to w instead of the default stderr.
func (e *Engine) SetOutput(w io.Writer) {
	e.reporter = NewReporter(w)
}

// ExecID returns the number of instructions signaled so far.
func (e *Engine) ExecID() uint64 { return e.execID }

// Errors returns the full errors table observed so far (read-only use by
// tests and reporting).
func (e *Engine) Errors() []DiffError { return e.errors }

// DiffMaps returns every learned DiffMap.
func (e *Engine) DiffMaps() []DiffMap { return e.diffMaps }

// diff is the register-class-agnostic comparison primitive (spec §4.2
// step "diff<T>"): it never explains via DiffMap or boundary learning, it
// only decides cascade membership and severity for a divergence that
// diffGPR/diffSPR have already failed to explain any other way, or for a
// KindRaw field, which SignalNewState sends here directly.
func (e *Engine) diff(regName string, real, qbdi uint64) (int, bool) {
	if real == qbdi {
		return -1, false
	}

	err := DiffError{
		RegName:     regName,
		Real:        real,
		QBDI:        qbdi,
		Severity:    NoImpact,
		CauseExecID: e.cur.ExecID,
		CascadeID:   e.cur.ExecID,
	}

	if e.prev != nil && len(e.prev.ErrorIDs) > 0 {
		err.CascadeID = e.errors[e.prev.ErrorIDs[0]].CascadeID
		for _, eID := range e.prev.ErrorIDs {
			if e.errors[eID].Severity < NonCritical {
				e.errors[eID].Severity = NonCritical
			}
		}
	} else {
		for i := range e.errors {
			if e.errors[i].Real == err.Real && e.errors[i].QBDI == err.QBDI {
				err.CascadeID = e.errors[i].CascadeID
				if e.errors[i].Severity < NonCritical {
					e.errors[i].Severity = NonCritical
				}
				break
			}
		}
	}

	e.errors = append(e.errors, err)
	return len(e.errors) - 1, true
}

// diffGPR implements spec §4.2's GPR-class comparison: DiffMap
// explanation, then propagation from the previous entry, then (at a
// transfer or run boundary) address-window learning, falling through to
// diff otherwise.
func (e *Engine) diffGPR(regName string, real, qbdi uint64) (int, bool) {
	if real == qbdi {
		return -1, false
	}

	for _, m := range e.diffMaps {
		if m.explainsGPR(real, qbdi) {
			return -1, false
		}
	}

	if e.prev != nil {
		for _, eID := range e.prev.ErrorIDs {
			if e.errors[eID].RegName == regName && e.errors[eID].Real == real && e.errors[eID].QBDI == qbdi {
				return eID, true
			}
		}
	}

	if e.prev == nil || e.cur.Transfer != 0 {
		lowerDbg, upperDbg := memmap.ValidOffsetRange(e.maps, e.debuggedPID, real)
		lowerInstr, upperInstr := memmap.ValidOffsetRange(e.maps, e.instrumentedPID, qbdi)
		e.diffMaps = append(e.diffMaps, DiffMap{
			Real:        real,
			QBDI:        qbdi,
			LowerOffset: min64(lowerDbg, lowerInstr),
			UpperOffset: min64(upperDbg, upperInstr),
			CauseExecID: e.cur.ExecID,
		})
		return -1, false
	}

	return e.diff(regName, real, qbdi)
}

// diffSPR implements spec §4.2's SPR-class comparison: as diffGPR, but
// DiffMap explanation only matches an exact zero-width anchor.
func (e *Engine) diffSPR(regName string, real, qbdi uint64) (int, bool) {
	if real == qbdi {
		return -1, false
	}

	for _, m := range e.diffMaps {
		if m.explainsSPR(real, qbdi) {
			return -1, false
		}
	}

	if e.prev != nil {
		for _, eID := range e.prev.ErrorIDs {
			if e.errors[eID].RegName == regName && e.errors[eID].Real == real && e.errors[eID].QBDI == qbdi {
				return eID, true
			}
		}
	}

	if e.prev == nil || e.cur.Transfer != 0 {
		e.diffMaps = append(e.diffMaps, DiffMap{
			Real:        real,
			QBDI:        qbdi,
			CauseExecID: e.cur.ExecID,
		})
		return -1, false
	}

	return e.diff(regName, real, qbdi)
}

// SignalNewState is called once per executed instruction, in program
// order (spec §2). observations is the ISA-agnostic field list produced
// by isa.Observe for the instruction currently open as cur; address,
// mnemonic and disassembly describe the instruction that is about to
// begin and become the new cur.
func (e *Engine) SignalNewState(address uint64, mnemonic, disassembly string, observations []isa.Observation) {
	if e.cur != nil {
		for _, obs := range observations {
			var (
				errID int
				ok    bool
			)
			switch obs.Kind {
			case isa.KindGPR:
				errID, ok = e.diffGPR(obs.Name, obs.Real, obs.QBDI)
			case isa.KindRaw:
				errID, ok = e.diff(obs.Name, obs.Real, obs.QBDI)
			default:
				errID, ok = e.diffSPR(obs.Name, obs.Real, obs.QBDI)
			}
			if ok {
				e.cur.ErrorIDs = append(e.cur.ErrorIDs, errID)
			}
		}

		for _, eID := range e.cur.ErrorIDs {
			if e.errors[eID].CauseExecID == e.cur.ExecID {
				e.savedLogs = append(e.savedLogs, *e.cur)
				break
			}
		}
	}

	if e.prev != nil && e.verbosity == Full {
		e.reporter.logEntry(*e.prev, e.errors)
	}

	e.prev = e.cur
	e.execID++
	e.coverage.record(mnemonic)
	e.cur = &LogEntry{ExecID: e.execID, Address: address, Disassembly: disassembly}
}

// SignalExecTransfer marks the currently open cur entry as a transfer
// boundary, making the diffs that arrive with the next SignalNewState
// call eligible for DiffMap boundary learning (spec §4.2, §4.3).
func (e *Engine) SignalExecTransfer(address uint64) {
	if e.cur != nil {
		e.cur.Transfer = address
	}
}

// SignalCriticalState stamps every error on prev — the most recently
// diffed instruction — as Critical, called when the reference process
// exits or crashes mid-diff (spec §3, §7).
func (e *Engine) SignalCriticalState() {
	if e.prev != nil {
		for _, eID := range e.prev.ErrorIDs {
			e.errors[eID].Severity = Critical
		}
	}
}

// FlushLastLog emits prev and cur (if Full verbosity) and releases both,
// matching spec §4.3's "emit prev, emit cur, destroy both". Idempotent:
// a second call finds both nil and does nothing.
func (e *Engine) FlushLastLog() {
	if e.verbosity == Full {
		if e.prev != nil {
			e.reporter.logEntry(*e.prev, e.errors)
		}
		if e.cur != nil {
			e.reporter.logEntry(*e.cur, e.errors)
		}
	}
	e.prev = nil
	e.cur = nil
}

// logEntryLookup binary-searches savedLogs, which is append-only with a
// strictly increasing ExecID key by construction (spec §9's design note:
// keep the sortedness invariant explicit rather than re-proving it).
func (e *Engine) logEntryLookup(execID uint64) (int, bool) {
	lo, hi := 0, len(e.savedLogs)
	for lo < hi {
		mid := (lo + hi) / 2
		if e.savedLogs[mid].ExecID < execID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(e.savedLogs) && e.savedLogs[lo].ExecID == execID {
		return lo, true
	}
	return -1, false
}

// BuildCascades aggregates the errors table into cascades, deduplicates
// adjacent repeated execIDs and cascades sharing (causeAddress,
// severity), and returns them ordered with the highest severity first
// (spec §4.3; the literal pairwise-swap-pass ordering is an open question
// this implementation resolves with a plain stable sort — see
// SPEC_FULL.md §8).
func (e *Engine) BuildCascades() []Cascade {
	index := make(map[uint64]int)
	var cascades []Cascade

	for _, err := range e.errors {
		i, ok := index[err.CascadeID]
		if !ok {
			var addr uint64
			if li, found := e.logEntryLookup(err.CauseExecID); found {
				addr = e.savedLogs[li].Address
			}
			cascades = append(cascades, Cascade{
				CascadeID:    err.CascadeID,
				CauseAddress: addr,
				Severity:     err.Severity,
			})
			i = len(cascades) - 1
			index[err.CascadeID] = i
		}
		cascades[i].ExecIDs = append(cascades[i].ExecIDs, err.CauseExecID)
		if err.Severity > cascades[i].Severity {
			cascades[i].Severity = err.Severity
		}
	}

	for i := range cascades {
		cascades[i].ExecIDs = dedupAdjacent(cascades[i].ExecIDs)
	}

	merged := make([]Cascade, 0, len(cascades))
	for _, c := range cascades {
		absorbed := false
		for i := range merged {
			if merged[i].CauseAddress == c.CauseAddress && merged[i].Severity == c.Severity {
				merged[i].SimilarCascade = append(merged[i].SimilarCascade, c.CascadeID)
				absorbed = true
				break
			}
		}
		if !absorbed {
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Severity > merged[j].Severity
	})
	return merged
}

// LogCascades builds the cascade list and renders it at the engine's
// configured verbosity (spec §4.3's verbosity ladder).
func (e *Engine) LogCascades() []Cascade {
	cascades := e.BuildCascades()
	e.reporter.renderCascades(e.verbosity, e, cascades)
	return cascades
}

// LogCoverage writes the coverage dump to filename: one
// "<mnemonic>: <count>\n" line per mnemonic, sorted by count descending
// (spec §6).
func (e *Engine) LogCoverage(filename string) error {
	return writeCoverageFile(filename, e.coverage.dump())
}

func dedupAdjacent(ids []uint64) []uint64 {
	if len(ids) == 0 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
