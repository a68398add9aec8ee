// Package backtrace locates the "short backtrace" region of a captured,
// symbol-resolved stack trace.
//
// Runtimes that support short backtraces place two marker symbols on the
// stack: one just above the program's entry point and one just below the
// panic machinery. The frames between them are the ones worth showing.
//
// The marker names read backwards relative to a trace's newest-first
// order. The end marker is met first when walking a trace and bounds the
// START of the kept region; the begin marker bounds its END.
//
// Markers are matched by substring, so mangled or decorated names still
// qualify. When the markers cannot be trusted the full trace is produced.
// Frames may have been inlined together with a marker, so every emitted
// frame comes with a Range that callers use to slice its symbols:
//
//	for frame, r := range backtrace.ShortFrames(trace) {
//		for _, sym := range frame.Sub(r) {
//			...
//		}
//	}
package backtrace

import (
	"iter"
	"strings"
)

const (
	// EndShortMarker bounds the start of the short region.
	EndShortMarker = "rust_end_short_backtrace"

	// BeginShortMarker bounds the end of the short region.
	BeginShortMarker = "rust_begin_short_backtrace"
)

// Markers holds the substrings searched for in symbol names.
type Markers struct {
	End   string
	Begin string
}

// DefaultMarkers are the marker substrings used by the package-level functions.
var DefaultMarkers = Markers{
	End:   EndShortMarker,
	Begin: BeginShortMarker,
}

// ShortFrames yields the frames of t inside the short backtrace region,
// each with the range of its symbols that belongs to the region.
func ShortFrames(t *Trace) iter.Seq2[*Frame, Range] {
	return DefaultMarkers.ShortFrames(t)
}

// Resolve computes the short backtrace bounds of t using DefaultMarkers.
func Resolve(t *Trace) Bounds {
	return DefaultMarkers.Resolve(t)
}

// ShortFrames is like the package-level ShortFrames but matches m.
func (m Markers) ShortFrames(t *Trace) iter.Seq2[*Frame, Range] {
	return m.Resolve(t).Frames(t)
}

// Scan holds the marker positions found in a trace.
type Scan struct {
	End      Position
	Begin    Position
	HasEnd   bool
	HasBegin bool
}

// Scan walks t once. Duplicated markers happen with inlining; the pair
// closest together wins, which is the last end marker and the first
// begin marker.
func (m Markers) Scan(t *Trace) Scan {
	var s Scan
	for fi := range t.Len() {
		for si, sym := range t.Frames[fi].Symbols {
			if sym.Name == "" {
				continue
			}
			if m.End != "" && strings.Contains(sym.Name, m.End) {
				s.End = Position{Frame: fi, Symbol: si}
				s.HasEnd = true
			}
			if m.Begin != "" && !s.HasBegin && strings.Contains(sym.Name, m.Begin) {
				s.Begin = Position{Frame: fi, Symbol: si}
				s.HasBegin = true
			}
		}
	}
	return s
}

// Ordered reports whether the markers may be used together. A scan with
// at most one marker is always ordered.
func (s Scan) Ordered() bool {
	if !s.HasEnd || !s.HasBegin {
		return true
	}
	return s.End.Compare(s.Begin) <= 0
}

// Bounds is the resolved short region of a trace.
type Bounds struct {
	// First emitted frame and its first symbol (inclusive)
	FirstFrame  int
	FirstSymbol int
	// Last emitted frame (inclusive) and its symbol bound (exclusive)
	LastFrame       int
	LastSymbolLimit int

	// Scan after order validation; misordered markers are cleared.
	Scan Scan
}

// StartClamped reports whether the head of the trace was cut.
func (b Bounds) StartClamped() bool { return b.Scan.HasEnd }

// EndClamped reports whether the tail of the trace was cut.
func (b Bounds) EndClamped() bool { return b.Scan.HasBegin }

// Resolve scans t and computes its short backtrace bounds.
func (m Markers) Resolve(t *Trace) Bounds {
	scan := m.Scan(t)
	if !scan.Ordered() {
		scan = Scan{}
	}

	n := t.Len()
	b := Bounds{Scan: scan}
	if n == 0 {
		return b
	}
	b.LastFrame = n - 1
	b.LastSymbolLimit = len(t.Frames[n-1].Symbols)

	if scan.HasEnd {
		idx, sub := scan.End.Frame, scan.End.Symbol
		if sub == len(t.Frames[idx].Symbols)-1 {
			// Marker closes its frame, start on the whole next one.
			b.FirstFrame = min(idx+1, b.LastFrame)
			b.FirstSymbol = 0
		} else {
			b.FirstFrame = idx
			b.FirstSymbol = sub + 1
		}
	}

	if scan.HasBegin {
		idx, sub := scan.Begin.Frame, scan.Begin.Symbol
		if sub == 0 {
			// Marker opens its frame, end on the whole previous one.
			b.LastFrame = max(idx-1, 0)
			b.LastSymbolLimit = len(t.Frames[b.LastFrame].Symbols)
		} else {
			b.LastFrame = idx
			b.LastSymbolLimit = sub
		}
	}

	return b
}

// Empty reports whether b selects no frames of a trace with n frames.
func (b Bounds) Empty(n int) bool {
	return n == 0 || b.FirstFrame > b.LastFrame || b.LastFrame >= n
}

// Frames yields the frames of t selected by b. t must be the trace b was
// resolved from. Stopping early is always safe.
func (b Bounds) Frames(t *Trace) iter.Seq2[*Frame, Range] {
	return func(yield func(*Frame, Range) bool) {
		if b.Empty(t.Len()) {
			return
		}
		for i := b.FirstFrame; i <= b.LastFrame; i++ {
			f := &t.Frames[i]
			r := Range{Start: 0, End: len(f.Symbols)}
			if i == b.FirstFrame {
				r.Start = b.FirstSymbol
			}
			if i == b.LastFrame {
				r.End = b.LastSymbolLimit
			}
			// Adjacent markers in one frame can cross; emit it empty.
			r.Start = min(r.Start, len(f.Symbols))
			r.End = max(min(r.End, len(f.Symbols)), r.Start)
			if !yield(f, r) {
				return
			}
		}
	}
}
