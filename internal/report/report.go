// Package report turns a resolved short backtrace into plain data that
// can be serialized as JSON, for the MCP tools and the command line.
package report

import (
	"github.com/yousuf/shortbt-mcp/internal/backtrace"
)

// Symbol is a serialized backtrace.Symbol.
type Symbol struct {
	Name string `json:"name" jsonschema:"symbol name, empty when unknown"`
	File string `json:"file,omitempty" jsonschema:"source file, when debug info is present"`
	Line int    `json:"line,omitempty" jsonschema:"source line (1-indexed), when debug info is present"`
}

// Frame is one emitted frame with the symbols inside its range.
type Frame struct {
	// Index of the frame in the full trace
	Index int    `json:"index" jsonschema:"position of the frame in the full trace"`
	IP    uint64 `json:"ip" jsonschema:"instruction pointer or offset as printed in the trace"`
	// Half-open range into the frame's full symbol list
	SymbolStart int      `json:"symbolStart" jsonschema:"first symbol of the frame kept (inclusive)"`
	SymbolEnd   int      `json:"symbolEnd" jsonschema:"symbol bound of the frame (exclusive)"`
	SymbolCount int      `json:"symbolCount" jsonschema:"number of symbols in the full frame"`
	Symbols     []Symbol `json:"symbols" jsonschema:"symbols of the frame inside the kept range"`
}

// Position is a serialized backtrace.Position.
type Position struct {
	Frame  int `json:"frame"`
	Symbol int `json:"symbol"`
}

// Report describes the short region of one trace.
type Report struct {
	TotalFrames int `json:"totalFrames" jsonschema:"number of frames in the full trace"`

	// Marker positions that survived order validation
	EndMarker   *Position `json:"endMarker,omitempty" jsonschema:"end marker position (start of the kept region)"`
	BeginMarker *Position `json:"beginMarker,omitempty" jsonschema:"begin marker position (end of the kept region)"`

	StartClamped bool `json:"startClamped" jsonschema:"whether frames were cut from the top of the trace"`
	EndClamped   bool `json:"endClamped" jsonschema:"whether frames were cut from the bottom of the trace"`

	Frames []Frame `json:"frames" jsonschema:"frames of the short region in trace order"`
}

// Build resolves t with m and collects the result.
func Build(t *backtrace.Trace, m backtrace.Markers) Report {
	b := m.Resolve(t)
	rep := Report{
		TotalFrames:  t.Len(),
		StartClamped: b.StartClamped(),
		EndClamped:   b.EndClamped(),
		Frames:       []Frame{},
	}
	if b.Scan.HasEnd {
		rep.EndMarker = &Position{Frame: b.Scan.End.Frame, Symbol: b.Scan.End.Symbol}
	}
	if b.Scan.HasBegin {
		rep.BeginMarker = &Position{Frame: b.Scan.Begin.Frame, Symbol: b.Scan.Begin.Symbol}
	}

	index := b.FirstFrame
	for frame, r := range b.Frames(t) {
		rep.Frames = append(rep.Frames, newFrame(index, frame, r))
		index++
	}
	return rep
}

// Full collects every frame of t without clamping.
func Full(t *backtrace.Trace) Report {
	rep := Report{
		TotalFrames: t.Len(),
		Frames:      make([]Frame, 0, t.Len()),
	}
	for i := range t.Len() {
		frame := &t.Frames[i]
		rep.Frames = append(rep.Frames, newFrame(i, frame, backtrace.Range{End: len(frame.Symbols)}))
	}
	return rep
}

func newFrame(index int, frame *backtrace.Frame, r backtrace.Range) Frame {
	syms := frame.Sub(r)
	out := Frame{
		Index:       index,
		IP:          frame.IP,
		SymbolStart: r.Start,
		SymbolEnd:   r.End,
		SymbolCount: len(frame.Symbols),
		Symbols:     make([]Symbol, r.Len()),
	}
	for i, s := range syms {
		out.Symbols[i].Name = s.Name
		if s.HasLocation() {
			out.Symbols[i].File = s.File
			out.Symbols[i].Line = s.Line
		}
	}
	return out
}

// SymbolCount returns the number of symbols kept in the report.
func (r Report) SymbolCount() int {
	n := 0
	for _, f := range r.Frames {
		n += len(f.Symbols)
	}
	return n
}
