package backtrace

// Symbol is one resolved symbol of a frame. A frame carries several of
// them when calls were inlined into it.
type Symbol struct {
	// Demangled symbol name, empty if unknown
	Name string
	// Source file path, empty if no debug info
	File string
	// Line number (1-indexed), 0 if not available
	Line int
}

// HasLocation reports whether the symbol carries a file/line pair.
func (s Symbol) HasLocation() bool {
	return s.File != "" && s.Line > 0
}

// Frame is a single stack activation record.
type Frame struct {
	// Instruction pointer, opaque to this package
	IP uint64
	// Symbols resolved for IP, outermost call last. May be empty.
	Symbols []Symbol
}

// Sub returns the symbols of f selected by r. The result aliases f.Symbols.
func (f *Frame) Sub(r Range) []Symbol {
	return f.Symbols[r.Start:r.End]
}

// Trace is a captured, symbol-resolved stack, newest frame first.
type Trace struct {
	Frames []Frame
}

// Len returns the number of frames.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Frames)
}

// SymbolCount returns the total number of symbols across all frames.
func (t *Trace) SymbolCount() int {
	n := 0
	for i := range t.Len() {
		n += len(t.Frames[i].Symbols)
	}
	return n
}

// Range is a half-open [Start, End) range into a frame's symbols.
type Range struct {
	Start int
	End   int
}

// Len returns the number of symbols in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Position identifies a symbol inside a trace.
type Position struct {
	Frame  int
	Symbol int
}

// Compare orders positions by frame, then by symbol.
func (p Position) Compare(o Position) int {
	switch {
	case p.Frame < o.Frame:
		return -1
	case p.Frame > o.Frame:
		return 1
	case p.Symbol < o.Symbol:
		return -1
	case p.Symbol > o.Symbol:
		return 1
	}
	return 0
}
