// Package traceparse reads already-symbolized stack trace text into a
// backtrace.Trace. It never resolves addresses: names, files and lines
// are taken from the text as printed.
package traceparse

import (
	"iter"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/gruf/go-errors/v2"

	"github.com/yousuf/shortbt-mcp/internal/backtrace"
)

var (
	// ErrNoFrames is returned when the input holds no recognizable frame.
	ErrNoFrames = errors.New("no frames found in trace")

	// ErrTooLarge is returned when the input exceeds the configured limits.
	ErrTooLarge = errors.New("trace exceeds size limits")

	// ErrUnknownFormat is returned for unsupported format names and for
	// input whose format cannot be detected.
	ErrUnknownFormat = errors.New("unknown trace format")
)

const (
	unresolvedName = "<unresolved>"
	unknownName    = "<unknown>"
)

var (
	// "  12: 0x55d4c0a1b2c3 - app::main" or "  12: app::main"
	symFrameRe = regexp.MustCompile(`^\s*(\d+):\s*(.*?)\s*$`)
	// "0x55d4c0a1b2c3 - app::main" once the index is stripped
	symAddrRe = regexp.MustCompile(`^(0x[0-9a-fA-F]+)\s*(?:-\s*(.*))?$`)
	// "      at /src/main.rs:12:5"
	symLocationRe = regexp.MustCompile(`^\s+at\s+(.+?):(\d+)(?::\d+)?\s*$`)
)

// Options tune Parse.
type Options struct {
	// Format of the input, FormatAuto to detect it
	Format Format
	// Maximum input size in bytes, 0 for no limit
	MaxBytes int
	// Maximum number of frames, 0 for no limit
	MaxFrames int
}

// Parse parses text with default options.
func Parse(text string) (*backtrace.Trace, Format, error) {
	return ParseWith(text, Options{})
}

// ParseWith parses text into a trace and reports the format it used.
func ParseWith(text string, opts Options) (*backtrace.Trace, Format, error) {
	if opts.MaxBytes > 0 && len(text) > opts.MaxBytes {
		return nil, opts.Format, errors.Wrapf(ErrTooLarge, "%d bytes, limit %d", len(text), opts.MaxBytes)
	}

	format := opts.Format
	if format == FormatAuto {
		format = Detect(text)
	}

	var p frameParser
	switch format {
	case FormatSymbolized:
		p = &symbolizedParser{}
	case FormatGo:
		p = &goParser{}
	default:
		return nil, format, ErrUnknownFormat
	}

	trace := &backtrace.Trace{}
	for line := range splitLines(text) {
		if !p.parseLine(trace, line) {
			break
		}
		if opts.MaxFrames > 0 && len(trace.Frames) > opts.MaxFrames {
			return nil, format, errors.Wrapf(ErrTooLarge, "more than %d frames", opts.MaxFrames)
		}
	}

	if len(trace.Frames) == 0 {
		return nil, format, ErrNoFrames
	}
	return trace, format, nil
}

// frameParser consumes one line at a time, appending to trace. It
// returns false once the rest of the input is of no interest.
type frameParser interface {
	parseLine(trace *backtrace.Trace, line string) bool
}

// symbolizedParser handles numbered listings. Every numbered line opens a
// frame, indented lines below it add inlined symbols, "at" lines attach
// debug info to the previous symbol.
type symbolizedParser struct{}

func (p *symbolizedParser) parseLine(trace *backtrace.Trace, line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}

	if m := symFrameRe.FindStringSubmatch(line); m != nil {
		trace.Frames = append(trace.Frames, parseSymbolizedFrame(m[2]))
		return true
	}

	// Anything else only makes sense inside a frame.
	if len(trace.Frames) == 0 {
		return true
	}
	frame := &trace.Frames[len(trace.Frames)-1]

	if m := symLocationRe.FindStringSubmatch(line); m != nil {
		if n := len(frame.Symbols); n > 0 {
			lineNum, _ := strconv.Atoi(m[2])
			frame.Symbols[n-1].File = m[1]
			frame.Symbols[n-1].Line = lineNum
		}
		return true
	}

	// Inlined symbols are indented, optionally with a leading dash.
	if line[0] == ' ' || line[0] == '\t' {
		name := strings.TrimSpace(line)
		name = strings.TrimSpace(strings.TrimPrefix(name, "-"))
		if strings.HasPrefix(name, "[...") {
			// "[... omitted 2 frames ...]"
			return true
		}
		frame.Symbols = append(frame.Symbols, symbolNamed(name))
	}
	return true
}

func parseSymbolizedFrame(rest string) backtrace.Frame {
	var frame backtrace.Frame
	if m := symAddrRe.FindStringSubmatch(rest); m != nil {
		frame.IP, _ = strconv.ParseUint(strings.TrimPrefix(strings.ToLower(m[1]), "0x"), 16, 64)
		rest = strings.TrimSpace(m[2])
	}
	if rest == "" || rest == unresolvedName {
		return frame
	}
	frame.Symbols = []backtrace.Symbol{symbolNamed(rest)}
	return frame
}

func symbolNamed(name string) backtrace.Symbol {
	if name == unknownName {
		name = ""
	}
	return backtrace.Symbol{Name: name}
}

// splitLines yields the lines of s without their line terminators.
func splitLines(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range strings.Lines(s) {
			line = strings.TrimRight(line, "\r\n")
			if !yield(line) {
				return
			}
		}
	}
}
