package traceparse

import (
	"encoding"
	"fmt"

	"codeberg.org/gruf/go-errors/v2"
)

// Format identifies the textual layout of a trace.
type Format int

const (
	// FormatAuto detects the layout from the input.
	FormatAuto Format = iota
	// FormatSymbolized is the numbered frame listing printed by Rust's std
	// and the backtrace crate.
	FormatSymbolized
	// FormatGo is a goroutine dump as printed on panic or by debug.Stack.
	FormatGo
)

var (
	_ encoding.TextMarshaler   = FormatAuto
	_ encoding.TextUnmarshaler = (*Format)(nil)
)

func (f Format) String() string {
	v, err := f.MarshalText()
	if err != nil {
		return fmt.Sprintf("format-invalid(%d)", int(f))
	}
	return string(v)
}

func (f Format) MarshalText() ([]byte, error) {
	switch f {
	case FormatAuto:
		return []byte("auto"), nil
	case FormatSymbolized:
		return []byte("symbolized"), nil
	case FormatGo:
		return []byte("go"), nil
	default:
		return nil, errors.Newf("cannot marshal invalid Format(%d)", int(f))
	}
}

func (f *Format) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "auto":
		*f = FormatAuto
	case "symbolized", "rust":
		*f = FormatSymbolized
	case "go", "goroutine":
		*f = FormatGo
	default:
		return errors.Wrapf(ErrUnknownFormat, "unknown format %q", b)
	}
	return nil
}

// ParseFormat parses a format name as accepted by Format.UnmarshalText.
func ParseFormat(s string) (Format, error) {
	var f Format
	if err := f.UnmarshalText([]byte(s)); err != nil {
		return FormatAuto, err
	}
	return f, nil
}

// Detect guesses the format of text. It returns FormatAuto when nothing
// looks like a frame.
func Detect(text string) Format {
	sawGoFunc := false
	for line := range splitLines(text) {
		switch {
		case goroutineRe.MatchString(line):
			return FormatGo
		case symFrameRe.MatchString(line):
			return FormatSymbolized
		case goLocationRe.MatchString(line):
			if sawGoFunc {
				return FormatGo
			}
		}
		sawGoFunc = goFuncRe.MatchString(line)
	}
	return FormatAuto
}
