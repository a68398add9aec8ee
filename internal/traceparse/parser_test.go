package traceparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousuf/shortbt-mcp/internal/backtrace"
)

const fullRustTrace = `thread 'main' panicked at src/main.rs:4:5:
explicit panic
stack backtrace:
   0:     0x55d4c0a1b2c3 - std::backtrace_rs::backtrace::libunwind::trace
                               at /rustc/library/std/src/../../backtrace/src/backtrace/libunwind.rs:116:5
   1:     0x55d4c0a1b400 - core::panicking::panic_fmt
                               at /rustc/library/core/src/panicking.rs:72:14
   2:     0x55d4c0a1b500 - std::sys::backtrace::__rust_end_short_backtrace
                             - app::fail
                               at ./src/main.rs:4:5
   3:     0x55d4c0a1b600 - app::main
                               at ./src/main.rs:8:5
   4:     0x55d4c0a1b700 - <unresolved>
   5:     0x55d4c0a1b800 - std::sys::backtrace::__rust_begin_short_backtrace
                               at /rustc/library/std/src/sys/backtrace.rs:152:18
   6:     0x55d4c0a1b900 - <unknown>
note: Some details are omitted, run with ` + "`RUST_BACKTRACE=full`" + ` for a verbose backtrace.
`

func names(f backtrace.Frame) []string {
	out := make([]string, len(f.Symbols))
	for i, s := range f.Symbols {
		out[i] = s.Name
	}
	return out
}

func TestParse_Symbolized(t *testing.T) {
	trace, format, err := Parse(fullRustTrace)
	require.NoError(t, err)
	assert.Equal(t, FormatSymbolized, format)
	require.Equal(t, 7, trace.Len())

	assert.Equal(t, uint64(0x55d4c0a1b2c3), trace.Frames[0].IP)
	assert.Equal(t, []string{"std::backtrace_rs::backtrace::libunwind::trace"}, names(trace.Frames[0]))

	inlined := trace.Frames[2]
	assert.Equal(t, []string{"std::sys::backtrace::__rust_end_short_backtrace", "app::fail"}, names(inlined))
	assert.False(t, inlined.Symbols[0].HasLocation())
	assert.Equal(t, "./src/main.rs", inlined.Symbols[1].File)
	assert.Equal(t, 4, inlined.Symbols[1].Line)

	assert.Empty(t, trace.Frames[4].Symbols)
	require.Len(t, trace.Frames[6].Symbols, 1)
	assert.Equal(t, "", trace.Frames[6].Symbols[0].Name)
}

func TestParse_SymbolizedShortFormat(t *testing.T) {
	text := `stack backtrace:
   0: rust_begin_unwind
             at /rustc/library/std/src/panicking.rs:665:5
   1: core::panicking::panic_fmt
   2: app::main
             app::helper
             at ./src/main.rs:2:5
      [... omitted 1 frame ...]
   3: core::ops::function::FnOnce::call_once
`
	trace, _, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, 4, trace.Len())
	assert.Equal(t, []string{"app::main", "app::helper"}, names(trace.Frames[2]))
	assert.Equal(t, 2, trace.Frames[2].Symbols[1].Line)
	assert.Equal(t, 665, trace.Frames[0].Symbols[0].Line)
}

func TestParse_Goroutine(t *testing.T) {
	text := "panic: boom (bad thing)\n\n" +
		"goroutine 1 [running]:\n" +
		"main.(*server).handle(0xc000010000, {0x5, 0x6})\n" +
		"\t/home/u/app/main.go:12 +0x1d\n" +
		"main.main()\n" +
		"\t/home/u/app/main.go:20 +0x25\n" +
		"created by main.start in goroutine 7\n" +
		"\t/home/u/app/main.go:30 +0x45\n" +
		"\n" +
		"goroutine 7 [chan receive]:\n" +
		"main.worker()\n" +
		"\t/home/u/app/worker.go:9 +0x11\n" +
		"exit status 2\n"

	trace, format, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, FormatGo, format)
	require.Equal(t, 3, trace.Len())

	assert.Equal(t, []string{"main.(*server).handle"}, names(trace.Frames[0]))
	assert.Equal(t, "/home/u/app/main.go", trace.Frames[0].Symbols[0].File)
	assert.Equal(t, 12, trace.Frames[0].Symbols[0].Line)
	assert.Equal(t, uint64(0x1d), trace.Frames[0].IP)
	assert.Equal(t, []string{"main.start"}, names(trace.Frames[2]))
}

func TestParse_GoroutineWithoutHeader(t *testing.T) {
	text := "main.a()\n\t/x/main.go:3 +0x1\nmain.main()\n\t/x/main.go:7\n"
	trace, format, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, FormatGo, format)
	require.Equal(t, 2, trace.Len())
	assert.Equal(t, 7, trace.Frames[1].Symbols[0].Line)
}

func TestParse_GoroutineMultilinePanic(t *testing.T) {
	text := `panic: request failed
upstream said no (status 503)
retry budget exhausted (after 3 attempts)

goroutine 1 [running]:
main.handle()
	/x/main.go:12 +0x1d
main.main()
	/x/main.go:20 +0x25

goroutine 7 [chan receive]:
main.worker()
	/x/worker.go:9 +0x40
`
	trace, format, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, FormatGo, format)
	require.Equal(t, 2, trace.Len())
	assert.Equal(t, []string{"main.handle"}, names(trace.Frames[0]))
	assert.Equal(t, uint64(0x1d), trace.Frames[0].IP)
	assert.Equal(t, []string{"main.main"}, names(trace.Frames[1]))
	assert.Equal(t, 20, trace.Frames[1].Symbols[0].Line)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts Options
		want error
	}{
		{
			name: "empty",
			text: "",
			want: ErrUnknownFormat,
		},
		{
			name: "prose",
			text: "nothing to see here\njust words",
			want: ErrUnknownFormat,
		},
		{
			name: "forced format without frames",
			text: "stack backtrace:\n",
			opts: Options{Format: FormatSymbolized},
			want: ErrNoFrames,
		},
		{
			name: "too many bytes",
			text: fullRustTrace,
			opts: Options{MaxBytes: 16},
			want: ErrTooLarge,
		},
		{
			name: "too many frames",
			text: fullRustTrace,
			opts: Options{MaxFrames: 3},
			want: ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trace, _, err := ParseWith(tt.text, tt.opts)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, trace)
		})
	}
}

func TestParse_ThenShorten(t *testing.T) {
	trace, _, err := Parse(fullRustTrace)
	require.NoError(t, err)

	var got []string
	for frame, r := range backtrace.ShortFrames(trace) {
		for _, sym := range frame.Sub(r) {
			got = append(got, sym.Name)
		}
	}
	assert.Equal(t, []string{"app::fail", "app::main"}, got)
}

func TestFormat_Text(t *testing.T) {
	for _, name := range []string{"auto", "symbolized", "go"} {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.String())
	}

	f, err := ParseFormat("rust")
	require.NoError(t, err)
	assert.Equal(t, FormatSymbolized, f)

	_, err = ParseFormat("java")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.True(t, strings.Contains(Format(42).String(), "invalid"))
}
