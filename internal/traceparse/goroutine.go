package traceparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yousuf/shortbt-mcp/internal/backtrace"
)

var (
	// "goroutine 1 [running]:"
	goroutineRe = regexp.MustCompile(`^goroutine \d+ (?:gp=\S+ m=\S+ (?:mp=\S+ )?)?\[.*\]:\s*$`)
	// "main.(*Server).handle(0xc000010000, {0x5, 0x6})"
	goFuncRe = regexp.MustCompile(`^(\S.*)\(([^()]*)\)\s*$`)
	// "created by main.start in goroutine 1"
	goCreatedRe = regexp.MustCompile(`^created by (\S+)`)
	// "\t/home/u/app/main.go:12 +0x1d"
	goLocationRe = regexp.MustCompile(`^\t(.+?):(\d+)(?: \+0x([0-9a-fA-F]+))?\s*$`)
)

// goParser handles goroutine dumps. Go prints one function per frame,
// inlined calls included, so each frame holds exactly one symbol. Only
// the first goroutine is read.
type goParser struct {
	inGoroutine bool
}

func (p *goParser) parseLine(trace *backtrace.Trace, line string) bool {
	if goroutineRe.MatchString(line) {
		if p.inGoroutine {
			return false
		}
		// Anything before the first header is the panic message, which
		// may span lines that look like calls.
		trace.Frames = trace.Frames[:0]
		p.inGoroutine = true
		return true
	}

	if m := goLocationRe.FindStringSubmatch(line); m != nil {
		if n := len(trace.Frames); n > 0 {
			frame := &trace.Frames[n-1]
			lineNum, _ := strconv.Atoi(m[2])
			frame.Symbols[0].File = m[1]
			frame.Symbols[0].Line = lineNum
			if m[3] != "" {
				frame.IP, _ = strconv.ParseUint(m[3], 16, 64)
			}
		}
		return true
	}

	if strings.HasPrefix(line, "\t") || strings.TrimSpace(line) == "" {
		return true
	}

	if m := goCreatedRe.FindStringSubmatch(line); m != nil {
		trace.Frames = append(trace.Frames, goFrame(m[1]))
		return true
	}

	if m := goFuncRe.FindStringSubmatch(line); m != nil {
		// The panic message precedes the goroutine header.
		if !p.inGoroutine && strings.HasPrefix(line, "panic: ") {
			return true
		}
		trace.Frames = append(trace.Frames, goFrame(m[1]))
	}
	return true
}

func goFrame(name string) backtrace.Frame {
	return backtrace.Frame{
		Symbols: []backtrace.Symbol{{Name: name}},
	}
}
