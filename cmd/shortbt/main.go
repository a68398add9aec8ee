package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/yousuf/shortbt-mcp/internal/config"
	"github.com/yousuf/shortbt-mcp/internal/report"
	"github.com/yousuf/shortbt-mcp/internal/traceparse"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("shortbt", flag.ContinueOnError)
	configPath := fs.String("config", config.PathFromEnv(), "Path to config file")
	formatName := fs.String("format", "auto", "Trace format: auto, symbolized or go")
	full := fs.Bool("full", false, "Print every frame instead of the short region")
	indent := fs.Bool("indent", false, "Indent JSON output")
	verbose := fs.Bool("verbose", false, "Log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: shortbt [flags] [trace-file]\n\nReads a trace from trace-file or stdin and prints its short region as JSON.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("expected at most one trace file, got %d", fs.NArg())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w\n\nHint: Specify a config file with -config flag or "+config.PathEnv+" env var", err)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	logger := cfg.Log.NewLogger()

	format, err := traceparse.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	input := stdin
	source := "stdin"
	if fs.NArg() == 1 {
		source = fs.Arg(0)
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("failed to open trace: %w", err)
		}
		defer f.Close()
		input = f
	}

	var r io.Reader = input
	if limit := cfg.Limits.MaxTraceBytes; limit > 0 {
		// One extra byte lets the parser see the limit was exceeded.
		r = io.LimitReader(input, int64(limit)+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	logger.Debug("read trace", "source", source, "bytes", len(data))

	trace, format, err := traceparse.ParseWith(string(data), traceparse.Options{
		Format:    format,
		MaxBytes:  cfg.Limits.MaxTraceBytes,
		MaxFrames: cfg.Limits.MaxFrames,
	})
	if err != nil {
		return fmt.Errorf("failed to parse trace from %s: %w", source, err)
	}
	logger.Debug("parsed trace", "format", format, "frames", trace.Len())

	var rep report.Report
	if *full {
		rep = report.Full(trace)
	} else {
		rep = report.Build(trace, cfg.BacktraceMarkers())
	}
	logger.Debug("resolved short region",
		"frames", len(rep.Frames),
		"startClamped", rep.StartClamped,
		"endClamped", rep.EndClamped,
	)

	enc := json.NewEncoder(stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(rep)
}
