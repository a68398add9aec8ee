package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yousuf/shortbt-mcp/internal/backtrace"
	"github.com/yousuf/shortbt-mcp/internal/config"
	"github.com/yousuf/shortbt-mcp/internal/report"
	"github.com/yousuf/shortbt-mcp/internal/session"
	"github.com/yousuf/shortbt-mcp/internal/traceparse"
)

// Version is reported to MCP clients
const Version = "1.0.0"

// ParseTraceArgs represents the arguments for the parse_trace tool
type ParseTraceArgs struct {
	Trace  string `json:"trace" jsonschema:"Stack trace text exactly as printed by the program"`
	Format string `json:"format,omitempty" jsonschema:"Trace format: auto (default), symbolized or go"`
}

// ParseTraceResult is the output of the parse_trace tool
type ParseTraceResult struct {
	TraceID string `json:"traceId" jsonschema:"Id to pass to short_trace"`
	Format  string `json:"format" jsonschema:"Format the trace was parsed as"`
	Frames  int    `json:"frames" jsonschema:"Number of frames in the trace"`
	Symbols int    `json:"symbols" jsonschema:"Number of symbols across all frames"`
}

// ShortTraceArgs represents the arguments for the short_trace tool
type ShortTraceArgs struct {
	Trace   string `json:"trace,omitempty" jsonschema:"Stack trace text. Either trace or traceId is required."`
	TraceID string `json:"traceId,omitempty" jsonschema:"Id returned by parse_trace"`
	Format  string `json:"format,omitempty" jsonschema:"Trace format when trace is given: auto (default), symbolized or go"`
	Full    bool   `json:"full,omitempty" jsonschema:"Return every frame instead of the short region"`
}

// ShortTraceResult is the output of the short_trace tool
type ShortTraceResult struct {
	TraceID string        `json:"traceId,omitempty" jsonschema:"Id of the stored trace, when one was used"`
	Format  string        `json:"format" jsonschema:"Format the trace was parsed as"`
	Report  report.Report `json:"report" jsonschema:"Frames of the short backtrace region"`
}

// ListTracesArgs represents the arguments for the list_traces tool
type ListTracesArgs struct{}

// TraceInfo describes one stored trace
type TraceInfo struct {
	TraceID string `json:"traceId"`
	Format  string `json:"format"`
	Frames  int    `json:"frames"`
}

// ListTracesResult is the output of the list_traces tool
type ListTracesResult struct {
	Traces []TraceInfo `json:"traces" jsonschema:"Traces stored in this session, oldest first"`
}

// handlers holds what the tool handlers share
type handlers struct {
	markers backtrace.Markers
	limits  config.LimitsConfig
}

// NewMCPServer creates and configures the MCP server
func NewMCPServer(sessionMgr *session.Manager, cfg *config.Config, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "shortbt-mcp",
		Version: Version,
	}, &mcp.ServerOptions{
		Instructions: `
Short backtraces for captured stack traces.

Paste a symbolized stack trace (Rust "stack backtrace:" listings or Go
goroutine dumps) and get back only the frames between the
rust_end_short_backtrace and rust_begin_short_backtrace markers, i.e.
the program's own frames without start-up and panic machinery.

Available Tools:
1. "parse_trace" - Parse and store a trace in this session, returns its id
2. "short_trace" - Short region of a stored (traceId) or inline (trace) trace
3. "list_traces" - Traces stored in this session

Each returned frame carries symbolStart/symbolEnd: frames that had program
code inlined together with a marker only keep the symbols inside that range.
When the markers are missing, or found in the wrong order, the full trace is
returned and startClamped/endClamped tell which side was cut.
`,
	})

	server.AddReceivingMiddleware(createSessionInjectionMiddleware(sessionMgr))
	server.AddReceivingMiddleware(createLoggingMiddleware(logger))

	h := &handlers{
		markers: cfg.BacktraceMarkers(),
		limits:  cfg.Limits,
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_trace",
		Description: "Parse stack trace text and store it in the session. Returns an id for short_trace.",
	}, h.parseTrace)

	mcp.AddTool(server, &mcp.Tool{
		Name: "short_trace",
		Description: `Return the short backtrace region of a trace.

Pass either "trace" (text) or "traceId" (from parse_trace).
Frames are returned in trace order, newest first.`,
	}, h.shortTrace)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_traces",
		Description: "List the traces stored in this session.",
	}, h.listTraces)

	return server
}

func (h *handlers) parse(text, format string) (*backtrace.Trace, traceparse.Format, error) {
	f, err := traceparse.ParseFormat(format)
	if err != nil {
		return nil, f, err
	}
	trace, f, err := traceparse.ParseWith(text, traceparse.Options{
		Format:    f,
		MaxBytes:  h.limits.MaxTraceBytes,
		MaxFrames: h.limits.MaxFrames,
	})
	if err != nil {
		return nil, f, fmt.Errorf("failed to parse trace: %w", err)
	}
	return trace, f, nil
}

func (h *handlers) parseTrace(ctx context.Context, req *mcp.CallToolRequest, args ParseTraceArgs) (*mcp.CallToolResult, ParseTraceResult, error) {
	sessionCtx, err := getSessionFromContext(ctx)
	if err != nil {
		return nil, ParseTraceResult{}, err
	}

	trace, format, err := h.parse(args.Trace, args.Format)
	if err != nil {
		return nil, ParseTraceResult{}, err
	}

	id, err := sessionCtx.Store(trace, format)
	if err != nil {
		return nil, ParseTraceResult{}, fmt.Errorf("failed to store trace: %w", err)
	}

	return nil, ParseTraceResult{
		TraceID: id,
		Format:  format.String(),
		Frames:  trace.Len(),
		Symbols: trace.SymbolCount(),
	}, nil
}

func (h *handlers) shortTrace(ctx context.Context, req *mcp.CallToolRequest, args ShortTraceArgs) (*mcp.CallToolResult, ShortTraceResult, error) {
	var (
		trace  *backtrace.Trace
		format traceparse.Format
		out    ShortTraceResult
	)

	switch {
	case args.Trace != "" && args.TraceID != "":
		return nil, out, fmt.Errorf("pass either trace or traceId, not both")

	case args.TraceID != "":
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, out, err
		}
		st, err := sessionCtx.Trace(args.TraceID)
		if err != nil {
			return nil, out, err
		}
		trace, format = st.Trace, st.Format
		out.TraceID = st.ID

	case args.Trace != "":
		var err error
		trace, format, err = h.parse(args.Trace, args.Format)
		if err != nil {
			return nil, out, err
		}

	default:
		return nil, out, fmt.Errorf("one of trace or traceId is required")
	}

	out.Format = format.String()
	if args.Full {
		out.Report = report.Full(trace)
	} else {
		out.Report = report.Build(trace, h.markers)
	}
	return nil, out, nil
}

func (h *handlers) listTraces(ctx context.Context, req *mcp.CallToolRequest, args ListTracesArgs) (*mcp.CallToolResult, ListTracesResult, error) {
	sessionCtx, err := getSessionFromContext(ctx)
	if err != nil {
		return nil, ListTracesResult{}, err
	}

	stored := sessionCtx.Traces()
	out := ListTracesResult{Traces: make([]TraceInfo, 0, len(stored))}
	for _, st := range stored {
		out.Traces = append(out.Traces, TraceInfo{
			TraceID: st.ID,
			Format:  st.Format.String(),
			Frames:  st.Trace.Len(),
		})
	}
	return nil, out, nil
}
