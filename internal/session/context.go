package session

import (
	"strconv"
	"sync"
	"time"

	"codeberg.org/gruf/go-errors/v2"

	"github.com/yousuf/shortbt-mcp/internal/backtrace"
	"github.com/yousuf/shortbt-mcp/internal/traceparse"
)

var (
	// ErrTraceNotFound is returned for unknown trace ids.
	ErrTraceNotFound = errors.New("trace not found")

	// ErrTooManyTraces is returned when a session is full.
	ErrTooManyTraces = errors.New("too many stored traces")
)

// StoredTrace is a parsed trace kept for later tool calls.
type StoredTrace struct {
	ID     string
	Format traceparse.Format
	Trace  *backtrace.Trace
}

// Context represents a session context with its stored traces
type Context struct {
	SessionID string

	mu           sync.RWMutex
	traces       map[string]*StoredTrace
	order        []string
	nextID       int
	maxTraces    int
	lastAccessed time.Time
}

// NewContext creates a new session context holding up to maxTraces
// traces, 0 for no limit
func NewContext(sessionID string, maxTraces int) *Context {
	return &Context{
		SessionID:    sessionID,
		traces:       make(map[string]*StoredTrace),
		maxTraces:    maxTraces,
		lastAccessed: time.Now(),
	}
}

// UpdateLastAccessed marks the session as used now
func (c *Context) UpdateLastAccessed() {
	c.mu.Lock()
	c.lastAccessed = time.Now()
	c.mu.Unlock()
}

// LastAccessed returns the time of the last UpdateLastAccessed call
func (c *Context) LastAccessed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastAccessed
}

// Store keeps trace and returns its new id. Stored traces must not be
// modified afterwards; they are shared read-only between tool calls.
func (c *Context) Store(trace *backtrace.Trace, format traceparse.Format) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxTraces > 0 && len(c.traces) >= c.maxTraces {
		return "", errors.Wrapf(ErrTooManyTraces, "session %q holds %d", c.SessionID, len(c.traces))
	}

	c.nextID++
	id := "trace-" + strconv.Itoa(c.nextID)
	c.traces[id] = &StoredTrace{ID: id, Format: format, Trace: trace}
	c.order = append(c.order, id)
	return id, nil
}

// Trace returns the stored trace with id
func (c *Context) Trace(id string) (*StoredTrace, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.traces[id]
	if !ok {
		return nil, errors.Wrapf(ErrTraceNotFound, "id %q", id)
	}
	return st, nil
}

// Traces returns all stored traces in insertion order
func (c *Context) Traces() []*StoredTrace {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*StoredTrace, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.traces[id])
	}
	return out
}

// Close drops all stored traces
func (c *Context) Close() {
	c.mu.Lock()
	c.traces = make(map[string]*StoredTrace)
	c.order = nil
	c.mu.Unlock()
}
