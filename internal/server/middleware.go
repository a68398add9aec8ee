package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yousuf/shortbt-mcp/internal/session"
)

// contextKey is the type of context keys set by this package
type contextKey string

const sessionContextKey contextKey = "session"

// getSessionFromContext retrieves the session context from the request context.
func getSessionFromContext(ctx context.Context) (*session.Context, error) {
	sessionCtx, ok := ctx.Value(sessionContextKey).(*session.Context)
	if !ok || sessionCtx == nil {
		return nil, fmt.Errorf("session context not found in request context")
	}
	return sessionCtx, nil
}

// createSessionInjectionMiddleware creates middleware that attaches the
// caller's session context to every request.
func createSessionInjectionMiddleware(sessionMgr *session.Manager) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(
			ctx context.Context,
			method string,
			req mcp.Request,
		) (mcp.Result, error) {
			sessionCtx := sessionMgr.GetOrCreateSession(req.GetSession().ID())
			sessionCtx.UpdateLastAccessed()

			ctx = context.WithValue(ctx, sessionContextKey, sessionCtx)
			return next(ctx, method, req)
		}
	}
}

// createLoggingMiddleware creates middleware that logs all MCP method calls
func createLoggingMiddleware(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(
			ctx context.Context,
			method string,
			req mcp.Request,
		) (mcp.Result, error) {
			start := time.Now()
			sessionID := req.GetSession().ID()

			logger.DebugContext(ctx, "request", "session", sessionID, "method", method)

			result, err := next(ctx, method, req)

			attrs := []any{
				"session", sessionID,
				"method", method,
				"duration", time.Since(start),
			}
			if res, ok := result.(*mcp.CallToolResult); ok && res.IsError {
				attrs = append(attrs, "toolError", true)
			}
			if err != nil {
				logger.WarnContext(ctx, "response", append(attrs, "error", err)...)
			} else {
				logger.InfoContext(ctx, "response", attrs...)
			}

			return result, err
		}
	}
}
