package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yousuf/shortbt-mcp/internal/config"
	"github.com/yousuf/shortbt-mcp/internal/server"
	"github.com/yousuf/shortbt-mcp/internal/session"
)

func main() {
	// Config file is optional, defaults serve on :3000
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	logger.Info("loaded configuration",
		"addr", cfg.Server.Addr,
		"endMarker", cfg.Markers.End,
		"beginMarker", cfg.Markers.Begin,
	)

	sessionMgr := session.NewManager(cfg.Limits.MaxTraces)
	mcpServer := server.NewMCPServer(sessionMgr, cfg, logger)

	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, &mcp.StreamableHTTPOptions{
		Logger:         logger,
		SessionTimeout: cfg.Server.SessionTTL.Std(),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	go func() {
		logger.Info("shortbt MCP server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Expire idle sessions together with their stored traces
	sweepDone := make(chan struct{})
	go func() {
		ttl := cfg.Server.SessionTTL.Std()
		if ttl <= 0 {
			return
		}
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := sessionMgr.Sweep(ttl); n > 0 {
					logger.Debug("expired idle sessions", "count", n)
				}
			case <-sweepDone:
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	close(sweepDone)

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	sessionMgr.CloseAll()

	logger.Info("server stopped")
}
