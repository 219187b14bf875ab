package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pagebuilder/internal/config"
	mcpserver "pagebuilder/internal/mcp"
)

// ServeMCP runs pagebuilder as an MCP server on stdin/stdout until the input
// closes or the process is interrupted. Open sessions are saved on the way
// out.
func ServeMCP(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Startup(ctx); err != nil {
		a.Shutdown(context.Background())
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	srv := mcpserver.New(mcpserver.Deps{
		Pages:   a.Pages(),
		Editors: a.Editors(),
		Logger:  log,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("interrupted, shutting down")
		return nil
	}
}
