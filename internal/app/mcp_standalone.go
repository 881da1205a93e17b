package app

import (
	"context"
	"fmt"

	mcpserver "github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/mcp"
)

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects
// or ctx is cancelled. The import watcher runs alongside when enabled.
func (a *App) ServeMCP(ctx context.Context, version string) error {
	srv := mcpserver.New(mcpserver.Deps{
		Emitter:   a.Events,
		Canvas:    a.Canvas,
		Templates: a.Templates,
		Uploader:  a.Uploader,
		Version:   version,
	})
	a.Events.Attach(srv.Notifier())

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("start import watcher: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
