// Package mcp exposes the reactor to agents as MCP (Model Context Protocol)
// tools.
package mcp

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MRamiBalles/reactor-sim/internal/engine"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
)

// Server wraps the MCP SDK server around a reactor driver.
type Server struct {
	server *sdk.Server
	driver *engine.Driver
	logger *logger.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "reactord")
	Version string // Server version
}

// NewServer creates an MCP server with the reactor tools registered.
func NewServer(cfg *Config, driver *engine.Driver, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server: mcpServer,
		driver: driver,
		logger: log,
	}
	s.registerTools()
	return s
}

// Run serves over stdio. It blocks until the client disconnects, the
// context is cancelled or the process is interrupted.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}
