// Package mcp exposes the sketch actions as Model Context Protocol tools so that
// editors and agents without a dedicated extension can drive the daemon.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/sketchforge/internal/service"
)

// ServerConfig holds the identity the server announces to clients.
type ServerConfig struct {
	Name    string
	Version string
}

// ServerDeps are the services behind the tools. A nil dependency makes its
// tools answer with an error result.
type ServerDeps struct {
	Orchestrator *service.Orchestrator
	Provisioner  *service.Provisioner
	Scaffolder   *service.Scaffolder
}

// Server wraps an mcp-go server with the sketch tools and resources registered.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
}

// NewServer creates a server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.mcpServer = mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// ServeStdio serves the protocol on in/out until ctx is canceled or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))

	slog.Info("mcp server listening on stdio", "name", s.cfg.Name, "version", s.cfg.Version)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

// HTTPHandler returns a streamable HTTP transport for mounting on the control API.
func (s *Server) HTTPHandler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}
