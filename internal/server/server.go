// Package server exposes the workflow to agents and operators as MCP tools.
package server

import (
	"context"
	"fmt"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/scheduler"
	"github.com/mj1618/vbs-autopilot/internal/version"
	"go.uber.org/zap"
)

// Workflow is the part of the orchestrator the tools drive.
type Workflow interface {
	Abort()
	Last() (model.WorkflowResult, bool)
}

// Config wires a Server.
type Config struct {
	Windows  platform.WindowSystem
	Locator  *locator.Locator
	Criteria locator.Criteria
	Profile  *model.CoordinateProfile
	// Requirements are the profile targets every phase needs.
	Requirements []string

	Workflow Workflow
	Slot     *scheduler.Slot
	// Run performs one run for the given business date.
	Run func(ctx context.Context, date time.Time) model.WorkflowResult
	Now func() time.Time

	Log *zap.Logger
}

// Server wraps the MCP server and the collaborators its tools use.
type Server struct {
	cfg Config
	log *zap.Logger
	mcp *mcpserver.MCPServer
}

func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{
		cfg: cfg,
		log: cfg.Log.Named("mcp"),
		mcp: mcpserver.NewMCPServer("vbs-autopilot", version.Version),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server, e.g. for in-process clients.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Serve starts the server with the given transport and blocks.
func (s *Server) Serve(transport, addr string) error {
	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		s.log.Info("listening", zap.String("addr", addr))
		return mcpserver.NewStreamableHTTPServer(s.mcp).Start(addr)
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", transport)
	}
}
