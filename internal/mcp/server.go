// Package mcp provides the MCP (Model Context Protocol) server implementation.
//
// It exposes command and agent lookup and command dispatch as tools, so an
// agent can discover and run the same definitions the console serves.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/whichguy/claude-craft/internal/dispatch"
)

// Server wraps the MCP server with console functionality.
type Server struct {
	mcpServer  *mcp.Server
	dispatcher *dispatch.Dispatcher
	version    string
}

// NewServer creates a new MCP server.
//
// Parameters:
//   - d: The dispatcher whose resolver and built-ins back the tools
//   - version: The CLI version string
//
// Returns:
//   - *Server: A new server instance
func NewServer(d *dispatch.Dispatcher, version string) *Server {
	s := &Server{
		dispatcher: d,
		version:    version,
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    "claude-craft",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server over stdio.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Any error that occurred during execution
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_commands",
		Description: "List slash-command definitions across the project, user and shared tiers, including names shadowed by a higher tier.",
	}, s.handleListCommands)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_agents",
		Description: "List agent definitions across the project, user and shared tiers.",
	}, s.handleListAgents)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "resolve_command",
		Description: "Find which file a command or agent name resolves to. Returns the winning tier and path, or every location searched.",
	}, s.handleResolve)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "run_command",
		Description: "Dispatch a console line such as '/deploy staging' or '/status' and return the rendered text.",
	}, s.handleRunCommand)
}
