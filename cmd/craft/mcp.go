package main

import (
	"github.com/spf13/cobra"

	"github.com/whichguy/claude-craft/internal/mcp"
	"github.com/whichguy/claude-craft/internal/ui"
)

// mcpCmd is the parent command for MCP server operations.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server for AI agent integration",
	Long: `Model Context Protocol (MCP) server for AI agent integration.

The server exposes command and agent lookup over stdio:
  list_commands     commands across all stores, with shadowing
  list_agents       agents across all stores, with shadowing
  resolve_command   which store and file a name resolves to
  run_command       dispatch a line and return the rendered output

EXAMPLES:
  craft mcp serve

CLIENT CONFIG:
  {"mcpServers": {"craft": {"command": "craft", "args": ["mcp", "serve"]}}}`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCPServe,
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
}

// runMCPServe starts the MCP server. Logs go to stderr; stdout carries the
// protocol.
func runMCPServe(cmd *cobra.Command, args []string) error {
	ui.SetQuietMode(true)

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	// Blocks until the client disconnects.
	return mcp.NewServer(newDispatcher(cfg), version).Run(cmd.Context())
}
