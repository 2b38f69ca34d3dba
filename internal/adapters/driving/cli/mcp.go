package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driving/mcp"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

While serving, connectivity is monitored and pending progress is replayed
when the backend becomes reachable. A study session still open when the
server stops is recorded.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default, for Claude Desktop)
  swm mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  swm mcp serve --port 8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "swm": {
        "command": "/path/to/swm",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Downloads: downloadCoordinator,
		Sync:      syncAgent,
		Network:   networkMonitor,
		Progress:  progressRecorder,
		Tracker:   learningTracker,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if learningTracker != nil {
		defer func() {
			if _, err := learningTracker.Stop(context.WithoutCancel(ctx)); err != nil {
				logger.Error("recording open study session: %v", err)
			}
		}()
	}

	if application != nil {
		application.Sync.Start(ctx)
		defer application.Sync.Stop()
		go func() {
			if err := application.WatchNetwork(ctx); err != nil && ctx.Err() == nil {
				logger.Error("network monitor stopped: %v", err)
			}
		}()
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
