package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentic-research/scaffold/internal/mcpserver"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the " + mcpserver.ToolName + " tool over stdio (Model Context Protocol)",
		Args:  cobra.NoArgs,
		RunE: c.run(func(_ context.Context, a *app) error {
			a.log.Info("Serving " + mcpserver.ToolName + " on stdio")
			return mcpserver.New(Version, a.engineAt).ServeStdio()
		}),
	}
}
