package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/semlink/semlink/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing vault
similarity tools for AI agents like Claude Code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents()
		if err != nil {
			return err
		}
		defer comps.close()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "semlink MCP server started on stdio (vault=%s, notes indexed=%d)\n",
			comps.cfg.VaultDir, comps.store.Len())

		srv := mcpserver.NewServer(comps.ranker, comps.builder, comps.cfg.TopK)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
