package cmd

import (
	"github.com/spf13/cobra"

	"github.com/clifelab/devpulse/internal/mcpserver"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the devpulse MCP server",
	Long:  `Launch an MCP server over stdio that lets AI agents query the warehouse score reports via standard tools.`,
	// Stdout carries the protocol; everything human-facing stays on stderr.
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		return mcpserver.Serve(cfg, store, version)
	},
}
