package main

import (
	"github.com/spf13/cobra"

	relaymcp "github.com/DevRickLin/feishu-relay/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the relay's operational tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if apiURL == "" {
				apiURL = cfg.API.BaseURL()
			}
			logger.Info("mcp server starting", "api", apiURL)
			return relaymcp.NewServer(relaymcp.NewClient(apiURL), version).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "", "relay API base URL (default: local API_PORT)")
	return cmd
}
