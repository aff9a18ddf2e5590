package commands

import (
	"fmt"

	"dsa-mcp/internal/crm"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

var openOrderCmd = &cobra.Command{
	Use:   "open-order <order-id>",
	Short: "Open an order card in the CRM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.CRM.BaseURL == "" {
			return fmt.Errorf("CRM_URL is not set")
		}
		return browser.OpenURL(crm.OrderURL(cfg.CRM.BaseURL, args[0]))
	},
}

func init() {
	rootCmd.AddCommand(openOrderCmd)
}
