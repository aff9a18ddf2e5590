package commands

import (
	"fmt"
	"time"

	"dsa-mcp/internal/crm"
	"dsa-mcp/internal/mcp"
	"dsa-mcp/internal/orders"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const dayLayout = "2006-01-02"

var (
	fetchFrom    string
	fetchTo      string
	fetchReplace bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download delivery statistics from the CRM into the order cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.CRM.BaseURL == "" {
			return fmt.Errorf("CRM_URL is not set")
		}
		from, err := time.ParseInLocation(dayLayout, fetchFrom, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --from %q: %w", fetchFrom, err)
		}
		to := time.Now()
		if fetchTo != "" {
			if to, err = time.ParseInLocation(dayLayout, fetchTo, time.Local); err != nil {
				return fmt.Errorf("invalid --to %q: %w", fetchTo, err)
			}
		}

		fetched, err := crm.NewClient(cfg.CRM).FetchOrders(cmd.Context(), from, to)
		if err != nil {
			return err
		}

		store := orders.NewSnapshotStore()
		if !fetchReplace {
			if err := store.Load(cfg.CacheDir, mcp.OrdersSnapshot); err != nil {
				return err
			}
		}
		added := store.Append(mcp.OrdersSnapshot, fetched)
		if err := store.Save(cfg.CacheDir, mcp.OrdersSnapshot); err != nil {
			return err
		}

		log.Info().Int("fetched", len(fetched)).Int("added", added).Msg("Order cache updated")
		fmt.Fprintf(cmd.OutOrStdout(), "fetched %d orders, %d new, %d cached\n",
			len(fetched), added, store.Count(mcp.OrdersSnapshot))
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "first day to fetch (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "last day to fetch (YYYY-MM-DD, default today)")
	fetchCmd.Flags().BoolVar(&fetchReplace, "replace", false, "replace the cache instead of merging")
	_ = fetchCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(fetchCmd)
}
