package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dsa-mcp/internal/config"
	"dsa-mcp/internal/crm"
	"dsa-mcp/internal/logging"
	"dsa-mcp/internal/mcp"
	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/schedule"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "dsa-mcp",
	Short: "DSA-MCP recommends delivery schedule corrections from CRM order history",
	Long: `An MCP Server that compares promised and actual supplier deliveries from the CRM
and recommends shifting delivery windows where suppliers are systematically late or early.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		mcp.Version = Version
		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("DSA-MCP starting")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openSchedules()
		if store != nil {
			defer store.Close()
		}

		var client crm.Client
		if cfg.CRM.BaseURL != "" {
			client = crm.NewClient(cfg.CRM)
		} else {
			log.Warn().Msg("CRM_URL is not set; refresh_orders is disabled")
		}
		return mcp.NewServer(cfg, client, store).Run(ctx)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// openSchedules opens the schedule database. Failures are logged and yield nil,
// which makes recommendations fall back to hourly grouping.
func openSchedules() *schedule.Store {
	store, err := schedule.OpenStore(cfg.ScheduleDB)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.ScheduleDB).Msg("Failed to open schedule database")
		return nil
	}
	return store
}

// loadOrders reads the order cache written by fetch or the refresh_orders tool.
func loadOrders() ([]orders.Record, error) {
	store := orders.NewSnapshotStore()
	if err := store.Load(cfg.CacheDir, mcp.OrdersSnapshot); err != nil {
		return nil, err
	}
	records := store.Records(mcp.OrdersSnapshot)
	if len(records) == 0 {
		return nil, fmt.Errorf("order cache is empty, run fetch first")
	}
	return records, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
