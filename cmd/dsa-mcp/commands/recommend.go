package commands

import (
	"fmt"

	"dsa-mcp/internal/export"
	"dsa-mcp/internal/recommend"
	"dsa-mcp/internal/schedule"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	recSupplier      string
	recWarehouse     string
	recMinConfidence float64
	recExport        string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Generate schedule recommendations from the order cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := loadOrders()
		if err != nil {
			return err
		}

		var ix *schedule.Index
		if schedules := openSchedules(); schedules != nil {
			windows, err := schedules.Windows(cmd.Context(), "")
			schedules.Close()
			if err != nil {
				return err
			}
			if built := schedule.NewIndex(windows); built.Len() > 0 {
				ix = built
			}
		}
		if ix == nil {
			log.Warn().Msg("No schedule windows; orders are grouped by order hour")
		}

		report := recommend.NewGenerator(cfg.Recommend()).GenerateFromRecords(records, ix)
		recs := recommend.Filter(report.Recommendations, recSupplier, recWarehouse, recMinConfidence)

		if recExport != "" {
			if err := export.SaveRecommendations(recExport, recs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d recommendations to %s\n", len(recs), recExport)
			return nil
		}

		return printJSON(cmd, recs)
	},
}

func init() {
	recommendCmd.Flags().StringVar(&recSupplier, "supplier", "", "only this supplier")
	recommendCmd.Flags().StringVar(&recWarehouse, "warehouse", "", "only this warehouse")
	recommendCmd.Flags().Float64Var(&recMinConfidence, "min-confidence", 0, "drop recommendations below this confidence")
	recommendCmd.Flags().StringVar(&recExport, "export", "", "write an Excel report to this path instead of printing JSON")
	rootCmd.AddCommand(recommendCmd)
}
