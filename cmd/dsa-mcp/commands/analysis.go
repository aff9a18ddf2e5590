package commands

import (
	"fmt"

	"dsa-mcp/internal/model"
	"dsa-mcp/internal/stats"

	"github.com/spf13/cobra"
)

var (
	supplier    string
	warehouse   string
	pickupPoint string
	weekday     int
	hour        int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the delivery deviation of a supplier slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if weekday < 1 || weekday > 7 {
			return fmt.Errorf("--weekday must be 1 (Monday) to 7 (Sunday)")
		}
		records, err := loadOrders()
		if err != nil {
			return err
		}

		mc := model.DefaultConfig()
		if cfg.MinSamplesModel > 0 {
			mc.MinSamples = cfg.MinSamplesModel
		}
		p := model.NewPredictor(mc)
		if _, err := p.Fit(records); err != nil {
			return err
		}

		pred, ok, err := p.Predict(model.Query{
			Supplier:    supplier,
			Warehouse:   warehouse,
			PickupPoint: pickupPoint,
			DayOfWeek:   weekday - 1,
			Hour:        hour,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no model or history for %s at %s on that slot", supplier, warehouse)
		}
		return printJSON(cmd, pred)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Break down delivery deviations of a supplier at a warehouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := loadOrders()
		if err != nil {
			return err
		}

		analysis, ok := stats.AnalyzeSupplier(records, supplier, warehouse, pickupPoint, cfg.Recommend().Trend)
		if !ok {
			return fmt.Errorf("no usable orders for %s at %s", supplier, warehouse)
		}
		points := stats.PickupPointStats(records, supplier, warehouse)
		best, worst := stats.BestWorstPickupPoint(points)

		return printJSON(cmd, map[string]any{
			"analysis":      analysis,
			"pickup_points": points,
			"best":          best,
			"worst":         worst,
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{predictCmd, analyzeCmd} {
		c.Flags().StringVar(&supplier, "supplier", "", "supplier name")
		c.Flags().StringVar(&warehouse, "warehouse", "", "warehouse name")
		c.Flags().StringVar(&pickupPoint, "pickup-point", "", "pickup point (default any)")
		_ = c.MarkFlagRequired("supplier")
		_ = c.MarkFlagRequired("warehouse")
		rootCmd.AddCommand(c)
	}
	predictCmd.Flags().IntVar(&weekday, "weekday", 1, "weekday, 1 (Monday) to 7 (Sunday)")
	predictCmd.Flags().IntVar(&hour, "hour", 9, "order hour 0-23")
}
