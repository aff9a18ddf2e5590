package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var historyPickupPoint string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the delivery schedule database",
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a CRM schedule export (JSON)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openSchedules()
		if store == nil {
			return fmt.Errorf("schedule database %s is not available", cfg.ScheduleDB)
		}
		defer store.Close()

		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		parsed, changed, err := store.ImportCRM(cmd.Context(), file)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d windows, %d changed\n", parsed, changed)
		return nil
	},
}

var scheduleHistoryCmd = &cobra.Command{
	Use:   "history <warehouse>",
	Short: "Show recorded schedule changes of a warehouse",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openSchedules()
		if store == nil {
			return fmt.Errorf("schedule database %s is not available", cfg.ScheduleDB)
		}
		defer store.Close()

		history, err := store.History(cmd.Context(), args[0], historyPickupPoint)
		if err != nil {
			return err
		}
		return printJSON(cmd, history)
	},
}

func init() {
	scheduleHistoryCmd.Flags().StringVar(&historyPickupPoint, "pickup-point", "", "only this pickup point")
	scheduleCmd.AddCommand(scheduleImportCmd, scheduleHistoryCmd)
	rootCmd.AddCommand(scheduleCmd)
}
