/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bibliotheque/apiserver/config"
	"github.com/bibliotheque/apiserver/internal/services"
)

// remindersCmd represents the reminders command
var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Publish a reminder event for every overdue loan",
	Long: `Scans open loans past their due date and publishes one loan.overdue
event per loan on REMINDER_CHANNEL. Runs once, or every --interval. Usage:

	biblio reminders
	biblio reminders --interval 24h
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg.LogLevel)
		ctx := cmd.Context()

		interval, err := reminderInterval(cmd, cfg.Reminders.Interval)
		if err != nil {
			return err
		}

		loans, conn, err := openLoans(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		queue, err := openQueue(ctx, cfg)
		if err != nil {
			return err
		}
		defer queue.Close()

		reminders, err := services.NewReminderService(loans,
			services.WithLogger(logger),
			services.WithEvents(queue, cfg.Reminders.Channel),
		)
		if err != nil {
			return err
		}

		if interval == 0 {
			_, err := reminders.RunOnce(ctx)
			return err
		}
		return reminders.Run(ctx, interval)
	},
}

// reminderInterval prefers an explicit --interval over REMINDER_INTERVAL.
func reminderInterval(cmd *cobra.Command, configured time.Duration) (time.Duration, error) {
	if !cmd.Flags().Changed("interval") {
		return configured, nil
	}
	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return 0, err
	}
	if interval < 0 {
		return 0, fmt.Errorf("--interval must not be negative, got %s", interval)
	}
	return interval, nil
}

func init() {
	rootCmd.AddCommand(remindersCmd)
	remindersCmd.Flags().Duration("interval", 0, "repeat the scan at this interval (0 runs once)")
}
