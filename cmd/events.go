/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bibliotheque/apiserver/config"
	"github.com/bibliotheque/apiserver/internal/mq"
	"github.com/bibliotheque/apiserver/types"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect loan events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the loan events channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg.LogLevel)

		channel, _ := cmd.Flags().GetString("channel")
		if channel == "" {
			channel = cfg.MQ.LoanEventsChannel
		}

		queue, err := openQueue(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer queue.Close()

		logger.Info("tailing loan events", slog.String("backend", queue.Name()), slog.String("channel", channel))
		err = queue.Subscribe(cmd.Context(), channel, logEvent(logger))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
	eventsTailCmd.Flags().String("channel", "", "channel to subscribe to (default MQ_LOAN_EVENTS_CHANNEL)")
}

// logEvent acknowledges every message; undecodable payloads are logged raw.
func logEvent(logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		var event types.LoanEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Warn("undecodable loan event", slog.String("message_id", msg.ID), slog.String("data", string(msg.Data)))
			return nil
		}
		logger.Info("loan event",
			slog.String("message_id", msg.ID),
			slog.String("type", string(event.Type)),
			slog.Int("loan_id", event.LoanID),
			slog.Int("user_id", event.UserID),
			slog.Int("book_id", event.BookID),
			slog.Time("due_at", event.DueAt),
			slog.Int("days_overdue", event.DaysOverdue),
		)
		return nil
	}
}
