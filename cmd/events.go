/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jjudge-oj/palette/config"
	"github.com/jjudge-oj/palette/internal/mq"
	"github.com/jjudge-oj/palette/types"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect palette events on the configured broker",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log upload events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := mq.Connect(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if client == nil {
			return errors.New("no mq backend configured, set MQ_BACKEND")
		}
		defer client.Close()

		log.Info("tailing events", slog.String("channel", cfg.MQ.Channel), slog.String("backend", cfg.MQ.Backend))
		err = client.Subscribe(ctx, cfg.MQ.Channel, func(ctx context.Context, msg mq.Message) error {
			var event types.ItemUploadedEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				// Not ours; ack and move on.
				log.Warn("skipping undecodable message", slog.String("id", msg.ID), slog.Any("error", err))
				return nil
			}
			log.Info("item uploaded",
				slog.String("id", msg.ID),
				slog.String("item_id", event.ItemID.String()),
				slog.String("owner_id", event.OwnerID.String()),
				slog.String("name", event.Name),
				slog.String("image_url", event.ImageURL),
				slog.Int64("size", event.Size),
				slog.Time("uploaded_at", event.UploadedAt),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
