package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/liveintake/intake/internal/domain/staff"
	"github.com/liveintake/intake/internal/platform/realtime"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the intake channel from a staff console",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			channel, _ := cmd.Flags().GetString("channel")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, url, channel)
		},
	}
	cmd.Flags().String("url", "ws://localhost:8000/realtime/ws", "realtime WebSocket endpoint")
	cmd.Flags().String("channel", "patient-form", "channel to follow")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, url, channel string) error {
	logger := newLogger(cmd.ErrOrStderr(), "development", "info")

	remote, err := realtime.Dial(ctx, url, channel)
	if err != nil {
		return err
	}
	defer remote.Close()
	logger.Info().Str("url", url).Str("channel", channel).Msg("watching")

	agg := staff.NewAggregator(logger, staff.WithNotify(func(e staff.Entry) {
		name := strings.TrimSpace(e.Data["firstName"] + " " + e.Data["lastName"])
		logger.Info().
			Str("patient_id", e.PatientID).
			Str("status", e.Indicator).
			Str("name", name).
			Str("phone", e.Data["phone"]).
			Msg("patient")
	}))

	err = remote.Listen(ctx, agg.HandleEnvelope)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
