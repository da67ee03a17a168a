package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"focusd/services/api/internal/activity"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume domain events into the activity feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.cfg.NATSURL == "" {
				return errors.New("NATS_URL is required for the worker")
			}
			b, err := connectBus(rt.cfg.NATSURL)
			if err != nil {
				return err
			}
			defer b.Close()

			sink, err := activity.NewPGSink(rt.pool)
			if err != nil {
				return err
			}
			ingestor, err := activity.NewIngestor(b, sink, rt.logger)
			if err != nil {
				return err
			}
			if err := ingestor.Start(ctx); err != nil {
				return fmt.Errorf("start ingestor: %w", err)
			}
			rt.logger.Info().Msg("activity worker running")

			<-ctx.Done()
			if err := ingestor.Close(); err != nil {
				rt.logger.Error().Err(err).Msg("close ingestor")
			}
			return nil
		},
	}
}
