package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"focusd/pkg/bus"
	"focusd/pkg/db"
	"focusd/pkg/render"
	gos3 "focusd/pkg/s3"
	"focusd/pkg/telemetry"
	"focusd/services/api/internal/activity"
	"focusd/services/api/internal/auth"
	"focusd/services/api/internal/export"
	"focusd/services/api/internal/focusmodes"
	"focusd/services/api/internal/handlers"
	"focusd/services/api/internal/sessions"
	"focusd/services/api/internal/settings"
	"focusd/services/api/internal/stats"
	"focusd/services/api/internal/tasks"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	shutdownTelemetry, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	var publisher sessions.Publisher
	if cfg.NATSURL != "" {
		b, err := connectBus(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer b.Close()
		publisher = b
	} else {
		logger.Warn().Msg("NATS_URL not set; domain events are disabled")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokens(cfg.JWTSigningKey, cfg.AccessTokenTTL)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(rt.orm, tokens, logger)
	if err != nil {
		return err
	}
	taskSvc, err := tasks.NewService(rt.orm, logger)
	if err != nil {
		return err
	}
	sessionSvc, err := sessions.NewService(rt.orm, publisher, logger)
	if err != nil {
		return err
	}
	settingsSvc, err := settings.NewService(rt.orm)
	if err != nil {
		return err
	}
	modeSvc, err := focusmodes.NewService(rt.orm)
	if err != nil {
		return err
	}

	store, err := stats.NewPGStore(rt.pool)
	if err != nil {
		return err
	}
	engine, err := render.New()
	if err != nil {
		return err
	}
	statsSvc, err := stats.NewService(stats.Options{
		Store:       store,
		Goals:       settingsSvc,
		Renderer:    engine,
		Location:    loc,
		DefaultGoal: cfg.DefaultDailyGoal,
	})
	if err != nil {
		return err
	}

	exportOpts := export.Options{
		Users:      authSvc,
		Settings:   settingsSvc,
		Tasks:      taskSvc,
		Sessions:   sessionSvc,
		FocusModes: modeSvc,
		URLTTL:     cfg.ExportURLTTL,
		Logger:     logger,
	}
	if cfg.S3Bucket != "" {
		client, err := gos3.NewClientFromEnv(ctx)
		if err != nil {
			return fmt.Errorf("init s3: %w", err)
		}
		exportOpts.Store = client
		exportOpts.Bucket = cfg.S3Bucket
	} else {
		logger.Warn().Msg("S3_BUCKET not set; exports are disabled")
	}
	exportSvc, err := export.NewService(exportOpts)
	if err != nil {
		return err
	}

	feed, err := activity.NewFeed(rt.orm)
	if err != nil {
		return err
	}

	api, err := handlers.New(handlers.Options{
		Auth:       authSvc,
		Tasks:      taskSvc,
		Sessions:   sessionSvc,
		Settings:   settingsSvc,
		FocusModes: modeSvc,
		Stats:      statsSvc,
		Exports:    exportSvc,
		Activity:   feed,
		Ready: func(ctx context.Context) error {
			return db.Ping(ctx, rt.pool)
		},
		Logger:             logger,
		ServiceName:        serviceName,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		return err
	}
	router, err := api.Routes()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting focusd api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	return nil
}

func connectBus(url string) (*bus.Bus, error) {
	b, err := bus.New(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if err := b.EnsureStream(activity.StreamName, sessions.SessionRecordedSubject, sessions.TaskCompletedSubject); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}
