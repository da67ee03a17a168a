package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"focusd/pkg/db"
	"focusd/pkg/telemetry"
	"focusd/services/api/internal/config"
	"focusd/services/api/internal/models"
)

const serviceName = "focusd"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Pomodoro tracking backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newWorkerCommand())
	return cmd
}

// app holds what every subcommand needs: config, logger and database handles.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	orm    *gorm.DB
}

func setup(ctx context.Context) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With().Str("service", serviceName).Str("version", version).Logger()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	orm, err := db.OpenORM(pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open orm: %w", err)
	}

	if cfg.AutoMigrate {
		if err := models.AutoMigrate(ctx, orm); err != nil {
			_ = db.CloseORM(orm)
			pool.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info().Msg("schema auto-migrated")
	}

	return &app{cfg: cfg, logger: logger, pool: pool, orm: orm}, nil
}

func (rt *app) close() {
	if err := db.CloseORM(rt.orm); err != nil {
		rt.logger.Error().Err(err).Msg("close orm")
	}
	rt.pool.Close()
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := db.Migrate(ctx, rt.pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			rt.logger.Info().Msg("migrations applied")
			return nil
		},
	}
}
