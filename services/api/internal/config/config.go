package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the focusd service.
type Config struct {
	Addr               string        `env:"ADDR,default=:3000"`
	DBDSN              string        `env:"DB_DSN,required"`
	JWTSigningKey      string        `env:"JWT_SIGNING_KEY,required"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL,default=24h"`
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE,default=100"`
	NATSURL            string        `env:"NATS_URL"`
	S3Bucket           string        `env:"S3_BUCKET"`
	ExportURLTTL       time.Duration `env:"EXPORT_URL_TTL,default=15m"`
	StatsTimezone      string        `env:"STATS_TIMEZONE,default=UTC"`
	DefaultDailyGoal   int           `env:"DEFAULT_DAILY_GOAL,default=120"`
	AutoMigrate        bool          `env:"AUTO_MIGRATE,default=false"`
	LogLevel           string        `env:"LOG_LEVEL,default=info"`
	LogFormat          string        `env:"LOG_FORMAT,default=console"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith populates a Config from the given lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (c Config) Validate() error {
	if len(c.JWTSigningKey) < 16 {
		return errors.New("JWT_SIGNING_KEY must be at least 16 bytes")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.ExportURLTTL <= 0 {
		return errors.New("EXPORT_URL_TTL must be positive")
	}
	if c.DefaultDailyGoal <= 0 {
		return errors.New("DEFAULT_DAILY_GOAL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves StatsTimezone. The name is handed to Postgres, so it must be an IANA zone.
func (c Config) Location() (*time.Location, error) {
	if c.StatsTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return nil, fmt.Errorf("STATS_TIMEZONE: %w", err)
	}
	if loc.String() == "Local" {
		return nil, errors.New("STATS_TIMEZONE must name an IANA zone, not Local")
	}
	return loc, nil
}
