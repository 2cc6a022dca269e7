package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	DBConn   string `env:"DB_CONN" envDefault:"host=localhost port=5436 user=test password=test dbname=finclass sslmode=disable"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"secret"`

	// Timezone is the single zone all due dates are computed in.
	Timezone string `env:"TIMEZONE" envDefault:"Europe/Moscow"`

	// CatchupFallback bounds the replay window when no shutdown record
	// exists (abrupt termination). Sized to cover realistic outages.
	CatchupFallback time.Duration `env:"CATCHUP_FALLBACK" envDefault:"72h"`

	// SweepSpec is the cron spec for the periodic catch-up safety sweep.
	SweepSpec string `env:"CATCHUP_SWEEP_CRON" envDefault:"5 0 * * *"`

	CBRURL         string  `env:"CBR_URL" envDefault:"https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx"`
	DefaultKeyRate float64 `env:"DEFAULT_KEY_RATE" envDefault:"8.0"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SenderEmail  string `env:"SENDER_EMAIL"`
}

// NewConfig loads configuration from the environment, with an optional .env file.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.CatchupFallback <= 0 {
		return nil, fmt.Errorf("CATCHUP_FALLBACK must be positive")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location returns the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
