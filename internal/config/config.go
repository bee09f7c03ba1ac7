// Package config loads configuration from environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/EndeeLabs/endee-web-ui/internal/scheduler"
)

// Supported backends
const (
	BackendEndee  = "endee"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the console service
type Config struct {
	// Server
	HTTPPort       int      `env:"HTTP_PORT" envDefault:"3000"`
	GRPCPort       int      `env:"GRPC_PORT" envDefault:"9090"`
	Environment    string   `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Vector database
	Backend      string        `env:"BACKEND" envDefault:"endee"`
	EndeeURL     string        `env:"ENDEE_URL" envDefault:"http://localhost:8080"`
	EndeeToken   string        `env:"ENDEE_TOKEN"`
	EndeeTimeout time.Duration `env:"ENDEE_TIMEOUT" envDefault:"30s"`

	// Qdrant
	QdrantURL             string `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	QdrantGRPCURL         string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`
	QdrantAPIKey          string `env:"QDRANT_API_KEY"`
	QdrantSparseDimension int    `env:"QDRANT_SPARSE_DIMENSION" envDefault:"30522"`

	// Storage: empty for the default SQLite file, "memory", a postgres:// URL or a SQLite path
	DatabaseURL string `env:"DATABASE_URL"`

	// Download tickets
	TicketSecret string        `env:"TICKET_SECRET" envDefault:"change-this-in-production"`
	TicketExpiry time.Duration `env:"TICKET_EXPIRY" envDefault:"60s"`

	// Sessions
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	JobPollInterval    time.Duration `env:"JOB_POLL_INTERVAL" envDefault:"5s"`
	NoticeDismissAfter time.Duration `env:"NOTICE_DISMISS_AFTER" envDefault:"3s"`

	// Background work
	HealthCheckInterval   time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"15s"`
	BackupSchedule        string        `env:"BACKUP_SCHEDULE"`
	BackupScheduleIndexes []string      `env:"BACKUP_SCHEDULE_INDEXES" envSeparator:","`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.BackupScheduleIndexes = compact(cfg.BackupScheduleIndexes)
	cfg.AllowedOrigins = compact(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendEndee, BackendQdrant:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendEndee, BackendQdrant))
	}

	if c.BackupSchedule != "" {
		if _, err := scheduler.ParseSchedule(c.BackupSchedule); err != nil {
			errs = append(errs, fmt.Errorf("BACKUP_SCHEDULE: %w", err))
		}
		if len(c.BackupScheduleIndexes) == 0 {
			errs = append(errs, errors.New("BACKUP_SCHEDULE is set but BACKUP_SCHEDULE_INDEXES is empty"))
		}
	}

	for name, d := range map[string]time.Duration{
		"TICKET_EXPIRY":         c.TicketExpiry,
		"SESSION_TTL":           c.SessionTTL,
		"JOB_POLL_INTERVAL":     c.JobPollInterval,
		"NOTICE_DISMISS_AFTER":  c.NoticeDismissAfter,
		"HEALTH_CHECK_INTERVAL": c.HealthCheckInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	return errors.Join(errs...)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ScheduledBackups reports whether a backup schedule is configured.
func (c *Config) ScheduledBackups() bool {
	return c.BackupSchedule != "" && len(c.BackupScheduleIndexes) > 0
}

func compact(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
