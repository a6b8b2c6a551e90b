package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/notify-engine/internal/classify"
)

const defaultOverdueThresholds = "3 5 10"

type Config struct {
	RemoteAPIURL      string `env:"REMOTE_API_URL,required=true"`
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	OverdueThresholds string `env:"OVERDUE_THRESHOLDS"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=5"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if strings.TrimSpace(cfg.OverdueThresholds) == "" {
		cfg.OverdueThresholds = defaultOverdueThresholds
	}
	if _, err := cfg.Thresholds(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Thresholds parses OVERDUE_THRESHOLDS (space or comma separated day
// counts, e.g. "3 5 10") into the normalized list the classifier consumes.
func (c *Config) Thresholds() ([]int, error) {
	fields := strings.FieldsFunc(c.OverdueThresholds, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	})

	thresholds := make([]int, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("invalid overdue threshold %q: %w", field, err)
		}
		thresholds = append(thresholds, value)
	}

	normalized, err := classify.NormalizeThresholds(thresholds)
	if err != nil {
		return nil, fmt.Errorf("invalid OVERDUE_THRESHOLDS %q: %w", c.OverdueThresholds, err)
	}
	return normalized, nil
}
