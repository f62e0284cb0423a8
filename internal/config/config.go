package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	Store       string `env:"LEDGER_STORE" envDefault:"memory"` // memory | postgres | sqlite
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"fee-ledger.db"`

	Directory     string `env:"DIRECTORY" envDefault:"memory"` // memory | redis
	DirectorySeed string `env:"DIRECTORY_SEED"`

	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass   string `env:"REDIS_PASS"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"directory"`

	Events       string   `env:"EVENTS" envDefault:"none"` // none | kafka | redis
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	TopicPrefix  string   `env:"EVENTS_TOPIC_PREFIX" envDefault:"tuition."`

	BatchConcurrency int           `env:"BATCH_CONCURRENCY" envDefault:"8"`
	RepairAttempts   int           `env:"REPAIR_ATTEMPTS" envDefault:"3"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Store {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_STORE %q", c.Store))
	}

	switch c.Directory {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown DIRECTORY %q", c.Directory))
	}

	switch c.Events {
	case "none", "redis":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for kafka events"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS %q", c.Events))
	}

	if c.BatchConcurrency < 1 {
		errs = append(errs, errors.New("BATCH_CONCURRENCY must be at least 1"))
	}
	if c.RepairAttempts < 1 {
		errs = append(errs, errors.New("REPAIR_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c Config) NeedsRedis() bool {
	return c.Directory == "redis" || c.Events == "redis"
}
