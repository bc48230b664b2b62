package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config selects and configures the session store backend.
type Config struct {
	Driver string `yaml:"driver"`

	// DSN is the SQLite path or Postgres connection string. An empty
	// SQLite DSN resolves to DefaultDBPath.
	DSN string `yaml:"dsn"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a SQLite store at the default path.
func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "lexisurvey",
			TTL:    DefaultSessionTTL,
		},
	}
}

// Validate checks the driver and its required settings.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.DSN == "" {
			return fmt.Errorf("store: postgres requires a dsn")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("store: redis requires an addr")
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Driver)
	}
	return nil
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverPostgres:
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client, cfg.Redis.Prefix, cfg.Redis.TTL), nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		dsn := cfg.DSN
		if dsn == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			dsn = p
		}
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
