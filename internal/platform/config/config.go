package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration, built once in main.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the contact store. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL             string
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// StoreTimeout bounds a single reconciliation transaction.
	StoreTimeout  time.Duration
	TxMaxAttempts int
}

// RedisConfig configures the optional distributed key lock. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// LogConfig selects logger level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	dur := func(key string, def time.Duration) time.Duration {
		v, err := durationEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := intEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := Config{
		Server: Server{
			Addr:            stringEnv("IDENTITY_ADDR", ":8080"),
			RequestTimeout:  dur("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: dur("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Driver:          stringEnv("DATABASE_DRIVER", "postgres"),
			MaxOpenConns:    num("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    num("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: dur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			StoreTimeout:    dur("STORE_TIMEOUT", 5*time.Second),
			TxMaxAttempts:   num("TX_MAX_ATTEMPTS", 3),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     num("REDIS_POOL_SIZE", 10),
			MinIdleConns: num("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      dur("LOCK_TTL", 10*time.Second),
		},
		Log: LogConfig{
			Level:  stringEnv("LOG_LEVEL", "info"),
			Format: stringEnv("LOG_FORMAT", "json"),
		},
	}
	if len(errs) > 0 {
		return Config{}, errs[0]
	}

	switch cfg.Database.Driver {
	case "postgres", "pgx":
	default:
		return Config{}, fmt.Errorf("DATABASE_DRIVER must be postgres or pgx, got %q", cfg.Database.Driver)
	}
	if cfg.Database.TxMaxAttempts < 1 {
		return Config{}, fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
