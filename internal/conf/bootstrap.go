// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server holds transport configuration.
type Server struct {
	Http *HTTP
}

// HTTP holds the HTTP listener configuration.
type HTTP struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds data layer configuration.
type Data struct {
	Database *Database
	Redis    *Redis
	Events   *Events
}

// Database holds the authoritative store (PostgreSQL) configuration.
type Database struct {
	Driver string
	Source string
}

// Redis holds Redis connection and lookup cache configuration.
type Redis struct {
	Network      string
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
	LocalSize    int
}

// Events holds the buffered write path (Redis Stream) configuration.
type Events struct {
	Stream        string
	DrainInterval time.Duration
	DrainBatch    int
}

// Breaker holds the circuit breaker thresholds, fixed at construction.
type Breaker struct {
	FailureThreshold int
	Cooldown         time.Duration
	SuccessesToClose int
}

// Filter holds the handle filter build and load configuration.
type Filter struct {
	SnapshotPath      string
	FalsePositiveRate float64
	PageSize          int
	RebuildCron       string
}

// Log holds logger configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}

// Bootstrap is the root configuration of the service.
type Bootstrap struct {
	Server  *Server
	Data    *Data
	Breaker *Breaker
	Filter  *Filter
	Log     *Log
}

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with AVAILGATE_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required settings:
//   - POSTGRES_DSN or AVAILGATE_DATA_DATABASE_SOURCE: PostgreSQL connection string
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable support with AVAILGATE_ prefix
	v.SetEnvPrefix("AVAILGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without AVAILGATE_ prefix) for compatibility
	_ = v.BindEnv("data.database.source", "POSTGRES_DSN", "AVAILGATE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "AVAILGATE_DATA_REDIS_ADDR")
	_ = v.BindEnv("filter.snapshot_path", "FILTER_SNAPSHOT", "AVAILGATE_FILTER_SNAPSHOT_PATH")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If a config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
				CacheTTL:     v.GetDuration("data.redis.cache_ttl"),
				LocalSize:    v.GetInt("data.redis.local_size"),
			},
			Events: &Events{
				Stream:        v.GetString("data.events.stream"),
				DrainInterval: v.GetDuration("data.events.drain_interval"),
				DrainBatch:    v.GetInt("data.events.drain_batch"),
			},
		},
		Breaker: &Breaker{
			FailureThreshold: v.GetInt("breaker.failure_threshold"),
			Cooldown:         v.GetDuration("breaker.cooldown"),
			SuccessesToClose: v.GetInt("breaker.successes_to_close"),
		},
		Filter: &Filter{
			SnapshotPath:      v.GetString("filter.snapshot_path"),
			FalsePositiveRate: v.GetFloat64("filter.false_positive_rate"),
			PageSize:          v.GetInt("filter.page_size"),
			RebuildCron:       v.GetString("filter.rebuild_cron"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "postgres")
	// Note: data.database.source (POSTGRES_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.cache_ttl", 5*time.Minute)
	v.SetDefault("data.redis.local_size", 4096)

	v.SetDefault("data.events.stream", "availgate:writes")
	v.SetDefault("data.events.drain_interval", time.Second)
	v.SetDefault("data.events.drain_batch", 100)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", 30*time.Second)
	v.SetDefault("breaker.successes_to_close", 3)

	// Filter defaults
	v.SetDefault("filter.snapshot_path", "data/handles.bloom.json")
	v.SetDefault("filter.false_positive_rate", 0.01)
	v.SetDefault("filter.page_size", 10000)
	v.SetDefault("filter.rebuild_cron", "0 0 3 * * *")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all invalid fields.
func Validate(bc *Bootstrap) error {
	var problems []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		problems = append(problems, "data.database.source (POSTGRES_DSN) is required")
	}

	if bc.Breaker != nil {
		if bc.Breaker.FailureThreshold < 1 {
			problems = append(problems, "breaker.failure_threshold must be at least 1")
		}
		if bc.Breaker.SuccessesToClose < 1 {
			problems = append(problems, "breaker.successes_to_close must be at least 1")
		}
		if bc.Breaker.Cooldown <= 0 {
			problems = append(problems, "breaker.cooldown must be positive")
		}
	}

	if bc.Filter != nil {
		if bc.Filter.FalsePositiveRate <= 0 || bc.Filter.FalsePositiveRate >= 1 {
			problems = append(problems, "filter.false_positive_rate must be in (0, 1)")
		}
		if bc.Filter.PageSize < 1 {
			problems = append(problems, "filter.page_size must be at least 1")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}

	return nil
}
