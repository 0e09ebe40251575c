// Package config defines the configuration structures for AdsorpNET. No I/O
// or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	// CORSOrigins are allowed cross-origin callers. Empty disables CORS.
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RateLimit is the sustained per-client request rate. Zero disables it.
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	Port             int  `mapstructure:"port"`
	EnableReflection bool `mapstructure:"enable_reflection"`
	MaxRecvMsgSize   int  `mapstructure:"max_recv_msg_size"`
}

// ArtifactsConfig tells the registry where model, scaler and encoder files
// live.
type ArtifactsConfig struct {
	Source   string   `mapstructure:"source"` // "local" | "minio"
	Dir      string   `mapstructure:"dir"`
	Manifest string   `mapstructure:"manifest"`
	Preload  []string `mapstructure:"preload"`
}

// PipelineConfig holds prediction pipeline and batch parameters.
type PipelineConfig struct {
	IncludeRegeneration bool          `mapstructure:"include_regeneration"`
	BatchSize           int           `mapstructure:"batch_size"`
	MaxWorkers          int           `mapstructure:"max_workers"`
	ItemTimeout         time.Duration `mapstructure:"item_timeout"`
}

// ValidationConfig holds the lower bounds applied to raw measurements.
type ValidationConfig struct {
	MinSurfaceArea        float64 `mapstructure:"min_surface_area"`
	MinLimitingAdsorption float64 `mapstructure:"min_limiting_adsorption"`
	MinNitrogenEnergy     float64 `mapstructure:"min_nitrogen_energy"`
	MinTotalPoreVolume    float64 `mapstructure:"min_total_pore_volume"`
	MinMesoporeSurface    float64 `mapstructure:"min_mesopore_surface"`
}

// CacheConfig holds result-cache parameters.
type CacheConfig struct {
	Backend       string                   `mapstructure:"backend"` // "memory" | "redis" | "none"
	DefaultTTL    time.Duration            `mapstructure:"default_ttl"`
	ClassifierTTL time.Duration            `mapstructure:"classifier_ttl"`
	StageTTL      map[string]time.Duration `mapstructure:"stage_ttl"`
	MaxEntries    int                      `mapstructure:"max_entries"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// PostgresConfig holds prediction-history database parameters.
type PostgresConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// KafkaConfig holds prediction-event producer parameters.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	ClientID     string        `mapstructure:"client_id"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks string        `mapstructure:"required_acks"` // "none" | "one" | "all"
	Compression  string        `mapstructure:"compression"`
}

// MinIOConfig holds the object-store parameters of the remote artifact store.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure. Every infrastructure component
// and application service reads its settings from the relevant sub-struct.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	GRPC       GRPCConfig        `mapstructure:"grpc"`
	Log        logging.LogConfig `mapstructure:"log"`
	Artifacts  ArtifactsConfig   `mapstructure:"artifacts"`
	Pipeline   PipelineConfig    `mapstructure:"pipeline"`
	Validation ValidationConfig  `mapstructure:"validation"`
	Cache      CacheConfig       `mapstructure:"cache"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Postgres   PostgresConfig    `mapstructure:"postgres"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.GRPC.Enabled {
		if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
			return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
		}
		if c.GRPC.Port == c.Server.Port {
			return fmt.Errorf("config: grpc.port must differ from server.port (%d)", c.Server.Port)
		}
	}

	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	switch c.Artifacts.Source {
	case "local":
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("config: artifacts.dir is required when artifacts.source is local")
		}
	case "minio":
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required when artifacts.source is minio")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required when artifacts.source is minio")
		}
	default:
		return fmt.Errorf("config: artifacts.source %q is invalid; expected local|minio", c.Artifacts.Source)
	}
	if c.Artifacts.Manifest == "" {
		return fmt.Errorf("config: artifacts.manifest is required")
	}

	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("config: pipeline.batch_size must be ≥ 1, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("config: pipeline.max_workers must be ≥ 1, got %d", c.Pipeline.MaxWorkers)
	}
	if c.Pipeline.ItemTimeout < 0 {
		return fmt.Errorf("config: pipeline.item_timeout must not be negative")
	}

	if c.Validation.MinSurfaceArea < 0 {
		return fmt.Errorf("config: validation.min_surface_area must not be negative")
	}

	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when cache.backend is redis")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	default:
		return fmt.Errorf("config: cache.backend %q is invalid; expected memory|redis|none", c.Cache.Backend)
	}
	if c.Cache.DefaultTTL < 0 || c.Cache.ClassifierTTL < 0 {
		return fmt.Errorf("config: cache TTLs must not be negative")
	}
	for stage, ttl := range c.Cache.StageTTL {
		if ttl < 0 {
			return fmt.Errorf("config: cache.stage_ttl[%s] must not be negative", stage)
		}
	}

	if c.Postgres.Enabled {
		if c.Postgres.Host == "" {
			return fmt.Errorf("config: postgres.host is required")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			return fmt.Errorf("config: postgres.port %d is out of range [1, 65535]", c.Postgres.Port)
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("config: postgres.user is required")
		}
		if c.Postgres.DBName == "" {
			return fmt.Errorf("config: postgres.db_name is required")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required")
		}
		switch c.Kafka.RequiredAcks {
		case "none", "one", "all":
		default:
			return fmt.Errorf("config: kafka.required_acks %q is invalid; expected none|one|all", c.Kafka.RequiredAcks)
		}
	}

	return nil
}
