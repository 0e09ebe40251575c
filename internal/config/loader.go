package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "ADSORPNET"

// newViper builds a Viper instance with YAML file type, the ADSORPNET_ env
// prefix, automatic env binding and a "." → "_" key replacer so that
// "cache.backend" resolves to ADSORPNET_CACHE_BACKEND.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvKeys(v)
	return v
}

// bindEnvKeys registers every scalar key so that Unmarshal sees env-only
// values; AutomaticEnv alone only applies to keys viper already knows.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port", "server.read_timeout", "server.write_timeout",
		"server.shutdown_timeout", "server.max_body_size", "server.rate_limit", "server.rate_limit_burst",
		"grpc.enabled", "grpc.port", "grpc.enable_reflection",
		"log.level", "log.format",
		"artifacts.source", "artifacts.dir", "artifacts.manifest",
		"pipeline.include_regeneration", "pipeline.batch_size", "pipeline.max_workers", "pipeline.item_timeout",
		"validation.min_surface_area",
		"cache.backend", "cache.default_ttl", "cache.classifier_ttl", "cache.max_entries",
		"redis.addr", "redis.password", "redis.db", "redis.key_prefix",
		"postgres.enabled", "postgres.host", "postgres.port", "postgres.user", "postgres.password",
		"postgres.db_name", "postgres.ssl_mode", "postgres.auto_migrate",
		"kafka.enabled", "kafka.brokers", "kafka.topic", "kafka.required_acks",
		"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.use_ssl", "minio.bucket", "minio.prefix",
		"metrics.enabled", "metrics.namespace",
	} {
		_ = v.BindEnv(key)
	}
}

// Load reads the YAML file at configPath, merges ADSORPNET_* environment
// overrides, applies defaults for unset fields and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from ADSORPNET_* environment variables
// and defaults, with no config file.
//
//	ADSORPNET_<SECTION>_<FIELD>   e.g. ADSORPNET_CACHE_BACKEND, ADSORPNET_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrEnv loads configPath when it is non-empty and falls back to
// LoadFromEnv otherwise.
func LoadOrEnv(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the newly parsed Config
// whenever the file is written. Only log level and cache TTLs are meant to be
// applied at runtime; callers pick the safe subset themselves.
//
// Watch is non-blocking; viper runs the fsnotify loop in the background. A
// change that fails to parse or validate is reported to onError (if non-nil)
// and onChange is not called.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on any error. Intended for main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
