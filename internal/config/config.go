// Package config loads service configuration through viper.
// Precedence: CLI flags > environment > config file > defaults.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zeebo/errs"
)

// Error is the class of configuration failures.
var Error = errs.Class("config")

const envPrefix = "METACATALOG"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Backend string
	// Path is the bolt file for the bolt backend.
	Path string
	// Journal, when set, makes the memory backend durable.
	Journal   string
	RedisAddr string
	RedisKey  string
}

type RegistryConfig struct {
	Backend string
	DSN     string
}

type LimitsConfig struct {
	MaxProperties int
	MaxTags       int
	MaxLength     int
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Config is the complete service configuration.
type Config struct {
	HTTP              HTTPConfig
	ObservabilityPort int
	GrpcPort          int
	Log               LogConfig
	Storage           StorageConfig
	Registry          RegistryConfig
	Limits            LimitsConfig
}

// NewViper returns a viper instance carrying defaults and environment
// bindings. Callers may bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("observability.port", 9090)
	v.SetDefault("grpc.port", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.path", "./metacatalog.db")
	v.SetDefault("storage.journal", "")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_key", "metacatalog")
	v.SetDefault("registry.backend", BackendMemory)
	v.SetDefault("registry.dsn", "./registry.db")
	v.SetDefault("limits.max_properties", 1000)
	v.SetDefault("limits.max_tags", 1000)
	v.SetDefault("limits.max_length", 50)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and builds a validated Config.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, Error.New("failed to read config file: %v", err)
		}
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		ObservabilityPort: v.GetInt("observability.port"),
		GrpcPort:          v.GetInt("grpc.port"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(v.GetString("storage.backend")),
			Path:      v.GetString("storage.path"),
			Journal:   v.GetString("storage.journal"),
			RedisAddr: v.GetString("storage.redis_addr"),
			RedisKey:  v.GetString("storage.redis_key"),
		},
		Registry: RegistryConfig{
			Backend: strings.ToLower(v.GetString("registry.backend")),
			DSN:     v.GetString("registry.dsn"),
		},
		Limits: LimitsConfig{
			MaxProperties: v.GetInt("limits.max_properties"),
			MaxTags:       v.GetInt("limits.max_tags"),
			MaxLength:     v.GetInt("limits.max_length"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validatePort(name string, port int, allowZero bool) error {
	if allowZero && port == 0 {
		return nil
	}
	if port <= 0 || port > 65535 {
		return Error.New("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// validateConfig checks addresses, ports, timeouts, backends and limits.
func validateConfig(cfg *Config) error {
	if cfg.HTTP.Addr == "" {
		return Error.New("http.addr must not be empty")
	}
	if cfg.HTTP.ReadTimeout <= 0 || cfg.HTTP.WriteTimeout <= 0 || cfg.HTTP.ShutdownTimeout <= 0 {
		return Error.New("http timeouts must be positive")
	}
	if err := validatePort("observability.port", cfg.ObservabilityPort, true); err != nil {
		return err
	}
	if err := validatePort("grpc.port", cfg.GrpcPort, true); err != nil {
		return err
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendBolt:
		if cfg.Storage.Path == "" {
			return Error.New("storage.path is required for the bolt backend")
		}
	case BackendRedis:
		if cfg.Storage.RedisAddr == "" || cfg.Storage.RedisKey == "" {
			return Error.New("storage.redis_addr and storage.redis_key are required for the redis backend")
		}
	default:
		return Error.New("unknown storage.backend %q", cfg.Storage.Backend)
	}

	switch cfg.Registry.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Registry.DSN == "" {
			return Error.New("registry.dsn is required for the sqlite registry")
		}
	default:
		return Error.New("unknown registry.backend %q", cfg.Registry.Backend)
	}

	if cfg.Limits.MaxProperties <= 0 || cfg.Limits.MaxTags <= 0 || cfg.Limits.MaxLength <= 0 {
		return Error.New("limits must be positive")
	}
	return nil
}
