package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the process configuration for cmd/api and cmd/crewadmin.
//
// Every key maps to an upper-case environment variable of the same name (PUBLIC_BASE_URL,
// STORAGE_BACKEND, ...). CONFIG_FILE may point at a YAML file using the same keys; environment
// variables win over the file.
type AppConfig struct {
	Port string `mapstructure:"port"`

	AuthMode   string `mapstructure:"auth_mode"`
	DevSubject string `mapstructure:"dev_subject"`
	DevIssuer  string `mapstructure:"dev_issuer"`

	StorageBackend string `mapstructure:"storage_backend"`
	DatabaseURL    string `mapstructure:"database_url"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`

	CacheBackend    string        `mapstructure:"cache_backend"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	PreviewCacheTTL time.Duration `mapstructure:"preview_cache_ttl"`

	PublicBaseURL string `mapstructure:"public_base_url"`
	TenantID      string `mapstructure:"tenant_id"`

	InviteRatePerMinute int `mapstructure:"invite_rate_per_minute"`
	InviteRateBurst     int `mapstructure:"invite_rate_burst"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("auth_mode", "jwt")
	v.SetDefault("dev_subject", "dev|local")
	v.SetDefault("dev_issuer", "dev")
	v.SetDefault("storage_backend", "memory")
	v.SetDefault("database_url", "")
	v.SetDefault("auto_migrate", false)
	v.SetDefault("cache_backend", "memory")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("preview_cache_ttl", time.Minute)
	v.SetDefault("public_base_url", "http://localhost:3000")
	v.SetDefault("tenant_id", "default")
	v.SetDefault("invite_rate_per_minute", 30)
	v.SetDefault("invite_rate_burst", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// Load reads AppConfig from the environment and the optional CONFIG_FILE.
func Load() (AppConfig, error) {
	v := newViper()
	setDefaults(v)

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.StorageBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", c.StorageBackend)
	}
	switch c.CacheBackend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("CACHE_BACKEND must be none, memory or redis, got %q", c.CacheBackend)
	}
	switch c.AuthMode {
	case "jwt", "dev":
	default:
		return fmt.Errorf("AUTH_MODE must be jwt or dev, got %q", c.AuthMode)
	}
	if strings.TrimSpace(c.PublicBaseURL) == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must not be empty")
	}
	if c.InviteRatePerMinute <= 0 || c.InviteRateBurst <= 0 {
		return fmt.Errorf("INVITE_RATE_PER_MINUTE and INVITE_RATE_BURST must be positive")
	}
	return nil
}
