package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// JWTConfig configures JWT verification against a JWKS endpoint.
type JWTConfig struct {
	Issuer   string `mapstructure:"jwt_issuer"`
	Audience string `mapstructure:"jwt_audience"`
	JWKSURL  string `mapstructure:"jwt_jwks_url"`

	ClockSkew              time.Duration `mapstructure:"jwt_clock_skew"`
	JWKSRefreshInterval    time.Duration `mapstructure:"jwt_jwks_refresh_interval"`
	JWKSMinRefreshInterval time.Duration `mapstructure:"jwt_jwks_min_refresh_interval"`

	HTTPTimeout time.Duration `mapstructure:"jwt_http_timeout"`
}

func setJWTDefaults(v *viper.Viper) {
	v.SetDefault("jwt_issuer", "")
	v.SetDefault("jwt_audience", "")
	v.SetDefault("jwt_jwks_url", "")
	v.SetDefault("jwt_clock_skew", 30*time.Second)
	// Refresh periodically to pick up key rotation even if an old key is still cached.
	v.SetDefault("jwt_jwks_refresh_interval", 5*time.Minute)
	// Bound refresh frequency when a token presents an unknown kid.
	v.SetDefault("jwt_jwks_min_refresh_interval", 10*time.Second)
	v.SetDefault("jwt_http_timeout", 5*time.Second)
}

// LoadJWTConfigFromEnv reads the JWT_* environment variables.
func LoadJWTConfigFromEnv() (JWTConfig, error) {
	v := newViper()
	setJWTDefaults(v)
	return loadJWT(v)
}

func loadJWT(v *viper.Viper) (JWTConfig, error) {
	var cfg JWTConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return JWTConfig{}, fmt.Errorf("decode jwt config: %w", err)
	}
	if cfg.Issuer == "" || cfg.Audience == "" || cfg.JWKSURL == "" {
		return JWTConfig{}, fmt.Errorf("missing required env vars: JWT_ISSUER, JWT_AUDIENCE, JWT_JWKS_URL")
	}
	return cfg, nil
}
