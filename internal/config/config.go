// Package config loads process configuration via viper. Precedence, highest
// first: environment variables prefixed IMS_, then the optional config file,
// then built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the enumerated configuration surface from spec.md §6.
type Config struct {
	Database struct {
		URI  string `mapstructure:"uri"`
		Name string `mapstructure:"name"`
	} `mapstructure:"database"`

	ObjectStorage struct {
		Enabled            bool          `mapstructure:"enabled"`
		URL                string        `mapstructure:"url"`
		RequestTimeout     time.Duration `mapstructure:"request_timeout_seconds"`
		AuthTokenSource    string        `mapstructure:"auth_token_source"`
	} `mapstructure:"object_storage"`

	Auth struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"auth"`

	Breadcrumbs struct {
		MaxTrailLength int `mapstructure:"max_trail_length"`
	} `mapstructure:"breadcrumbs"`

	Spares struct {
		Recompute struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"recompute"`
	} `mapstructure:"spares"`
}

var v *viper.Viper

// Initialize sets up the package-level viper instance: registers
// defaults, binds the IMS_ environment prefix, and optionally reads
// configFile if non-empty. It is safe to call once at process startup,
// mirroring the teacher's config.Initialize singleton.
func Initialize(configFile string) (*Config, error) {
	v = viper.New()

	v.SetDefault("database.uri", "file:inventory.db")
	v.SetDefault("database.name", "inventory")
	v.SetDefault("object_storage.enabled", false)
	v.SetDefault("object_storage.request_timeout_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("breadcrumbs.max_trail_length", 5)
	v.SetDefault("spares.recompute.enabled", true)

	v.SetEnvPrefix("IMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// viper.Unmarshal decodes durations from a bare integer as
	// nanoseconds; request_timeout_seconds is expressed in seconds.
	cfg.ObjectStorage.RequestTimeout = time.Duration(v.GetInt64("object_storage.request_timeout_seconds")) * time.Second

	if cfg.Breadcrumbs.MaxTrailLength < 2 {
		return nil, fmt.Errorf("breadcrumbs.max_trail_length must be >= 2, got %d", cfg.Breadcrumbs.MaxTrailLength)
	}

	return &cfg, nil
}
