package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	HTTPAddr       string `mapstructure:"http_addr"`
	ProvidersFile  string `mapstructure:"providers_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	ProviderTimeoutSeconds int64         `mapstructure:"provider_timeout_seconds"`
	ProviderMaxResults     int           `mapstructure:"provider_max_results"`
	ProviderTimeout        time.Duration `mapstructure:"-"`

	RawCacheTTLSeconds         int64         `mapstructure:"raw_cache_ttl_seconds"`
	ImageCacheTTLSeconds       int64         `mapstructure:"image_cache_ttl_seconds"`
	CacheMaxEntries            int           `mapstructure:"cache_max_entries"`
	ImageResolveLimit          int           `mapstructure:"image_resolve_limit"`
	ImageResolveTimeoutSeconds int64         `mapstructure:"image_resolve_timeout_seconds"`
	RawCacheTTL                time.Duration `mapstructure:"-"`
	ImageCacheTTL              time.Duration `mapstructure:"-"`
	ImageResolveTimeout        time.Duration `mapstructure:"-"`

	WarmCron          string        `mapstructure:"warm_cron"`
	WarmCategoriesRaw string        `mapstructure:"warm_categories"`
	WarmMaxAgeSeconds int64         `mapstructure:"warm_max_age_seconds"`
	WarmCategories    []string      `mapstructure:"-"`
	WarmMaxAge        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "newsdesk")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("providers_file", "./configs/providers.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("provider_timeout_seconds", 15)
	v.SetDefault("provider_max_results", 50)
	v.SetDefault("raw_cache_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("image_cache_ttl_seconds", int64((3*24*time.Hour)/time.Second))
	v.SetDefault("cache_max_entries", 1024)
	v.SetDefault("image_resolve_limit", 12)
	v.SetDefault("image_resolve_timeout_seconds", 5)
	v.SetDefault("warm_cron", "*/30 * * * *")
	v.SetDefault("warm_categories", "")
	v.SetDefault("warm_max_age_seconds", int64((30*time.Minute)/time.Second))
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/seen.db")
	v.SetDefault("storage_ttl_seconds", int64((5*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finalize validates numeric settings and derives the duration fields.
func (c *Config) finalize() error {
	if c.ProviderTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid provider_timeout_seconds (must be positive seconds)")
	}
	if c.ProviderMaxResults <= 0 {
		return fmt.Errorf("invalid provider_max_results (must be positive)")
	}
	if c.RawCacheTTLSeconds <= 0 {
		return fmt.Errorf("invalid raw_cache_ttl_seconds (must be positive seconds)")
	}
	if c.ImageCacheTTLSeconds <= 0 {
		return fmt.Errorf("invalid image_cache_ttl_seconds (must be positive seconds)")
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("invalid cache_max_entries (must be positive)")
	}
	if c.ImageResolveLimit < 0 {
		return fmt.Errorf("invalid image_resolve_limit (must not be negative)")
	}
	if c.ImageResolveTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid image_resolve_timeout_seconds (must be positive seconds)")
	}
	if c.WarmMaxAgeSeconds <= 0 {
		return fmt.Errorf("invalid warm_max_age_seconds (must be positive seconds)")
	}
	if c.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if c.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}

	c.ProviderTimeout = time.Duration(c.ProviderTimeoutSeconds) * time.Second
	c.RawCacheTTL = time.Duration(c.RawCacheTTLSeconds) * time.Second
	c.ImageCacheTTL = time.Duration(c.ImageCacheTTLSeconds) * time.Second
	c.ImageResolveTimeout = time.Duration(c.ImageResolveTimeoutSeconds) * time.Second
	c.WarmMaxAge = time.Duration(c.WarmMaxAgeSeconds) * time.Second
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second
	c.WarmCategories = splitList(c.WarmCategoriesRaw)
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
