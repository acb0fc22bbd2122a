// Package config loads the agent configuration.
//
// Precedence, highest first: runtime overrides, environment variables
// (BUCKETCACHE_*), an optional bucketcache.yaml in the working directory,
// built-in defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppName is the identity used for env prefixes and data directories.
const AppName = "bucketcache"

// ServerConfig configures the console HTTP service.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// PlatformConfig identifies the default scope and request policy for the
// platform API.
type PlatformConfig struct {
	Endpoint          string  `mapstructure:"endpoint"`
	Org               string  `mapstructure:"org"`
	Token             string  `mapstructure:"token"`
	Unrestricted      bool    `mapstructure:"unrestricted"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// CacheConfig locates the durable bucket cache.
type CacheConfig struct {
	Dir  string `mapstructure:"dir"`
	File string `mapstructure:"file"`
}

// Path returns the full path of the cache store file.
func (c CacheConfig) Path() string {
	return filepath.Join(c.Dir, c.File)
}

// FeaturesConfig carries explicit feature decisions consumed at decision
// time. No ambient flag service is involved.
type FeaturesConfig struct {
	// SchemaComposition enables the schema-composition query builder in
	// consoles served by this agent.
	SchemaComposition bool `mapstructure:"schema_composition"`
}

// Config is the full agent configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Platform PlatformConfig `mapstructure:"platform"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Features FeaturesConfig `mapstructure:"features"`
}

var (
	mu     sync.RWMutex
	loaded *Config
)

// envSpec maps an environment variable to a config key.
type envSpec struct {
	Name string
	Key  string
}

func getEnvSpecs() []envSpec {
	return []envSpec{
		{Name: "BUCKETCACHE_HOST", Key: "server.host"},
		{Name: "BUCKETCACHE_PORT", Key: "server.port"},
		{Name: "BUCKETCACHE_READ_TIMEOUT", Key: "server.read_timeout"},
		{Name: "BUCKETCACHE_WRITE_TIMEOUT", Key: "server.write_timeout"},
		{Name: "BUCKETCACHE_LOG_LEVEL", Key: "logging.level"},
		{Name: "BUCKETCACHE_LOG_PROFILE", Key: "logging.profile"},
		{Name: "BUCKETCACHE_PLATFORM_ENDPOINT", Key: "platform.endpoint"},
		{Name: "BUCKETCACHE_PLATFORM_ORG", Key: "platform.org"},
		{Name: "BUCKETCACHE_PLATFORM_TOKEN", Key: "platform.token"},
		{Name: "BUCKETCACHE_PLATFORM_UNRESTRICTED", Key: "platform.unrestricted"},
		{Name: "BUCKETCACHE_CACHE_DIR", Key: "cache.dir"},
		{Name: "BUCKETCACHE_CACHE_FILE", Key: "cache.file"},
		{Name: "BUCKETCACHE_SCHEMA_COMPOSITION", Key: "features.schema_composition"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("platform.endpoint", "")
	v.SetDefault("platform.org", "")
	v.SetDefault("platform.token", "")
	v.SetDefault("platform.unrestricted", false)
	v.SetDefault("platform.requests_per_second", 10.0)

	v.SetDefault("cache.dir", filepath.Join(gfconfig.GetAppDataDir(AppName), "cache"))
	v.SetDefault("cache.file", "buckets.json")

	v.SetDefault("features.schema_composition", false)
}

// Load builds the configuration. Optional override maps take the highest
// precedence and are applied in order.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Key, spec.Name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", spec.Name, err)
		}
	}

	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, override := range overrides {
		applyOverrides(v, "", override)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	mu.Lock()
	loaded = &cfg
	mu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil if Load
// has never succeeded.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return loaded
}

// applyOverrides flattens a nested override map into viper Set calls,
// which sit above env vars and files in precedence.
func applyOverrides(v *viper.Viper, prefix string, m map[string]any) {
	for key, val := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			applyOverrides(v, full, nested)
			continue
		}
		v.Set(full, val)
	}
}
