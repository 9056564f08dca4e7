// Package config loads and validates sitedigger configuration via Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitedigger/internal/inspect"
)

// Cache backends selectable through cache.backend.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendLevelDB  = "leveldb"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Probes  ProbesConfig  `mapstructure:"probes"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ProbeConfig shapes every network probe.
type ProbeConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
	MaxRedirects int           `mapstructure:"max_redirects"`
}

// ProbesConfig selects the optional probes that run beside the primary one.
type ProbesConfig struct {
	Auxiliary []inspect.AuxiliaryProbe `mapstructure:"auxiliary"`
	DNS       bool                     `mapstructure:"dns"`
	TLS       bool                     `mapstructure:"tls"`
}

// CacheConfig picks and configures the persistence backend.
type CacheConfig struct {
	Backend  string         `mapstructure:"backend"`
	MaxAge   time.Duration  `mapstructure:"max_age"`
	File     FileConfig     `mapstructure:"file"`
	LevelDB  LevelDBConfig  `mapstructure:"leveldb"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// FileConfig is the one-file-per-entry backend.
type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

// LevelDBConfig is the embedded backend.
type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig is the networked backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// PostgresConfig is the relational backend.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEDIGGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("probe.timeout", 10*time.Second)
	v.SetDefault("probe.user_agent", "sitedigger/0.1 (+https://github.com/JakeFAU/sitedigger)")
	v.SetDefault("probe.max_body_bytes", 5<<20)
	v.SetDefault("probe.max_redirects", 10)
	v.SetDefault("probes.auxiliary", []map[string]string{
		{"name": inspect.ProbeSitemap, "path": "/sitemap.xml"},
		{"name": inspect.ProbeRobots, "path": "/robots.txt"},
	})
	v.SetDefault("probes.dns", true)
	v.SetDefault("probes.tls", true)
	v.SetDefault("cache.backend", BackendLevelDB)
	v.SetDefault("cache.max_age", time.Duration(0))
	v.SetDefault("cache.file.dir", filepath.Join(dataDir, "entries"))
	v.SetDefault("cache.leveldb.path", filepath.Join(dataDir, "leveldb"))
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.prefix", "sitedigger:")
	v.SetDefault("cache.postgres.table", "inspection_cache")
	v.SetDefault("cache.postgres.max_conns", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "sitedigger")
	}
	return ".sitedigger"
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be > 0")
	}
	if c.Probe.MaxRedirects < 0 {
		return fmt.Errorf("probe.max_redirects must be >= 0")
	}
	if c.Probe.MaxBodyBytes < 0 {
		return fmt.Errorf("probe.max_body_bytes must be >= 0")
	}
	seen := make(map[string]struct{}, len(c.Probes.Auxiliary))
	for _, p := range c.Probes.Auxiliary {
		if p.Name == "" || p.Path == "" {
			return fmt.Errorf("probes.auxiliary entries need both name and path")
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("probes.auxiliary name %q is duplicated", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must be >= 0")
	}
	switch c.Cache.Backend {
	case BackendNone, BackendMemory:
	case BackendFile:
		if c.Cache.File.Dir == "" {
			return fmt.Errorf("cache.file.dir must be set for the file backend")
		}
	case BackendLevelDB:
		if c.Cache.LevelDB.Path == "" {
			return fmt.Errorf("cache.leveldb.path must be set for the leveldb backend")
		}
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr must be set for the redis backend")
		}
	case BackendPostgres:
		if c.Cache.Postgres.DSN == "" {
			return fmt.Errorf("cache.postgres.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of none, memory, file, leveldb, redis, postgres", c.Cache.Backend)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}
