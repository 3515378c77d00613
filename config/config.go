// Package config reads the proxy settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	Debug       bool
	Syslog      bool
	Server      ServerConfig
	Upstream    UpstreamConfig
	Session     SessionConfig
	Fetch       FetchConfig
	Cache       CacheConfig
	Database    DatabaseConfig
}

type ServerConfig struct {
	Addr string
}

type UpstreamConfig struct {
	URL              string
	LoginPageTimeout time.Duration
	LoginTimeout     time.Duration
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type FetchConfig struct {
	Workers    int
	BatchLimit int
	Timeout    time.Duration
	Location   *time.Location
}

type CacheConfig struct {
	// Path of the buntdb file, ":memory:" keeps it in memory and empty
	// disables the cache.
	Path string
	TTL  time.Duration
}

func (c CacheConfig) Enabled() bool {
	return c.Path != ""
}

type DatabaseConfig struct {
	// PostgresDSN is optional; without it audit entries are kept in memory.
	PostgresDSN string
	Verbose     bool
}

const (
	defaultAddr             = ":5060"
	defaultUpstreamURL      = "https://jyanken-poker.onrender.com"
	defaultSessionTTL       = 2 * time.Hour
	defaultSweepInterval    = time.Hour
	defaultWorkers          = 10
	defaultBatchLimit       = 24
	defaultFetchTimeout     = 10 * time.Second
	defaultLoginPageTimeout = 10 * time.Second
	defaultLoginTimeout     = 15 * time.Second
	defaultCachePath        = ":memory:"
	defaultCacheTTL         = 6 * time.Hour
	defaultTimezone         = "Asia/Tokyo"
)

func Load() (Config, error) {
	v := viper.New()
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	v.SetDefault("chips_env", "")
	v.SetDefault("debug", false)
	v.SetDefault("chips_syslog", false)
	v.SetDefault("chips_addr", defaultAddr)
	v.SetDefault("chips_upstream_url", defaultUpstreamURL)
	v.SetDefault("chips_session_ttl", defaultSessionTTL)
	v.SetDefault("chips_sweep_interval", defaultSweepInterval)
	v.SetDefault("chips_fetch_workers", defaultWorkers)
	v.SetDefault("chips_batch_limit", defaultBatchLimit)
	v.SetDefault("chips_fetch_timeout", defaultFetchTimeout)
	v.SetDefault("chips_login_page_timeout", defaultLoginPageTimeout)
	v.SetDefault("chips_login_timeout", defaultLoginTimeout)
	v.SetDefault("chips_cache_path", defaultCachePath)
	v.SetDefault("chips_cache_ttl", defaultCacheTTL)
	v.SetDefault("chips_timezone", defaultTimezone)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("db_verbose", false)

	upstreamURL := valueOrDefault(v.GetString("chips_upstream_url"), defaultUpstreamURL)
	parsed, err := url.Parse(upstreamURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Config{}, fmt.Errorf("invalid CHIPS_UPSTREAM_URL: %q", upstreamURL)
	}

	timezone := valueOrDefault(v.GetString("chips_timezone"), defaultTimezone)
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid CHIPS_TIMEZONE %q: %w", timezone, err)
	}

	cfg := Config{
		Environment: strings.ToLower(strings.TrimSpace(v.GetString("chips_env"))),
		Debug:       v.GetBool("debug"),
		Syslog:      v.GetBool("chips_syslog"),
		Server: ServerConfig{
			Addr: valueOrDefault(v.GetString("chips_addr"), defaultAddr),
		},
		Upstream: UpstreamConfig{
			URL:              strings.TrimRight(upstreamURL, "/"),
			LoginPageTimeout: durationOrDefault(v.GetDuration("chips_login_page_timeout"), defaultLoginPageTimeout),
			LoginTimeout:     durationOrDefault(v.GetDuration("chips_login_timeout"), defaultLoginTimeout),
		},
		Session: SessionConfig{
			TTL:           durationOrDefault(v.GetDuration("chips_session_ttl"), defaultSessionTTL),
			SweepInterval: durationOrDefault(v.GetDuration("chips_sweep_interval"), defaultSweepInterval),
		},
		Fetch: FetchConfig{
			Workers:    clamp(v.GetInt("chips_fetch_workers"), defaultWorkers, 1, 64),
			BatchLimit: clamp(v.GetInt("chips_batch_limit"), defaultBatchLimit, 1, 120),
			Timeout:    durationOrDefault(v.GetDuration("chips_fetch_timeout"), defaultFetchTimeout),
			Location:   location,
		},
		Cache: CacheConfig{
			Path: strings.TrimSpace(v.GetString("chips_cache_path")),
			TTL:  durationOrDefault(v.GetDuration("chips_cache_ttl"), defaultCacheTTL),
		},
		Database: DatabaseConfig{
			PostgresDSN: strings.TrimSpace(v.GetString("postgres_dsn")),
			Verbose:     v.GetBool("db_verbose"),
		},
	}
	return cfg, nil
}

func (c Config) IsLocalDevelopment() bool {
	switch c.Environment {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func valueOrDefault(value string, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func durationOrDefault(value time.Duration, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

// clamp keeps value in [min, max]; unset or non positive values fall back.
func clamp(value int, fallback int, min int, max int) int {
	if value <= 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
