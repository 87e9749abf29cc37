package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database          DatabaseConfig
	Cache             CacheConfig
	Scheduler         SchedulerConfig
	Sync              SyncConfig
	Proxy             ProxyConfig
	S3                S3Config
	APIToken          string
	ProviderTimeout   time.Duration
	FieldMappingsFile string
	ImageFields       []string
	MetricsAddr       string
	DBPath            string
	LogLevel          string
	LogPath           string
	ProvidersDir      string
	Providers         map[string]*ProviderConfig
}

type DatabaseConfig struct {
	URL string
}

type CacheConfig struct {
	Expiry time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
	DaftCron string // incremental daft market scrape
}

// SyncConfig paces bulk syncs: a delay after every property and a longer
// pause every PauseEvery properties.
type SyncConfig struct {
	DelayMS    int
	PauseEvery int
	PauseMS    int
}

type ProxyConfig struct {
	URL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// ProviderConfig is loaded from config/providers/<id>.yaml.
type ProviderConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	RateLimitMS int               `yaml:"rate_limit_ms"`
	Burst       int               `yaml:"burst"`
	TimeoutMS   int               `yaml:"timeout_ms"`
	Endpoints   map[string]string `yaml:"endpoints"`
	Breaker     BreakerConfig     `yaml:"breaker"`

	// Market scrape settings, daft only.
	Locations       []string `yaml:"locations"`
	ListingType     string   `yaml:"listing_type"`
	MaxPages        int      `yaml:"max_pages"`
	PageSize        int      `yaml:"page_size"`
	PageDelayMS     int      `yaml:"page_delay_ms"`
	LocationDelayMS int      `yaml:"location_delay_ms"`
	// A longer pause after every LocationPauseEvery locations.
	LocationPauseEvery int `yaml:"location_pause_every"`
	LocationPauseMS    int `yaml:"location_pause_ms"`
}

type BreakerConfig struct {
	MaxFailures int `yaml:"max_failures"`
	OpenSeconds int `yaml:"open_seconds"`
}

// Endpoint returns a named endpoint or the fallback.
func (p *ProviderConfig) Endpoint(name, fallback string) string {
	if p != nil {
		if v := p.Endpoints[name]; v != "" {
			return v
		}
	}
	return fallback
}

// Timeout returns the provider's request timeout, falling back to def.
func (p *ProviderConfig) Timeout(def time.Duration) time.Duration {
	if p == nil || p.TimeoutMS <= 0 {
		return def
	}
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Cache: CacheConfig{
			Expiry: getEnvDuration("CACHE_EXPIRY", 24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SYNC_CRON"),
			Interval: getEnvDuration("SYNC_INTERVAL", 0),
			DaftCron: os.Getenv("DAFT_SCRAPE_CRON"),
		},
		Sync: SyncConfig{
			DelayMS:    getEnvInt("SYNC_DELAY_MS", 250),
			PauseEvery: getEnvInt("SYNC_PAUSE_EVERY", 25),
			PauseMS:    getEnvInt("SYNC_PAUSE_MS", 3000),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-west-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		APIToken:          os.Getenv("API_TOKEN"),
		ProviderTimeout:   getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),
		FieldMappingsFile: os.Getenv("FIELD_MAPPINGS_FILE"),
		ImageFields:       getEnvList("IMAGE_FIELDS", []string{"Pictures"}),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
		DBPath:            getEnv("DB_PATH", "propsync.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogPath:           getEnv("LOG_PATH", "propsync.log"),
		ProvidersDir:      getEnv("PROVIDERS_DIR", "config/providers"),
		Providers:         make(map[string]*ProviderConfig),
	}

	if err := cfg.loadProviderConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Provider returns the YAML settings for a provider id, nil when none were loaded.
func (c *Config) Provider(id string) *ProviderConfig {
	return c.Providers[id]
}

func (c *Config) loadProviderConfigs() error {
	entries, err := os.ReadDir(c.ProvidersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(c.ProvidersDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var p ProviderConfig
		if err := yaml.Unmarshal(data, &p); err != nil {
			return err
		}

		c.Providers[p.ID] = &p
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
