package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/yungbote/vibelist-backend/internal/clients/openai"
	"github.com/yungbote/vibelist-backend/internal/clients/redis"
	"github.com/yungbote/vibelist-backend/internal/clients/search"
	"github.com/yungbote/vibelist-backend/internal/data/db"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

const (
	ConfigPathEnvVar = "CONFIG_PATH"
	EnvPrefix        = "VIBELIST_"
)

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vibelist/config.yaml",
}

type Config struct {
	Server    ServerConfig             `koanf:"server"`
	Log       logger.Options           `koanf:"log"`
	Database  db.Config                `koanf:"database"`
	Redis     redis.Config             `koanf:"redis"`
	Cache     CacheConfig              `koanf:"cache"`
	Search    search.Config            `koanf:"search"`
	Recommend RecommendConfig          `koanf:"recommend"`
	Trend     TrendConfig              `koanf:"trend"`
	MoodLLM   openai.Config            `koanf:"moodllm"`
	OTel      observability.OtelConfig `koanf:"otel"`
	Scheduler SchedulerConfig          `koanf:"scheduler"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// CacheConfig sizes the in-process store used when no redis addr is set.
type CacheConfig struct {
	MemoryEntries int           `koanf:"memory_entries"`
	MemoryMaxTTL  time.Duration `koanf:"memory_max_ttl"`
}

type RecommendConfig struct {
	CatalogPath      string        `koanf:"catalog_path"`
	MinPopularity    int           `koanf:"min_popularity"`
	PoolSize         int           `koanf:"pool_size"`
	PoolTTL          time.Duration `koanf:"pool_ttl"`
	Parallelism      int           `koanf:"parallelism"`
	RefreshInterval  time.Duration `koanf:"refresh_interval"`
	RefreshTimeout   time.Duration `koanf:"refresh_timeout"`
	RefreshOnStartup bool          `koanf:"refresh_on_startup"`
}

// TrendConfig drives trend capture. Retention of zero keeps every snapshot.
// A positive Retention deletes snapshots older than it in any status,
// FAILED and IN_PROGRESS included, but never the latest COMPLETED one.
type TrendConfig struct {
	TopN             int           `koanf:"top_n"`
	PoolTTL          time.Duration `koanf:"pool_ttl"`
	CaptureInterval  time.Duration `koanf:"capture_interval"`
	CaptureTimeout   time.Duration `koanf:"capture_timeout"`
	CaptureOnStartup bool          `koanf:"capture_on_startup"`
	Retention        time.Duration `koanf:"retention"`
}

type SchedulerConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Log: logger.Options{Mode: "development", Redact: true},
		Database: db.Config{
			Driver:        "postgres",
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      "warn",
			MaxOpenConns:  10,
			MaxIdleConns:  5,
		},
		Redis: redis.Config{
			DialTimeout: 5 * time.Second,
			OpTimeout:   2 * time.Second,
		},
		Cache: CacheConfig{
			MemoryEntries: 64,
			MemoryMaxTTL:  2 * time.Hour,
		},
		Search: search.DefaultConfig(),
		Recommend: RecommendConfig{
			MinPopularity:    10,
			PoolSize:         1000,
			PoolTTL:          65 * time.Minute,
			Parallelism:      3,
			RefreshInterval:  time.Hour,
			RefreshTimeout:   5 * time.Minute,
			RefreshOnStartup: true,
		},
		Trend: TrendConfig{
			TopN:             50,
			PoolTTL:          65 * time.Minute,
			CaptureInterval:  30 * time.Minute,
			CaptureTimeout:   2 * time.Minute,
			CaptureOnStartup: true,
		},
		MoodLLM: openai.Config{
			Model:      "gpt-4o-mini",
			Timeout:    10 * time.Second,
			MaxRetries: 2,
		},
		OTel: observability.OtelConfig{
			ServiceName: "vibelist",
			SampleRatio: 1,
		},
		Scheduler: SchedulerConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadConfig layers defaults, an optional YAML file and the environment, in
// that order of increasing priority.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Unprefixed variables the deployment already sets.
var legacyEnv = map[string]string{
	"LOG_MODE":       "log.mode",
	"DATABASE_URL":   "database.dsn",
	"REDIS_ADDR":     "redis.addr",
	"OPENAI_API_KEY": "moodllm.api_keys",
	"ES_ADDRESSES":   "search.addresses",
}

// envTransformFunc maps VIBELIST_SECTION__FIELD to section.field. Variables
// outside the prefix are dropped unless listed in legacyEnv.
func envTransformFunc(key string) string {
	if path, ok := legacyEnv[key]; ok {
		return path
	}
	if !strings.HasPrefix(key, EnvPrefix) {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

var sliceConfigPaths = []string{
	"server.cors_origins",
	"search.addresses",
	"moodllm.api_keys",
}

// processSliceFields splits comma separated env values into lists.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if len(c.Search.Addresses) == 0 {
		errs = append(errs, errors.New("search.addresses is required"))
	}
	if c.Trend.TopN <= 0 {
		errs = append(errs, errors.New("trend.top_n must be positive"))
	}
	if c.Recommend.PoolSize <= 0 {
		errs = append(errs, errors.New("recommend.pool_size must be positive"))
	}
	if c.Recommend.RefreshInterval > 0 && c.Recommend.PoolTTL <= c.Recommend.RefreshInterval {
		errs = append(errs, fmt.Errorf("recommend.pool_ttl (%s) must outlive recommend.refresh_interval (%s)",
			c.Recommend.PoolTTL, c.Recommend.RefreshInterval))
	}
	if c.Trend.CaptureInterval > 0 && c.Trend.PoolTTL <= c.Trend.CaptureInterval {
		errs = append(errs, fmt.Errorf("trend.pool_ttl (%s) must outlive trend.capture_interval (%s)",
			c.Trend.PoolTTL, c.Trend.CaptureInterval))
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		ttl := max(c.Recommend.PoolTTL, c.Trend.PoolTTL)
		if c.Cache.MemoryMaxTTL < ttl {
			errs = append(errs, fmt.Errorf("cache.memory_max_ttl (%s) is shorter than the pool ttl (%s)", c.Cache.MemoryMaxTTL, ttl))
		}
	}
	return errors.Join(errs...)
}

// MoodLLMEnabled reports whether text analysis has credentials.
func (c *Config) MoodLLMEnabled() bool {
	for _, k := range c.MoodLLM.APIKeys {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}
