package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/kensaku/pkg/observability"
	"github.com/platinummonkey/kensaku/pkg/propagation"
	"github.com/platinummonkey/kensaku/pkg/search"
	"github.com/platinummonkey/kensaku/pkg/staletrack"
	"github.com/platinummonkey/kensaku/pkg/storage/postgres"
	"github.com/platinummonkey/kensaku/pkg/tokenizer"
)

// ConfigFileEnv names the optional YAML file loaded before the environment
const ConfigFileEnv = "KENSAKU_CONFIG_FILE"

// Storage backends
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Tokenizer     TokenizerConfig     `yaml:"tokenizer"`
	Propagation   PropagationConfig   `yaml:"propagation"`
	Search        SearchConfig        `yaml:"search"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	// WarmTokenizer loads the dictionary in the background at startup
	WarmTokenizer bool `yaml:"warm_tokenizer"`
}

// DatabaseConfig selects and configures the storage backend
type DatabaseConfig struct {
	Type        string        `yaml:"type"`
	URL         string        `yaml:"url"`
	ReplicaURLs []string      `yaml:"replica_urls"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	AutoMigrate bool          `yaml:"auto_migrate"`
}

// RedisConfig configures the shared stale tracker
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// TokenizerConfig selects the tokenizer variant. There is no automatic
// fallback between variants.
type TokenizerConfig struct {
	Variant            string        `yaml:"variant"`
	DictionaryLocation string        `yaml:"dictionary_location"`
	InitTimeout        time.Duration `yaml:"init_timeout"`
	S3Region           string        `yaml:"s3_region"`
	S3Endpoint         string        `yaml:"s3_endpoint"`
	S3AccessKey        string        `yaml:"s3_access_key"`
	S3SecretKey        string        `yaml:"s3_secret_key"`
	S3UsePathStyle     bool          `yaml:"s3_use_path_style"`
}

// PropagationConfig controls rebuilds after writes
type PropagationConfig struct {
	FailurePolicy   string        `yaml:"failure_policy"`
	Workers         int           `yaml:"workers"`
	RebuildTimeout  time.Duration `yaml:"rebuild_timeout"`
	RepairSchedule  string        `yaml:"repair_schedule"`
	RepairBatchSize int           `yaml:"repair_batch_size"`
	ReindexPageSize int           `yaml:"reindex_page_size"`
}

// SearchConfig holds query defaults
type SearchConfig struct {
	DefaultLimit   int           `yaml:"default_limit"`
	MaxLimit       int           `yaml:"max_limit"`
	SecondaryKey   string        `yaml:"secondary_key"`
	NormalizeRank  bool          `yaml:"normalize_rank"`
	QueryCacheSize int           `yaml:"query_cache_size"`
	QueryCacheTTL  time.Duration `yaml:"query_cache_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
			WarmTokenizer:   true,
		},
		Database: DatabaseConfig{
			Type:        StorageMemory,
			MaxConns:    20,
			MinConns:    2,
			Timeout:     10 * time.Second,
			AutoMigrate: true,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379",
		},
		Tokenizer: TokenizerConfig{
			Variant:     string(tokenizer.VariantDictionary),
			InitTimeout: 2 * time.Minute,
		},
		Propagation: PropagationConfig{
			FailurePolicy:   string(propagation.PolicyBestEffort),
			Workers:         4,
			RebuildTimeout:  30 * time.Second,
			RepairSchedule:  "@every 5m",
			RepairBatchSize: 500,
			ReindexPageSize: 500,
		},
		Search: SearchConfig{
			DefaultLimit:   20,
			MaxLimit:       1000,
			SecondaryKey:   string(search.SortRecency),
			QueryCacheSize: 1024,
			QueryCacheTTL:  10 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "kensaku",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by KENSAKU_CONFIG_FILE if set, then KENSAKU_* environment
// variables, and validates the result.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("KENSAKU_HOST", s.Host)
	s.Port = getEnv("KENSAKU_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("KENSAKU_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("KENSAKU_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("KENSAKU_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("KENSAKU_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("KENSAKU_HEALTH_PORT", s.HealthPort)
	s.WarmTokenizer = getEnvBool("KENSAKU_WARM_TOKENIZER", s.WarmTokenizer)

	d := &c.Database
	d.Type = getEnv("KENSAKU_STORAGE_TYPE", d.Type)
	d.URL = getEnv("KENSAKU_POSTGRES_URL", d.URL)
	if replicas := getEnv("KENSAKU_POSTGRES_REPLICA_URLS", ""); replicas != "" {
		d.ReplicaURLs = postgres.ParseReplicaURLs(replicas)
	}
	d.MaxConns = getEnvInt("KENSAKU_POSTGRES_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvInt("KENSAKU_POSTGRES_MIN_CONNS", d.MinConns)
	d.Timeout = getEnvDuration("KENSAKU_POSTGRES_TIMEOUT", d.Timeout)
	d.AutoMigrate = getEnvBool("KENSAKU_POSTGRES_AUTO_MIGRATE", d.AutoMigrate)

	r := &c.Redis
	r.Enabled = getEnvBool("KENSAKU_REDIS_ENABLED", r.Enabled)
	r.URL = getEnv("KENSAKU_REDIS_URL", r.URL)
	r.Password = getEnv("KENSAKU_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("KENSAKU_REDIS_DB", r.DB)
	r.PoolSize = getEnvInt("KENSAKU_REDIS_POOL_SIZE", r.PoolSize)
	r.KeyPrefix = getEnv("KENSAKU_REDIS_KEY_PREFIX", r.KeyPrefix)

	t := &c.Tokenizer
	t.Variant = getEnv("KENSAKU_TOKENIZER", t.Variant)
	t.DictionaryLocation = getEnv("KENSAKU_DICTIONARY_LOCATION", t.DictionaryLocation)
	t.InitTimeout = getEnvDuration("KENSAKU_TOKENIZER_INIT_TIMEOUT", t.InitTimeout)
	t.S3Region = getEnv("KENSAKU_S3_REGION", t.S3Region)
	t.S3Endpoint = getEnv("KENSAKU_S3_ENDPOINT", t.S3Endpoint)
	t.S3AccessKey = getEnv("KENSAKU_S3_ACCESS_KEY", t.S3AccessKey)
	t.S3SecretKey = getEnv("KENSAKU_S3_SECRET_KEY", t.S3SecretKey)
	t.S3UsePathStyle = getEnvBool("KENSAKU_S3_USE_PATH_STYLE", t.S3UsePathStyle)

	p := &c.Propagation
	p.FailurePolicy = getEnv("KENSAKU_FAILURE_POLICY", p.FailurePolicy)
	p.Workers = getEnvInt("KENSAKU_PROPAGATION_WORKERS", p.Workers)
	p.RebuildTimeout = getEnvDuration("KENSAKU_REBUILD_TIMEOUT", p.RebuildTimeout)
	p.RepairSchedule = getEnv("KENSAKU_REPAIR_SCHEDULE", p.RepairSchedule)
	p.RepairBatchSize = getEnvInt("KENSAKU_REPAIR_BATCH_SIZE", p.RepairBatchSize)
	p.ReindexPageSize = getEnvInt("KENSAKU_REINDEX_PAGE_SIZE", p.ReindexPageSize)

	q := &c.Search
	q.DefaultLimit = getEnvInt("KENSAKU_SEARCH_DEFAULT_LIMIT", q.DefaultLimit)
	q.MaxLimit = getEnvInt("KENSAKU_SEARCH_MAX_LIMIT", q.MaxLimit)
	q.SecondaryKey = getEnv("KENSAKU_SEARCH_SECONDARY_KEY", q.SecondaryKey)
	q.NormalizeRank = getEnvBool("KENSAKU_SEARCH_NORMALIZE_RANK", q.NormalizeRank)
	q.QueryCacheSize = getEnvInt("KENSAKU_QUERY_CACHE_SIZE", q.QueryCacheSize)
	q.QueryCacheTTL = getEnvDuration("KENSAKU_QUERY_CACHE_TTL", q.QueryCacheTTL)

	o := &c.Observability
	o.LogLevel = getEnv("KENSAKU_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("KENSAKU_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("KENSAKU_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("KENSAKU_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("KENSAKU_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("KENSAKU_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("KENSAKU_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("KENSAKU_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}

	switch c.Database.Type {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.URL == "" {
			return errors.New("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Database.Type)
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return errors.New("redis URL is required when redis is enabled")
	}

	if _, err := tokenizer.ParseVariant(c.Tokenizer.Variant); err != nil {
		return err
	}
	if _, err := propagation.ParsePolicy(c.Propagation.FailurePolicy); err != nil {
		return err
	}
	if c.Propagation.Workers < 1 {
		return errors.New("propagation workers must be at least 1")
	}

	if _, err := search.ParseSecondaryKey(c.Search.SecondaryKey); err != nil {
		return err
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits invalid: default %d, max %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// TokenizerOptions converts the tokenizer section. Call after Validate.
func (c *Config) TokenizerOptions() tokenizer.Config {
	t := c.Tokenizer
	return tokenizer.Config{
		Variant:            tokenizer.Variant(t.Variant),
		DictionaryLocation: t.DictionaryLocation,
		InitTimeout:        t.InitTimeout,
		S3: tokenizer.S3Config{
			Region:       t.S3Region,
			Endpoint:     t.S3Endpoint,
			AccessKey:    t.S3AccessKey,
			SecretKey:    t.S3SecretKey,
			UsePathStyle: t.S3UsePathStyle,
		},
	}
}

// PropagationOptions converts the propagation section. Call after Validate.
func (c *Config) PropagationOptions() propagation.Config {
	p := c.Propagation
	return propagation.Config{
		Policy:         propagation.Policy(p.FailurePolicy),
		Workers:        p.Workers,
		RebuildTimeout: p.RebuildTimeout,
		PageSize:       p.ReindexPageSize,
	}
}

// SearchOptions converts the search section. Call after Validate.
func (c *Config) SearchOptions() (search.Config, search.TranslatorConfig) {
	q := c.Search
	key, _ := search.ParseSecondaryKey(q.SecondaryKey)
	return search.Config{
			DefaultLimit:  q.DefaultLimit,
			MaxLimit:      q.MaxLimit,
			SecondaryKey:  key,
			NormalizeRank: q.NormalizeRank,
		}, search.TranslatorConfig{
			CacheSize: q.QueryCacheSize,
			CacheTTL:  q.QueryCacheTTL,
		}
}

// ConnectionOptions converts the database section
func (c *Config) ConnectionOptions() postgres.ConnectionConfig {
	d := c.Database
	return postgres.ConnectionConfig{
		PrimaryURL:  d.URL,
		ReplicaURLs: d.ReplicaURLs,
		MaxConns:    d.MaxConns,
		MinConns:    d.MinConns,
		Timeout:     d.Timeout,
	}
}

// RedisOptions converts the redis section
func (c *Config) RedisOptions() staletrack.RedisConfig {
	r := c.Redis
	return staletrack.RedisConfig{
		URL:       r.URL,
		Password:  r.Password,
		DB:        r.DB,
		PoolSize:  r.PoolSize,
		KeyPrefix: r.KeyPrefix,
	}
}

// OTelOptions converts the tracing settings
func (c *Config) OTelOptions() observability.OTelConfig {
	o := c.Observability
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
		Attributes: map[string]string{
			"kensaku.storage":   c.Database.Type,
			"kensaku.tokenizer": c.Tokenizer.Variant,
		},
	}
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
