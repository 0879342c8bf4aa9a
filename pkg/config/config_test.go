package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/kensaku/pkg/observability"
	"github.com/platinummonkey/kensaku/pkg/propagation"
	"github.com/platinummonkey/kensaku/pkg/search"
	"github.com/platinummonkey/kensaku/pkg/tokenizer"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_NOT_SET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_BOOL_NOT_SET", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.Equal(t, 0.25, getEnvFloat("TEST_FLOAT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION_NOT_SET", time.Second))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorageMemory, cfg.Database.Type)
	assert.Equal(t, string(tokenizer.VariantDictionary), cfg.Tokenizer.Variant)
	assert.Equal(t, string(propagation.PolicyBestEffort), cfg.Propagation.FailurePolicy)
	assert.Equal(t, observability.InfoLevel, cfg.LogLevel())

	searchCfg, translatorCfg := cfg.SearchOptions()
	assert.Equal(t, search.SortRecency, searchCfg.SecondaryKey)
	assert.Equal(t, 20, searchCfg.DefaultLimit)
	assert.Equal(t, 1024, translatorCfg.CacheSize)

	otelCfg := cfg.OTelOptions()
	assert.False(t, otelCfg.Enabled)
	assert.Equal(t, StorageMemory, otelCfg.Attributes["kensaku.storage"])
	assert.Equal(t, cfg.Tokenizer.Variant, otelCfg.Attributes["kensaku.tokenizer"])
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("KENSAKU_PORT", "8000")
	t.Setenv("KENSAKU_STORAGE_TYPE", "postgres")
	t.Setenv("KENSAKU_POSTGRES_URL", "postgres://localhost/kensaku")
	t.Setenv("KENSAKU_POSTGRES_REPLICA_URLS", "postgres://r1/kensaku, postgres://r2/kensaku")
	t.Setenv("KENSAKU_TOKENIZER", "heuristic")
	t.Setenv("KENSAKU_FAILURE_POLICY", "fail-fast")
	t.Setenv("KENSAKU_PROPAGATION_WORKERS", "8")
	t.Setenv("KENSAKU_SEARCH_SECONDARY_KEY", "id")
	t.Setenv("KENSAKU_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, []string{"postgres://r1/kensaku", "postgres://r2/kensaku"}, cfg.ConnectionOptions().ReplicaURLs)
	assert.Equal(t, tokenizer.VariantHeuristic, cfg.TokenizerOptions().Variant)

	prop := cfg.PropagationOptions()
	assert.Equal(t, propagation.PolicyFailFast, prop.Policy)
	assert.Equal(t, 8, prop.Workers)

	searchCfg, _ := cfg.SearchOptions()
	assert.Equal(t, search.SortID, searchCfg.SecondaryKey)
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel())
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kensaku.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
  health_port: "7001"
tokenizer:
  variant: dictionary
  dictionary_location: s3://dicts/ipa.dict
  init_timeout: 45s
  s3_region: ap-northeast-1
propagation:
  failure_policy: fail-fast
  rebuild_timeout: 5s
search:
  normalize_rank: true
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("KENSAKU_PORT", "7500")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7500", cfg.Server.Port, "environment overrides the file")
	assert.Equal(t, "7001", cfg.Server.HealthPort)

	tok := cfg.TokenizerOptions()
	assert.Equal(t, "s3://dicts/ipa.dict", tok.DictionaryLocation)
	assert.Equal(t, 45*time.Second, tok.InitTimeout)
	assert.Equal(t, "ap-northeast-1", tok.S3.Region)

	assert.Equal(t, 5*time.Second, cfg.PropagationOptions().RebuildTimeout)
	assert.Equal(t, 4, cfg.PropagationOptions().Workers, "unset keys keep their defaults")

	searchCfg, _ := cfg.SearchOptions()
	assert.True(t, searchCfg.NormalizeRank)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
		t.Setenv(ConfigFileEnv, path)
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Database.Type = StoragePostgres },
			wantErr: "postgres URL is required",
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.Database.Type = "filesystem" },
			wantErr: "invalid storage type",
		},
		{
			name:    "unknown tokenizer variant",
			mutate:  func(c *Config) { c.Tokenizer.Variant = "auto" },
			wantErr: "auto",
		},
		{
			name:    "unknown failure policy",
			mutate:  func(c *Config) { c.Propagation.FailurePolicy = "retry" },
			wantErr: "retry",
		},
		{
			name:    "no workers",
			mutate:  func(c *Config) { c.Propagation.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "unknown secondary key",
			mutate:  func(c *Config) { c.Search.SecondaryKey = "title" },
			wantErr: "title",
		},
		{
			name:    "max below default",
			mutate:  func(c *Config) { c.Search.MaxLimit = 5 },
			wantErr: "search limits",
		},
		{
			name:    "redis enabled without url",
			mutate:  func(c *Config) { c.Redis.Enabled = true; c.Redis.URL = "" },
			wantErr: "redis URL",
		},
		{
			name:    "otel without endpoint",
			mutate:  func(c *Config) { c.Observability.OTelEnabled = true; c.Observability.OTelEndpoint = "" },
			wantErr: "OpenTelemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
