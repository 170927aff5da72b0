package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	GitHub    GitHubConfig
	Retry     RetryConfig
	Store     StoreConfig
	AI        AIConfig
	Quota     QuotaConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// GitHubConfig configures GitHub API interactions.
type GitHubConfig struct {
	APIBaseURL        string
	RequestTimeout    time.Duration
	MaxCommits        int
	DetailConcurrency int
	App               GitHubAppConfig
}

// GitHubAppConfig configures optional GitHub App installation authentication.
// When AppID is zero the service expects a per-request token instead.
type GitHubAppConfig struct {
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// RetryConfig configures retries for transient GitHub failures.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// StoreConfig configures the analysis progress store.
type StoreConfig struct {
	Backend            string
	RedisMode          string
	RedisAddr          string
	RedisMasterSet     string
	RedisSentinelAddrs []string
	RedisPassword      string
	RedisDB            int
	TTL                time.Duration
	SweepInterval      time.Duration
}

// AIConfig configures the external model call.
type AIConfig struct {
	Enabled               bool
	APIBaseURL            string
	Model                 string
	APIKey                string
	RequestTimeout        time.Duration
	MaxPromptCommits      int
	MaxPromptDependencies int
}

// QuotaConfig caps how many analysis runs may start per day. A zero
// daily limit disables the cap.
type QuotaConfig struct {
	DailyLimit int
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELExporterEndpoint string
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML and validates the result.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}

	if c.GitHub.MaxCommits <= 0 {
		errs = append(errs, "github.max_commits must be > 0")
	}
	if c.GitHub.DetailConcurrency <= 0 {
		errs = append(errs, "github.detail_concurrency must be > 0")
	}
	if c.GitHub.App.AppID > 0 {
		if c.GitHub.App.InstallationID <= 0 {
			errs = append(errs, "github.app.installation_id must be > 0 when github.app.app_id is set")
		}
		if c.GitHub.App.PrivateKeyPath == "" {
			errs = append(errs, "github.app.private_key_path is required when github.app.app_id is set")
		}
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "retry.max_attempts must be > 0")
	}
	if c.Retry.BackoffMultiplier < 1 {
		errs = append(errs, "retry.backoff_multiplier must be >= 1")
	}

	if c.Store.Backend != "memory" && c.Store.Backend != "redis" {
		errs = append(errs, "store.backend must be memory or redis")
	}
	if c.Store.Backend == "redis" {
		if c.Store.RedisMode != "standalone" && c.Store.RedisMode != "sentinel" {
			errs = append(errs, "store.redis_mode must be standalone or sentinel")
		}
		if c.Store.RedisMode == "standalone" && c.Store.RedisAddr == "" {
			errs = append(errs, "store.redis_addr is required when store.backend=redis")
		}
		if c.Store.RedisMode == "sentinel" && len(c.Store.RedisSentinelAddrs) == 0 {
			errs = append(errs, "store.redis_sentinel_addrs is required when store.redis_mode=sentinel")
		}
	}
	if c.Store.TTL <= 0 {
		errs = append(errs, "store.ttl must be > 0")
	}
	if c.Store.SweepInterval <= 0 {
		errs = append(errs, "store.sweep_interval must be > 0")
	}

	if c.AI.Enabled {
		if c.AI.Model == "" {
			errs = append(errs, "ai.model is required when ai.enabled=true")
		}
		if c.AI.APIKey == "" {
			errs = append(errs, "ai.api_key is required when ai.enabled=true")
		}
	}

	if c.Quota.DailyLimit < 0 {
		errs = append(errs, "quota.daily_limit must be >= 0")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.GitHub.RequestTimeout <= 0 {
		cfg.GitHub.RequestTimeout = 10 * time.Second
	}
	if cfg.GitHub.MaxCommits == 0 {
		cfg.GitHub.MaxCommits = 100
	}
	if cfg.GitHub.DetailConcurrency == 0 {
		cfg.GitHub.DetailConcurrency = 4
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = 1.5
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.RedisMode == "" {
		cfg.Store.RedisMode = "standalone"
	}
	if cfg.Store.TTL <= 0 {
		cfg.Store.TTL = time.Hour
	}
	if cfg.Store.SweepInterval <= 0 {
		cfg.Store.SweepInterval = 30 * time.Minute
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 30 * time.Second
	}
	if cfg.AI.MaxPromptCommits == 0 {
		cfg.AI.MaxPromptCommits = 30
	}
	if cfg.AI.MaxPromptDependencies == 0 {
		cfg.AI.MaxPromptDependencies = 15
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	GitHub    rawGitHub    `yaml:"github"`
	Retry     rawRetry     `yaml:"retry"`
	Store     rawStore     `yaml:"store"`
	AI        rawAI        `yaml:"ai"`
	Quota     rawQuota     `yaml:"quota"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL        string          `yaml:"api_base_url"`
	RequestTimeout    duration        `yaml:"request_timeout"`
	MaxCommits        int             `yaml:"max_commits"`
	DetailConcurrency int             `yaml:"detail_concurrency"`
	App               GitHubAppConfig `yaml:"app"`
}

type rawRetry struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	InitialBackoff    duration `yaml:"initial_backoff"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	MaxBackoff        duration `yaml:"max_backoff"`
}

type rawStore struct {
	Backend            string   `yaml:"backend"`
	RedisMode          string   `yaml:"redis_mode"`
	RedisAddr          string   `yaml:"redis_addr"`
	RedisMasterSet     string   `yaml:"redis_master_set"`
	RedisSentinelAddrs []string `yaml:"redis_sentinel_addrs"`
	RedisPassword      string   `yaml:"redis_password"`
	RedisDB            int      `yaml:"redis_db"`
	TTL                duration `yaml:"ttl"`
	SweepInterval      duration `yaml:"sweep_interval"`
}

type rawAI struct {
	Enabled               bool     `yaml:"enabled"`
	APIBaseURL            string   `yaml:"api_base_url"`
	Model                 string   `yaml:"model"`
	APIKey                string   `yaml:"api_key"`
	RequestTimeout        duration `yaml:"request_timeout"`
	MaxPromptCommits      int      `yaml:"max_prompt_commits"`
	MaxPromptDependencies int      `yaml:"max_prompt_dependencies"`
}

type rawQuota struct {
	DailyLimit int `yaml:"daily_limit"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELExporterEndpoint string  `yaml:"otel_exporter_otlp_endpoint"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		Server: r.Server,
		GitHub: GitHubConfig{
			APIBaseURL:        r.GitHub.APIBaseURL,
			RequestTimeout:    r.GitHub.RequestTimeout.Duration,
			MaxCommits:        r.GitHub.MaxCommits,
			DetailConcurrency: r.GitHub.DetailConcurrency,
			App:               r.GitHub.App,
		},
		Retry: RetryConfig{
			MaxAttempts:       r.Retry.MaxAttempts,
			InitialBackoff:    r.Retry.InitialBackoff.Duration,
			BackoffMultiplier: r.Retry.BackoffMultiplier,
			MaxBackoff:        r.Retry.MaxBackoff.Duration,
		},
		Store: StoreConfig{
			Backend:            r.Store.Backend,
			RedisMode:          r.Store.RedisMode,
			RedisAddr:          r.Store.RedisAddr,
			RedisMasterSet:     r.Store.RedisMasterSet,
			RedisSentinelAddrs: r.Store.RedisSentinelAddrs,
			RedisPassword:      r.Store.RedisPassword,
			RedisDB:            r.Store.RedisDB,
			TTL:                r.Store.TTL.Duration,
			SweepInterval:      r.Store.SweepInterval.Duration,
		},
		AI: AIConfig{
			Enabled:               r.AI.Enabled,
			APIBaseURL:            r.AI.APIBaseURL,
			Model:                 r.AI.Model,
			APIKey:                r.AI.APIKey,
			RequestTimeout:        r.AI.RequestTimeout.Duration,
			MaxPromptCommits:      r.AI.MaxPromptCommits,
			MaxPromptDependencies: r.AI.MaxPromptDependencies,
		},
		Quota: QuotaConfig{
			DailyLimit: r.Quota.DailyLimit,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELExporterEndpoint: r.Telemetry.OTELExporterEndpoint,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}
}
