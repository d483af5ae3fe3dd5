// Package config reads llm-arxiv settings from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ArxivConfig controls the arXiv API client.
type ArxivConfig struct {
	APIURL    string
	Interval  time.Duration
	Timeout   time.Duration
	UserAgent string
}

// ImagesConfig holds the defaults used when flags are absent.
type ImagesConfig struct {
	// Include is the selection spec applied when -i is not given; empty means no images.
	Include string
	Resize  bool
	MaxSize int
}

// LLMConfig defines models and provider credentials.
type LLMConfig struct {
	Model         string
	FallbackModel string
	MaxTokens     int
	Timeout       time.Duration
	MaxRetries    int
	AnthropicKey  string
	AnthropicURL  string
	OpenAIKey     string
	OpenAIURL     string
}

// CacheConfig configures the Redis metadata cache.
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	TTL      time.Duration
}

// ExportConfig configures S3 export.
type ExportConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	Prefix    string
	Password  string
	AccessKey string
	SecretKey string
}

// MetricsConfig controls where metrics are written at exit.
type MetricsConfig struct {
	Textfile string
	PushURL  string
	Job      string
}

// TempConfig controls temporary directory housekeeping.
type TempConfig struct {
	StaleAge     time.Duration
	SweepOnStart bool
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Arxiv   ArxivConfig
	Images  ImagesConfig
	LLM     LLMConfig
	Cache   CacheConfig
	Export  ExportConfig
	Metrics MetricsConfig
	Temp    TempConfig
}

// Load reads .env files (missing ones are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "warn"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", "true")),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "20"), 20),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "3"), 3),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "14"), 14),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_llm_arxiv",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Arxiv = ArxivConfig{
		APIURL:    getEnv("ARXIV_API_URL", "https://export.arxiv.org/api/query"),
		Interval:  parseDuration(getEnv("ARXIV_INTERVAL", "3s"), 3*time.Second),
		Timeout:   parseDuration(getEnv("ARXIV_TIMEOUT", "60s"), 60*time.Second),
		UserAgent: getEnv("ARXIV_USER_AGENT", "llm-arxiv/1.0"),
	}

	cfg.Images = ImagesConfig{
		Include: getEnv("LLM_ARXIV_IMAGES", ""),
		Resize:  parseBool(getEnv("LLM_ARXIV_RESIZE", "false")),
		MaxSize: parseInt(getEnv("LLM_ARXIV_MAX_SIZE", "512"), 512),
	}

	cfg.LLM = LLMConfig{
		Model:         getEnv("LLM_MODEL", "claude-sonnet-4-5"),
		FallbackModel: getEnv("LLM_FALLBACK_MODEL", "gpt-4.1"),
		MaxTokens:     parseInt(getEnv("LLM_MAX_TOKENS", "4096"), 4096),
		Timeout:       parseDuration(getEnv("LLM_TIMEOUT", "5m"), 5*time.Minute),
		MaxRetries:    parseInt(getEnv("LLM_MAX_RETRIES", "2"), 2),
		AnthropicKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicURL:  getEnv("ANTHROPIC_BASE_URL", ""),
		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIURL:     getEnv("OPENAI_BASE_URL", ""),
	}

	cfg.Cache = CacheConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		TTL:      parseDuration(getEnv("CACHE_TTL", "24h"), 24*time.Hour),
	}
	cfg.Cache.Enabled = cfg.Cache.RedisURL != "" && parseBool(getEnv("CACHE_ENABLED", "true"))

	cfg.Export = ExportConfig{
		Bucket:    getEnv("EXPORT_S3_BUCKET", ""),
		Region:    getEnv("EXPORT_S3_REGION", getEnv("AWS_REGION", "")),
		Endpoint:  getEnv("EXPORT_S3_ENDPOINT", ""),
		PathStyle: parseBool(getEnv("EXPORT_S3_PATH_STYLE", "false")),
		Prefix:    getEnv("EXPORT_S3_PREFIX", "llm-arxiv"),
		Password:  getEnv("EXPORT_ENCRYPTION_PASSWORD", ""),
		AccessKey: getEnv("EXPORT_S3_ACCESS_KEY", ""),
		SecretKey: getEnv("EXPORT_S3_SECRET_KEY", ""),
	}

	cfg.Metrics = MetricsConfig{
		Textfile: getEnv("METRICS_TEXTFILE", ""),
		PushURL:  getEnv("METRICS_PUSHGATEWAY_URL", ""),
		Job:      getEnv("METRICS_JOB", "llm_arxiv"),
	}

	cfg.Temp = TempConfig{
		StaleAge:     parseDuration(getEnv("TEMP_STALE_AGE", "6h"), 6*time.Hour),
		SweepOnStart: parseBool(getEnv("TEMP_SWEEP_ON_START", "false")),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}
