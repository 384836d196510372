// Package config provides configuration management for index-mcp.
// It supports loading configuration from environment variables, files
// (YAML/JSON), and defaults, with a clear precedence order:
// env > file > defaults.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mosif16/index-mcp/internal/validation"
	"gopkg.in/yaml.v3"
)

// Config represents the complete index-mcp configuration.
type Config struct {
	Database      DatabaseConfig      `json:"database" yaml:"database"`
	Ingest        IngestConfig        `json:"ingest" yaml:"ingest"`
	Embedding     EmbeddingConfig     `json:"embedding" yaml:"embedding"`
	Graph         GraphConfig         `json:"graph" yaml:"graph"`
	Eviction      EvictionConfig      `json:"eviction" yaml:"eviction"`
	Bundle        BundleConfig        `json:"bundle" yaml:"bundle"`
	Watch         WatchConfig         `json:"watch" yaml:"watch"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// DatabaseConfig holds SQLite database configuration.
type DatabaseConfig struct {
	// Name is the database filename, resolved relative to the workspace
	// root returned by C1. Siblings -wal/-shm live alongside it.
	Name string `json:"name" yaml:"name"`
}

// IngestConfig holds ingest-pipeline configuration (C2/C3/C9).
type IngestConfig struct {
	IncludeGlobs      []string `json:"include_globs" yaml:"include_globs"`
	ExcludeGlobs      []string `json:"exclude_globs" yaml:"exclude_globs"`
	MaxFileSizeBytes  int64    `json:"max_file_size_bytes" yaml:"max_file_size_bytes"`
	StoreFileContent  bool     `json:"store_file_content" yaml:"store_file_content"`
	Concurrency       int      `json:"concurrency" yaml:"concurrency"`
	AutoEvict         bool     `json:"auto_evict" yaml:"auto_evict"`
}

// EmbeddingConfig holds embedding provider and chunking configuration
// (C5/C6).
type EmbeddingConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Provider        string `json:"provider" yaml:"provider"`
	Model           string `json:"model" yaml:"model"`
	Dimensions      int    `json:"dimensions" yaml:"dimensions"`
	ChunkSizeTokens int    `json:"chunk_size_tokens" yaml:"chunk_size_tokens"`
	OverlapTokens   int    `json:"overlap_tokens" yaml:"overlap_tokens"`
	BatchSize       int    `json:"batch_size" yaml:"batch_size"`
}

// GraphConfig holds graph-extractor configuration (C7).
type GraphConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// EvictionConfig holds eviction-controller configuration (C14).
type EvictionConfig struct {
	MaxDBSizeBytes int64   `json:"max_db_size_bytes" yaml:"max_db_size_bytes"`
	TargetRatio    float64 `json:"target_ratio" yaml:"target_ratio"`
}

// BundleConfig holds context-bundle assembler configuration (C11).
type BundleConfig struct {
	DefaultBudgetTokens int `json:"default_budget_tokens" yaml:"default_budget_tokens"`
}

// WatchConfig holds filesystem-watcher configuration (C15).
type WatchConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	Root         string `json:"root" yaml:"root"`
	DebounceMS   int    `json:"debounce_ms" yaml:"debounce_ms"`
	RunInitial   bool   `json:"run_initial" yaml:"run_initial"`
	Quiet        bool   `json:"quiet" yaml:"quiet"`
	DatabaseName string `json:"database_name" yaml:"database_name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level         string `json:"level" yaml:"level"`
	Format        string `json:"format" yaml:"format"`
	Console       bool   `json:"console" yaml:"console"`
	ConsoleStream string `json:"console_stream" yaml:"console_stream"`
	Dir           string `json:"dir" yaml:"dir"`
	File          string `json:"file" yaml:"file"`
}

// ObservabilityConfig holds observability configuration. Carried as
// ambient stack regardless of spec.md's ranking/serving Non-goals.
type ObservabilityConfig struct {
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Sentry  SentryConfig  `json:"sentry" yaml:"sentry"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	OTLPEndpoint   string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate" yaml:"sample_rate"`
}

// SentryConfig holds Sentry error-monitoring configuration.
type SentryConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	DSN         string  `json:"dsn" yaml:"dsn"`
	Environment string  `json:"environment" yaml:"environment"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
	Release     string  `json:"release" yaml:"release"`
}

// Default values
const (
	DefaultDatabaseName        = ".mcp-index.sqlite"
	DefaultMaxFileSizeBytes    = 8 * 1024 * 1024 // 8 MiB
	DefaultStoreFileContent    = true
	DefaultIngestConcurrency   = 0 // 0 => min(max(2, GOMAXPROCS), 16)
	DefaultAutoEvict           = true
	DefaultEmbeddingEnabled    = true
	DefaultEmbeddingProvider   = "mock"
	DefaultEmbeddingModel      = "mock-768"
	DefaultEmbeddingDimensions = 768
	DefaultChunkSizeTokens     = 256
	DefaultOverlapTokens       = 32
	DefaultBatchSize           = 32
	DefaultGraphEnabled        = true
	DefaultMaxDBSizeBytes      = 512 * 1024 * 1024 // 512 MiB
	DefaultEvictionTargetRatio = 0.8
	DefaultBundleBudgetTokens  = 3000
	DefaultWatchDebounceMS     = 500
	DefaultWatchRunInitial     = true
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultLogConsoleStream    = "stderr"
	DefaultMetricsEnabled      = false
	DefaultMetricsPort         = 9091
	DefaultMetricsPath         = "/metrics"
	DefaultTracingEnabled      = false
	DefaultSampleRate          = 0.1
	DefaultSentryEnabled       = false
	DefaultSentryEnv           = "development"
	DefaultSentrySampleRate    = 1.0
	DefaultSentryRelease       = "0.1.0"
)

// Valid values for validation
var (
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"json", "text"}
)

var defaultExcludeGlobs = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/dist/**",
	"**/build/**",
	"**/.mcp-index.sqlite",
	"**/.mcp-index.sqlite-wal",
	"**/.mcp-index.sqlite-shm",
}

// Load loads configuration from environment variables and an optional
// config file. Precedence: env vars > config file > defaults.
func Load(ctx context.Context) (*Config, error) {
	cfg := defaults()

	if configFile := os.Getenv("INDEX_MCP_CONFIG_FILE"); configFile != "" {
		validatedPath, err := validation.ValidateConfigPath(configFile)
		if err != nil {
			return nil, fmt.Errorf("config file path validation failed: %w", err)
		}

		fileCfg, err := loadFile(validatedPath)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		cfg = merge(cfg, fileCfg)
	}

	cfg = loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config with all default values.
func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Name: DefaultDatabaseName,
		},
		Ingest: IngestConfig{
			IncludeGlobs:     []string{"**/*"},
			ExcludeGlobs:     append([]string(nil), defaultExcludeGlobs...),
			MaxFileSizeBytes: DefaultMaxFileSizeBytes,
			StoreFileContent: DefaultStoreFileContent,
			Concurrency:      DefaultIngestConcurrency,
			AutoEvict:        DefaultAutoEvict,
		},
		Embedding: EmbeddingConfig{
			Enabled:         DefaultEmbeddingEnabled,
			Provider:        DefaultEmbeddingProvider,
			Model:           DefaultEmbeddingModel,
			Dimensions:      DefaultEmbeddingDimensions,
			ChunkSizeTokens: DefaultChunkSizeTokens,
			OverlapTokens:   DefaultOverlapTokens,
			BatchSize:       DefaultBatchSize,
		},
		Graph: GraphConfig{
			Enabled: DefaultGraphEnabled,
		},
		Eviction: EvictionConfig{
			MaxDBSizeBytes: DefaultMaxDBSizeBytes,
			TargetRatio:    DefaultEvictionTargetRatio,
		},
		Bundle: BundleConfig{
			DefaultBudgetTokens: DefaultBundleBudgetTokens,
		},
		Watch: WatchConfig{
			Enabled:      false,
			DebounceMS:   DefaultWatchDebounceMS,
			RunInitial:   DefaultWatchRunInitial,
			DatabaseName: DefaultDatabaseName,
		},
		Logging: LoggingConfig{
			Level:         DefaultLogLevel,
			Format:        DefaultLogFormat,
			ConsoleStream: DefaultLogConsoleStream,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
				Port:    DefaultMetricsPort,
				Path:    DefaultMetricsPath,
			},
			Tracing: TracingConfig{
				Enabled:    DefaultTracingEnabled,
				SampleRate: DefaultSampleRate,
			},
			Sentry: SentryConfig{
				Enabled:     DefaultSentryEnabled,
				Environment: DefaultSentryEnv,
				SampleRate:  DefaultSentrySampleRate,
				Release:     DefaultSentryRelease,
			},
		},
	}
}

// Default returns a default configuration for testing and documentation.
func Default() *Config {
	return defaults()
}

// loadFile loads configuration from a YAML or JSON file.
func loadFile(path string) (*Config, error) {
	safePath := filepath.Clean(path)

	data, err := os.ReadFile(safePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := &Config{}
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}

	return cfg, nil
}

// loadEnv loads configuration from environment variables. Only
// overrides non-zero values in the provided config.
func loadEnv(cfg *Config) *Config {
	if name := os.Getenv("INDEX_MCP_DATABASE_NAME"); name != "" {
		cfg.Database.Name = name
	}

	if maxFileSize := os.Getenv("INDEX_MCP_MAX_FILE_SIZE_BYTES"); maxFileSize != "" {
		if v, err := strconv.ParseInt(maxFileSize, 10, 64); err == nil {
			cfg.Ingest.MaxFileSizeBytes = v
		}
	}
	if storeContent := os.Getenv("INDEX_MCP_STORE_FILE_CONTENT"); storeContent != "" {
		if v, err := strconv.ParseBool(storeContent); err == nil {
			cfg.Ingest.StoreFileContent = v
		}
	}
	if concurrency := os.Getenv("INDEX_MCP_INGEST_CONCURRENCY"); concurrency != "" {
		if v, err := strconv.Atoi(concurrency); err == nil {
			cfg.Ingest.Concurrency = v
		}
	}
	if autoEvict := os.Getenv("INDEX_MCP_AUTO_EVICT"); autoEvict != "" {
		if v, err := strconv.ParseBool(autoEvict); err == nil {
			cfg.Ingest.AutoEvict = v
		}
	}
	if include := os.Getenv("INDEX_MCP_INCLUDE_GLOBS"); include != "" {
		cfg.Ingest.IncludeGlobs = splitCSV(include)
	}
	if exclude := os.Getenv("INDEX_MCP_EXCLUDE_GLOBS"); exclude != "" {
		cfg.Ingest.ExcludeGlobs = splitCSV(exclude)
	}

	if embeddingEnabled := os.Getenv("INDEX_MCP_EMBEDDING_ENABLED"); embeddingEnabled != "" {
		if v, err := strconv.ParseBool(embeddingEnabled); err == nil {
			cfg.Embedding.Enabled = v
		}
	}
	if provider := os.Getenv("INDEX_MCP_EMBEDDING_PROVIDER"); provider != "" {
		cfg.Embedding.Provider = provider
	}
	if model := os.Getenv("INDEX_MCP_EMBEDDING_MODEL"); model != "" {
		cfg.Embedding.Model = model
	}
	if dimensions := os.Getenv("INDEX_MCP_EMBEDDING_DIMENSIONS"); dimensions != "" {
		if v, err := strconv.Atoi(dimensions); err == nil {
			cfg.Embedding.Dimensions = v
		}
	}
	if chunkSize := os.Getenv("INDEX_MCP_CHUNK_SIZE_TOKENS"); chunkSize != "" {
		if v, err := strconv.Atoi(chunkSize); err == nil {
			cfg.Embedding.ChunkSizeTokens = v
		}
	}
	if overlap := os.Getenv("INDEX_MCP_OVERLAP_TOKENS"); overlap != "" {
		if v, err := strconv.Atoi(overlap); err == nil {
			cfg.Embedding.OverlapTokens = v
		}
	}
	if batchSize := os.Getenv("INDEX_MCP_BATCH_SIZE"); batchSize != "" {
		if v, err := strconv.Atoi(batchSize); err == nil {
			cfg.Embedding.BatchSize = v
		}
	}

	if graphEnabled := os.Getenv("INDEX_MCP_GRAPH_ENABLED"); graphEnabled != "" {
		if v, err := strconv.ParseBool(graphEnabled); err == nil {
			cfg.Graph.Enabled = v
		}
	}

	if maxDBSize := os.Getenv("INDEX_MCP_MAX_DB_SIZE_BYTES"); maxDBSize != "" {
		if v, err := strconv.ParseInt(maxDBSize, 10, 64); err == nil {
			cfg.Eviction.MaxDBSizeBytes = v
		}
	}
	if targetRatio := os.Getenv("INDEX_MCP_EVICTION_TARGET_RATIO"); targetRatio != "" {
		if v, err := strconv.ParseFloat(targetRatio, 64); err == nil {
			cfg.Eviction.TargetRatio = v
		}
	}

	if budget := os.Getenv("INDEX_MCP_BUDGET_TOKENS"); budget != "" {
		if v, err := strconv.Atoi(budget); err == nil {
			cfg.Bundle.DefaultBudgetTokens = v
		}
	}

	if watchEnabled := os.Getenv("INDEX_MCP_WATCH_ENABLED"); watchEnabled != "" {
		if v, err := strconv.ParseBool(watchEnabled); err == nil {
			cfg.Watch.Enabled = v
		}
	}
	if watchRoot := os.Getenv("INDEX_MCP_WATCH_ROOT"); watchRoot != "" {
		cfg.Watch.Root = watchRoot
	}
	if debounce := os.Getenv("INDEX_MCP_WATCH_DEBOUNCE_MS"); debounce != "" {
		if v, err := strconv.Atoi(debounce); err == nil {
			cfg.Watch.DebounceMS = v
		}
	}
	if runInitial := os.Getenv("INDEX_MCP_WATCH_RUN_INITIAL"); runInitial != "" {
		if v, err := strconv.ParseBool(runInitial); err == nil {
			cfg.Watch.RunInitial = v
		}
	}
	if quiet := os.Getenv("INDEX_MCP_WATCH_QUIET"); quiet != "" {
		if v, err := strconv.ParseBool(quiet); err == nil {
			cfg.Watch.Quiet = v
		}
	}
	if watchDB := os.Getenv("INDEX_MCP_WATCH_DATABASE"); watchDB != "" {
		cfg.Watch.DatabaseName = watchDB
	}

	if logLevel := os.Getenv("INDEX_MCP_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("INDEX_MCP_LOG_FORMAT"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if logConsole := os.Getenv("INDEX_MCP_LOG_CONSOLE"); logConsole != "" {
		if v, err := strconv.ParseBool(logConsole); err == nil {
			cfg.Logging.Console = v
		}
	}
	if logConsoleStream := os.Getenv("INDEX_MCP_LOG_CONSOLE_STREAM"); logConsoleStream != "" {
		cfg.Logging.ConsoleStream = logConsoleStream
	}
	if logDir := os.Getenv("INDEX_MCP_LOG_DIR"); logDir != "" {
		cfg.Logging.Dir = logDir
	}
	if logFile := os.Getenv("INDEX_MCP_LOG_FILE"); logFile != "" {
		cfg.Logging.File = logFile
	}

	if metricsEnabled := os.Getenv("INDEX_MCP_METRICS_ENABLED"); metricsEnabled != "" {
		if v, err := strconv.ParseBool(metricsEnabled); err == nil {
			cfg.Observability.Metrics.Enabled = v
		}
	}
	if metricsPort := os.Getenv("INDEX_MCP_METRICS_PORT"); metricsPort != "" {
		if v, err := strconv.Atoi(metricsPort); err == nil {
			cfg.Observability.Metrics.Port = v
		}
	}
	if metricsPath := os.Getenv("INDEX_MCP_METRICS_PATH"); metricsPath != "" {
		cfg.Observability.Metrics.Path = metricsPath
	}

	if tracingEnabled := os.Getenv("INDEX_MCP_TRACING_ENABLED"); tracingEnabled != "" {
		if v, err := strconv.ParseBool(tracingEnabled); err == nil {
			cfg.Observability.Tracing.Enabled = v
		}
	}
	if otlpEndpoint := os.Getenv("INDEX_MCP_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Observability.Tracing.OTLPEndpoint = otlpEndpoint
		cfg.Observability.Tracing.Enabled = true
	}
	if sampleRate := os.Getenv("INDEX_MCP_TRACING_SAMPLE_RATE"); sampleRate != "" {
		if v, err := strconv.ParseFloat(sampleRate, 64); err == nil {
			cfg.Observability.Tracing.SampleRate = v
		}
	}

	if sentryEnabled := os.Getenv("INDEX_MCP_SENTRY_ENABLED"); sentryEnabled != "" {
		if v, err := strconv.ParseBool(sentryEnabled); err == nil {
			cfg.Observability.Sentry.Enabled = v
		}
	}
	if sentryDSN := os.Getenv("INDEX_MCP_SENTRY_DSN"); sentryDSN != "" {
		cfg.Observability.Sentry.DSN = sentryDSN
		cfg.Observability.Sentry.Enabled = true
	}
	if sentryEnv := os.Getenv("INDEX_MCP_SENTRY_ENVIRONMENT"); sentryEnv != "" {
		cfg.Observability.Sentry.Environment = sentryEnv
	}
	if sentrySampleRate := os.Getenv("INDEX_MCP_SENTRY_SAMPLE_RATE"); sentrySampleRate != "" {
		if v, err := strconv.ParseFloat(sentrySampleRate, 64); err == nil {
			cfg.Observability.Sentry.SampleRate = v
		}
	}
	if sentryRelease := os.Getenv("INDEX_MCP_SENTRY_RELEASE"); sentryRelease != "" {
		cfg.Observability.Sentry.Release = sentryRelease
	}

	return cfg
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// merge merges two configs, preferring values from 'override' when
// non-zero.
func merge(base, override *Config) *Config {
	result := *base

	if override.Database.Name != "" {
		result.Database.Name = override.Database.Name
	}

	if len(override.Ingest.IncludeGlobs) > 0 {
		result.Ingest.IncludeGlobs = override.Ingest.IncludeGlobs
	}
	if len(override.Ingest.ExcludeGlobs) > 0 {
		result.Ingest.ExcludeGlobs = override.Ingest.ExcludeGlobs
	}
	if override.Ingest.MaxFileSizeBytes != 0 {
		result.Ingest.MaxFileSizeBytes = override.Ingest.MaxFileSizeBytes
	}
	if override.Ingest.Concurrency != 0 {
		result.Ingest.Concurrency = override.Ingest.Concurrency
	}

	if override.Embedding.Provider != "" {
		result.Embedding.Provider = override.Embedding.Provider
	}
	if override.Embedding.Model != "" {
		result.Embedding.Model = override.Embedding.Model
	}
	if override.Embedding.Dimensions != 0 {
		result.Embedding.Dimensions = override.Embedding.Dimensions
	}
	if override.Embedding.ChunkSizeTokens != 0 {
		result.Embedding.ChunkSizeTokens = override.Embedding.ChunkSizeTokens
	}
	if override.Embedding.OverlapTokens != 0 {
		result.Embedding.OverlapTokens = override.Embedding.OverlapTokens
	}
	if override.Embedding.BatchSize != 0 {
		result.Embedding.BatchSize = override.Embedding.BatchSize
	}

	if override.Eviction.MaxDBSizeBytes != 0 {
		result.Eviction.MaxDBSizeBytes = override.Eviction.MaxDBSizeBytes
	}
	if override.Eviction.TargetRatio != 0 {
		result.Eviction.TargetRatio = override.Eviction.TargetRatio
	}

	if override.Bundle.DefaultBudgetTokens != 0 {
		result.Bundle.DefaultBudgetTokens = override.Bundle.DefaultBudgetTokens
	}

	if override.Watch.Enabled {
		result.Watch.Enabled = override.Watch.Enabled
	}
	if override.Watch.Root != "" {
		result.Watch.Root = override.Watch.Root
	}
	if override.Watch.DebounceMS != 0 {
		result.Watch.DebounceMS = override.Watch.DebounceMS
	}
	if override.Watch.DatabaseName != "" {
		result.Watch.DatabaseName = override.Watch.DatabaseName
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}
	if override.Logging.Dir != "" {
		result.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.File != "" {
		result.Logging.File = override.Logging.File
	}

	if override.Observability.Metrics.Enabled != DefaultMetricsEnabled {
		result.Observability.Metrics.Enabled = override.Observability.Metrics.Enabled
	}
	if override.Observability.Metrics.Port != 0 {
		result.Observability.Metrics.Port = override.Observability.Metrics.Port
	}
	if override.Observability.Metrics.Path != "" {
		result.Observability.Metrics.Path = override.Observability.Metrics.Path
	}

	if override.Observability.Tracing.Enabled != DefaultTracingEnabled {
		result.Observability.Tracing.Enabled = override.Observability.Tracing.Enabled
	}
	if override.Observability.Tracing.OTLPEndpoint != "" {
		result.Observability.Tracing.OTLPEndpoint = override.Observability.Tracing.OTLPEndpoint
	}
	if override.Observability.Tracing.SampleRate != 0 {
		result.Observability.Tracing.SampleRate = override.Observability.Tracing.SampleRate
	}

	if override.Observability.Sentry.Enabled != DefaultSentryEnabled {
		result.Observability.Sentry.Enabled = override.Observability.Sentry.Enabled
	}
	if override.Observability.Sentry.DSN != "" {
		result.Observability.Sentry.DSN = override.Observability.Sentry.DSN
	}
	if override.Observability.Sentry.Environment != "" {
		result.Observability.Sentry.Environment = override.Observability.Sentry.Environment
	}
	if override.Observability.Sentry.SampleRate != 0 {
		result.Observability.Sentry.SampleRate = override.Observability.Sentry.SampleRate
	}
	if override.Observability.Sentry.Release != "" {
		result.Observability.Sentry.Release = override.Observability.Sentry.Release
	}

	return &result
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}

	if c.Ingest.MaxFileSizeBytes < 1 {
		return fmt.Errorf("max file size bytes must be positive: %d", c.Ingest.MaxFileSizeBytes)
	}
	if c.Ingest.Concurrency < 0 {
		return fmt.Errorf("ingest concurrency cannot be negative: %d", c.Ingest.Concurrency)
	}

	if c.Embedding.ChunkSizeTokens < 1 {
		return fmt.Errorf("chunk size tokens must be positive: %d", c.Embedding.ChunkSizeTokens)
	}
	if c.Embedding.OverlapTokens < 0 {
		return fmt.Errorf("overlap tokens cannot be negative: %d", c.Embedding.OverlapTokens)
	}
	if c.Embedding.OverlapTokens >= c.Embedding.ChunkSizeTokens {
		return fmt.Errorf("overlap tokens (%d) must be less than chunk size tokens (%d)",
			c.Embedding.OverlapTokens, c.Embedding.ChunkSizeTokens)
	}
	if c.Embedding.BatchSize < 1 {
		return fmt.Errorf("embedding batch size must be positive: %d", c.Embedding.BatchSize)
	}

	if c.Eviction.MaxDBSizeBytes < 1 {
		return fmt.Errorf("max db size bytes must be positive: %d", c.Eviction.MaxDBSizeBytes)
	}
	if c.Eviction.TargetRatio <= 0 || c.Eviction.TargetRatio >= 1 {
		return fmt.Errorf("eviction target ratio must be in (0, 1): %f", c.Eviction.TargetRatio)
	}

	if c.Bundle.DefaultBudgetTokens < 1 {
		return fmt.Errorf("default budget tokens must be positive: %d", c.Bundle.DefaultBudgetTokens)
	}

	if c.Watch.DebounceMS < 50 {
		return fmt.Errorf("watch debounce must be at least 50ms: %d", c.Watch.DebounceMS)
	}

	if !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}

	if c.Observability.Metrics.Enabled {
		if c.Observability.Metrics.Port < 1 || c.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d (must be 1-65535)", c.Observability.Metrics.Port)
		}
		if c.Observability.Metrics.Path == "" {
			return fmt.Errorf("metrics path cannot be empty when metrics enabled")
		}
	}

	if c.Observability.Tracing.Enabled {
		if c.Observability.Tracing.SampleRate < 0 || c.Observability.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing sample rate must be between 0 and 1: %f", c.Observability.Tracing.SampleRate)
		}
	}

	if c.Observability.Sentry.Enabled {
		if c.Observability.Sentry.DSN == "" {
			return fmt.Errorf("sentry DSN cannot be empty when sentry enabled")
		}
		if c.Observability.Sentry.SampleRate < 0 || c.Observability.Sentry.SampleRate > 1 {
			return fmt.Errorf("sentry sample rate must be between 0 and 1: %f", c.Observability.Sentry.SampleRate)
		}
	}

	return nil
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
