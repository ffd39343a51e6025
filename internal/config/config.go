package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Index     IndexConfig     `mapstructure:"index"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

// EmbeddingConfig selects the embedding backend. Model and dimension are
// fixed for the lifetime of a project's collections; changing either
// requires a fresh store, not an in-place migration.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
}

type VectorConfig struct {
	Backend        string `mapstructure:"backend"` // "qdrant" or "memory"
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	CodeCollection string `mapstructure:"code_collection"`
	TaskCollection string `mapstructure:"task_collection"`
}

type IndexConfig struct {
	// Extensions is the allow-list of file extensions (without dot).
	Extensions []string `mapstructure:"extensions"`
	// MaxChunkTokens bounds chunk size using the chars/4 heuristic.
	MaxChunkTokens int `mapstructure:"max_chunk_tokens"`
	// MinChunkTokens is the floor below which a trailing chunk is merged
	// into its predecessor.
	MinChunkTokens int   `mapstructure:"min_chunk_tokens"`
	MaxFileBytes   int64 `mapstructure:"max_file_bytes"`
	Workers        int   `mapstructure:"workers"`
	// StateDir holds the per-project path manifest.
	StateDir string `mapstructure:"state_dir"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultExtensions is the built-in allow-list of indexable source extensions.
var DefaultExtensions = []string{
	"go", "py", "js", "jsx", "ts", "tsx", "java", "rb", "rs",
	"c", "h", "cpp", "hpp", "cc", "cs", "php", "swift", "kt",
	"scala", "sh", "sql", "proto", "yaml", "yml", "toml", "md",
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Embedding.Dimension <= 0 {
		warnings = append(warnings, fmt.Sprintf("embedding dimension %d is not positive", c.Embedding.Dimension))
	}
	if c.Embedding.Provider != "" && c.Embedding.Provider != "static" && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		warnings = append(warnings, fmt.Sprintf("embedding provider '%s' is configured but api_key and base_url are both empty", c.Embedding.Provider))
	}
	if c.Vector.Backend != "qdrant" && c.Vector.Backend != "memory" {
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s' (expected qdrant or memory)", c.Vector.Backend))
	}
	if len(c.Index.Extensions) == 0 {
		warnings = append(warnings, "extension allow-list is empty; nothing will be indexed")
	}
	if c.Index.MinChunkTokens >= c.Index.MaxChunkTokens {
		warnings = append(warnings, fmt.Sprintf("min_chunk_tokens %d >= max_chunk_tokens %d", c.Index.MinChunkTokens, c.Index.MaxChunkTokens))
	}

	return warnings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("vector.backend", "qdrant")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.code_collection", "codebase_chunks")
	v.SetDefault("vector.task_collection", "task_history")
	v.SetDefault("index.extensions", DefaultExtensions)
	v.SetDefault("index.max_chunk_tokens", 500)
	v.SetDefault("index.min_chunk_tokens", 50)
	v.SetDefault("index.max_file_bytes", 1<<20)
	v.SetDefault("index.workers", 4)
	v.SetDefault("index.state_dir", ".locus")
	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "locus-indexing")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from file and environment. An empty path loads
// defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
