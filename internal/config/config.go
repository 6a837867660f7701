// Package config loads the assistant's configuration from YAML or JSON and
// the environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// RateLimit is the sustained requests per second allowed per client IP.
	RateLimit       float64       `mapstructure:"rate_limit"`
	Burst           int           `mapstructure:"burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxToolIterations int     `mapstructure:"max_tool_iterations"`
}

// WorkflowConfig configures the assistant graph.
type WorkflowConfig struct {
	// ChatFilter enables the chat pre-filter step before intent routing.
	ChatFilter bool `mapstructure:"chat_filter"`

	IntentTimeout  time.Duration `mapstructure:"intent_timeout"`
	WeatherTimeout time.Duration `mapstructure:"weather_timeout"`
	FeedTimeout    time.Duration `mapstructure:"feed_timeout"`
	DocTimeout     time.Duration `mapstructure:"doc_timeout"`
	RewriteTimeout time.Duration `mapstructure:"rewrite_timeout"`

	Feeds       []string `mapstructure:"feeds"`
	FanOutLimit int      `mapstructure:"fan_out_limit"`

	// MaxDocRetries caps doc_retry executions in one run.
	MaxDocRetries int `mapstructure:"max_doc_retries"`

	// Prompts overrides built-in prompt templates by name.
	Prompts map[string]string `mapstructure:"prompts"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	// Backend is one of "memory", "sqlite" or "redis".
	Backend       string        `mapstructure:"backend"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
	Prefix        string        `mapstructure:"prefix"`
}

// VectorConfig configures Qdrant indexing of generated documents.
type VectorConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	Dimension  int           `mapstructure:"dimension"`
	Timeout    time.Duration `mapstructure:"timeout"`

	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// EmbeddingConfig selects the model that embeds chunks before indexing.
//
// Provider "openai" calls an OpenAI-compatible /embeddings endpoint;
// base_url and api_key fall back to the llm section when empty. Provider
// "hash" uses the offline hash embedding, meant for tests and local runs.
// "auto" picks openai when an API key is available and hash otherwise.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	BatchSize int    `mapstructure:"batch_size"`
}

// ArchiveConfig configures the generated-document archive.
type ArchiveConfig struct {
	// Backend is one of "none", "memory" or "mongo".
	Backend    string `mapstructure:"backend"`
	MongoURI   string `mapstructure:"mongo_uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultFeeds are the RSS sources summarised by the rss step.
var DefaultFeeds = []string{
	"https://sspai.com/feed",
	"http://www.ruanyifeng.com/blog/atom.xml",
	"https://plink.anyfeeder.com/weibo/search/hot",
	"https://plink.anyfeeder.com/newscn/whxw",
	"https://plink.anyfeeder.com/wsj/cn",
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			RateLimit:       5,
			Burst:           10,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:           "https://ark.cn-beijing.volces.com/api/v3",
			Model:             "doubao-seed-1-6-250615",
			Temperature:       0.1,
			MaxToolIterations: 10,
		},
		Workflow: WorkflowConfig{
			IntentTimeout:  60 * time.Second,
			WeatherTimeout: 240 * time.Second,
			FeedTimeout:    90 * time.Second,
			DocTimeout:     420 * time.Second,
			RewriteTimeout: 300 * time.Second,
			Feeds:          append([]string(nil), DefaultFeeds...),
			FanOutLimit:    5,
			MaxDocRetries:  3,
		},
		Checkpoint: CheckpointConfig{
			Backend:    "memory",
			SQLitePath: "checkpoints.db",
			RedisAddr:  "localhost:6379",
			TTL:        24 * time.Hour,
			Prefix:     "assistant:checkpoint:",
		},
		Vector: VectorConfig{
			URL:        "http://localhost:6333",
			Collection: "generated_docs",
			Dimension:  384,
			Timeout:    10 * time.Second,
			Embedding: EmbeddingConfig{
				Provider:  "auto",
				Model:     "text-embedding-3-small",
				BatchSize: 64,
			},
		},
		Archive: ArchiveConfig{
			Backend:    "memory",
			Database:   "agent",
			Collection: "docs",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "agent-study",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports every invalid setting, joined.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must be >= 0, got %v", c.Server.RateLimit))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Workflow.DocTimeout <= 0 {
		errs = append(errs, fmt.Errorf("workflow.doc_timeout must be positive, got %s", c.Workflow.DocTimeout))
	}
	if c.Workflow.MaxDocRetries < 0 {
		errs = append(errs, fmt.Errorf("workflow.max_doc_retries must be >= 0, got %d", c.Workflow.MaxDocRetries))
	}
	if c.Workflow.FanOutLimit < 1 {
		errs = append(errs, fmt.Errorf("workflow.fan_out_limit must be >= 1, got %d", c.Workflow.FanOutLimit))
	}

	switch c.Checkpoint.Backend {
	case "memory":
	case "sqlite":
		if c.Checkpoint.SQLitePath == "" {
			errs = append(errs, errors.New("checkpoint.sqlite_path is required for the sqlite backend"))
		}
	case "redis":
		if c.Checkpoint.RedisAddr == "" {
			errs = append(errs, errors.New("checkpoint.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend %q is not one of memory, sqlite, redis", c.Checkpoint.Backend))
	}

	switch c.Archive.Backend {
	case "none", "memory":
	case "mongo":
		if c.Archive.MongoURI == "" {
			errs = append(errs, errors.New("archive.mongo_uri is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.backend %q is not one of none, memory, mongo", c.Archive.Backend))
	}

	if c.Vector.Enabled && c.Vector.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("vector.dimension must be positive, got %d", c.Vector.Dimension))
	}
	switch c.Vector.Embedding.Provider {
	case "auto", "hash":
	case "openai":
		if c.Vector.Embedding.Model == "" {
			errs = append(errs, errors.New("vector.embedding.model is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector.embedding.provider %q is not one of auto, hash, openai", c.Vector.Embedding.Provider))
	}

	return errors.Join(errs...)
}
