package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvModel        = "DOUBAO_MODEL"
	EnvBaseURL      = "DOUBAO_BASE_URL"
	EnvAPIKey       = "DOUBAO_API_KEY"
	EnvQdrantURL    = "QDRANT_URL"
	EnvQdrantAPIKey = "QDRANT_API_KEY"
	EnvEmbedModel   = "EMBEDDING_MODEL"
	EnvMongoURI     = "MONGO_URI"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvAddr         = "ASSISTANT_ADDR"
)

// Load builds a Config from defaults, the optional file at path, and the
// environment, then validates it. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := Decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	ApplyEnv(&cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Decode writes raw onto cfg. Keys missing from raw keep their current
// values; lists and maps present in raw replace the current ones.
func Decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       durationHook,
		Result:           cfg,
		ErrorUnused:      true,
		ZeroFields:       true,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// ApplyEnv overrides settings from environment variables read via getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.LLM.Model, EnvModel)
	set(&cfg.LLM.BaseURL, EnvBaseURL)
	set(&cfg.LLM.APIKey, EnvAPIKey)
	set(&cfg.Vector.URL, EnvQdrantURL)
	set(&cfg.Vector.APIKey, EnvQdrantAPIKey)
	set(&cfg.Vector.Embedding.Model, EnvEmbedModel)
	set(&cfg.Archive.MongoURI, EnvMongoURI)
	set(&cfg.Checkpoint.RedisAddr, EnvRedisAddr)
	set(&cfg.Server.Addr, EnvAddr)
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook converts durations: strings are parsed with
// time.ParseDuration, numbers are seconds.
func durationHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// readFile loads a config file, choosing the format by extension.
// Supported extensions: .yaml, .yml, .json
func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var m map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
