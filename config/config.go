// Package config loads pipeline configuration from an optional YAML file with
// environment-variable overrides. Missing or malformed files fall back to
// safe defaults so a zero-config startup still works against the in-memory
// services.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written as "30s" or "2m" in the
// YAML file.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

const (
	configPathEnv      = "STASHPIPE_CONFIG"
	databaseDSNEnv     = "DATABASE_DSN"
	openAIAPIKeyEnv    = "OPENAI_API_KEY"
	openAIModelEnv     = "OPENAI_MODEL"
	anthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
	anthropicModelEnv  = "ANTHROPIC_MODEL"
	minioEndpointEnv   = "MINIO_ENDPOINT"
	minioAccessKeyEnv  = "MINIO_ACCESS_KEY"
	minioSecretKeyEnv  = "MINIO_SECRET_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Fetch     FetchConfig     `yaml:"fetch"`
}

// DatabaseConfig describes MySQL connection details for the entry store and
// durable queue.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// QueueConfig tunes the processing loop.
type QueueConfig struct {
	Name              string   `yaml:"name"`
	VisibilityTimeout Duration `yaml:"visibilityTimeout"`
	MaxAttempts       int      `yaml:"maxAttempts"`
	Workers           int      `yaml:"workers"`
}

// OpenAIConfig defines how to contact the OpenAI API for summaries, titles
// and embeddings.
type OpenAIConfig struct {
	APIKey         string `yaml:"apiKey"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embeddingModel"`
	EnableEmbed    bool   `yaml:"enableEmbed"`
}

// AnthropicConfig defines how to contact the Anthropic API for company
// research.
type AnthropicConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// ArchiveConfig describes the MinIO bucket for raw fetched content. An empty
// endpoint disables archival.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSsl"`
}

// FetchConfig tunes the content extractor.
type FetchConfig struct {
	UserAgent        string   `yaml:"userAgent"`
	Timeout          Duration `yaml:"timeout"`
	MinContentLength int      `yaml:"minContentLength"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(anthropicAPIKeyEnv); v != "" {
		c.Anthropic.APIKey = v
	}
	if v := os.Getenv(anthropicModelEnv); v != "" {
		c.Anthropic.Model = v
	}

	if v := os.Getenv(minioEndpointEnv); v != "" {
		c.Archive.Endpoint = v
	}
	if v := os.Getenv(minioAccessKeyEnv); v != "" {
		c.Archive.AccessKey = v
	}
	if v := os.Getenv(minioSecretKeyEnv); v != "" {
		c.Archive.SecretKey = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Queue.Name != "" {
		base.Queue.Name = override.Queue.Name
	}
	if override.Queue.VisibilityTimeout > 0 {
		base.Queue.VisibilityTimeout = override.Queue.VisibilityTimeout
	}
	if override.Queue.MaxAttempts > 0 {
		base.Queue.MaxAttempts = override.Queue.MaxAttempts
	}
	if override.Queue.Workers > 0 {
		base.Queue.Workers = override.Queue.Workers
	}

	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.EmbeddingModel != "" {
		base.OpenAI.EmbeddingModel = override.OpenAI.EmbeddingModel
	}
	if override.OpenAI.EnableEmbed {
		base.OpenAI.EnableEmbed = true
	}

	if override.Anthropic.APIKey != "" {
		base.Anthropic.APIKey = override.Anthropic.APIKey
	}
	if override.Anthropic.Model != "" {
		base.Anthropic.Model = override.Anthropic.Model
	}

	if override.Archive.Endpoint != "" {
		base.Archive.Endpoint = override.Archive.Endpoint
	}
	if override.Archive.AccessKey != "" {
		base.Archive.AccessKey = override.Archive.AccessKey
	}
	if override.Archive.SecretKey != "" {
		base.Archive.SecretKey = override.Archive.SecretKey
	}
	if override.Archive.Bucket != "" {
		base.Archive.Bucket = override.Archive.Bucket
	}
	if override.Archive.UseSSL {
		base.Archive.UseSSL = true
	}

	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.MinContentLength > 0 {
		base.Fetch.MinContentLength = override.Fetch.MinContentLength
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Queue: QueueConfig{
			Name:              "stashpipe",
			VisibilityTimeout: Duration(2 * time.Minute),
			MaxAttempts:       1,
			Workers:           1,
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-3-5-sonnet-20241022",
		},
		Archive: ArchiveConfig{
			Bucket: "stashpipe-content",
		},
		Fetch: FetchConfig{
			UserAgent:        "stashpipe/1.0",
			Timeout:          Duration(20 * time.Second),
			MinContentLength: 80,
		},
	}
}
