// Package config provides configuration loading and structs for the OzLaw service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Provider  ProviderConfig  `yaml:"provider"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the vector store directory and the document registry path.
type StorageConfig struct {
	VectorStorePath string `yaml:"vector_store_path"`
	// VectorStoreType is "chromem" (default) or "memory".
	VectorStoreType string `yaml:"vector_store_type"`
	Collection      string `yaml:"collection"`
	Compress        bool   `yaml:"compress"`
	DatabasePath    string `yaml:"database_path"`
}

// IngestConfig holds the input directory scanned by the ingest and watch commands.
type IngestConfig struct {
	DataDir    string   `yaml:"data_dir"`
	Extensions []string `yaml:"extensions"`
	Recursive  bool     `yaml:"recursive"`
	// SkipUnchanged skips files already ingested with the same size and mtime.
	SkipUnchanged *bool `yaml:"skip_unchanged"`
}

// SkipUnchangedOrDefault returns whether unchanged files are skipped; defaults to true when unset.
func (c *IngestConfig) SkipUnchangedOrDefault() bool {
	if c.SkipUnchanged != nil {
		return *c.SkipUnchanged
	}
	return true
}

// ChunkingConfig holds chunk size and overlap, both in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is "openai" (default) or "mock" for offline runs.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig holds chat model settings.
type LLMConfig struct {
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// CondenseQuestion rewrites follow-up questions into standalone ones before retrieval.
	CondenseQuestion *bool `yaml:"condense_question"`
}

// CondenseQuestionOrDefault returns whether follow-ups are condensed; defaults to true when unset.
func (c *RetrievalConfig) CondenseQuestionOrDefault() bool {
	if c.CondenseQuestion != nil {
		return *c.CondenseQuestion
	}
	return true
}

// ProviderConfig names the environment variable holding the provider credential.
// The credential itself is never read from or written to the YAML file.
type ProviderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	APIKey    string `yaml:"-"`
}

// Load reads and parses the config file at path, expands paths, applies defaults, and
// resolves the provider credential from the environment. A .env file next to the config
// file is loaded first; variables already set in the environment win.
// A missing config file is not an error: defaults are used, relative to the working directory.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config dir: %w", err)
	}
	cfg.Storage.VectorStorePath = expandPath(cfg.Storage.VectorStorePath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Ingest.DataDir = expandPath(cfg.Ingest.DataDir, configDir)

	loadDotEnv(filepath.Join(configDir, ".env"))
	cfg.Provider.APIKey = strings.TrimSpace(os.Getenv(cfg.Provider.APIKeyEnv))

	return &cfg, nil
}

// loadDotEnv loads path into the process environment when it exists.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Save writes the config to path. The credential is never written.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
