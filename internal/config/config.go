package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragd server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the TCP question server settings.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	BufferSize      int    `yaml:"buffer_size"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	MaxConnections  int    `yaml:"max_connections"`
}

// HTTPConfig holds admin HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LLMConfig holds the generation model settings.
type LLMConfig struct {
	Host          string  `yaml:"host"` // empty = OLLAMA_HOST / default
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	NumPredict    int     `yaml:"num_predict"`
	NumCtx        int     `yaml:"num_ctx"`
	TopK          int     `yaml:"top_k"`
	TopP          float64 `yaml:"top_p"`
	RepeatPenalty float64 `yaml:"repeat_penalty"`
	RepeatLastN   int     `yaml:"repeat_last_n"`
	NumThread     int     `yaml:"num_thread"`
	AskTimeoutSec int     `yaml:"ask_timeout_sec"`
	Warmup        bool    `yaml:"warmup"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"` // ollama, openai (default: ollama)
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"` // 0 = provider default
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	BatchSize     int    `yaml:"batch_size"`
	RetryAttempts int    `yaml:"retry_attempts"`
	Cache         bool   `yaml:"cache"`

	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// ChunkingConfig holds text splitter settings.
type ChunkingConfig struct {
	Size       int      `yaml:"size"`
	Overlap    int      `yaml:"overlap"`
	Separators []string `yaml:"separators"`
}

// RetrievalConfig holds context assembly settings.
type RetrievalConfig struct {
	K               int `yaml:"k"`
	MaxContextChars int `yaml:"max_context_chars"`
	DedupPrefixLen  int `yaml:"dedup_prefix_len"`
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

// StorageConfig holds on-disk layout and index backend settings.
type StorageConfig struct {
	DocumentsDir string `yaml:"documents_dir"`
	RemovedDir   string `yaml:"removed_dir"`
	DataDir      string `yaml:"data_dir"`
	IndexName    string `yaml:"index_name"`
	IndexBackend string `yaml:"index_backend"` // flat, valkey (default: flat)
}

// DatabaseConfig holds Valkey/Redis connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds FT vector index settings for the valkey backend.
type IndexConfig struct {
	Algorithm       string `yaml:"algorithm"` // hnsw, flat (default: hnsw)
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// DefaultSeparators is the split order of the recursive chunker.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Load reads configuration from a YAML file by environment name (local, dev, docker, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes raw YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 9999
	}
	if c.Server.BufferSize <= 0 {
		c.Server.BufferSize = 16384
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 30
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 30
	}
	if c.Server.MaxConnections <= 0 {
		c.Server.MaxConnections = 64
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	// /ask and /pipeline run model calls inline
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "custom-llama3.2"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.NumPredict <= 0 {
		c.LLM.NumPredict = 512
	}
	if c.LLM.NumCtx <= 0 {
		c.LLM.NumCtx = 4096
	}
	if c.LLM.TopK <= 0 {
		c.LLM.TopK = 40
	}
	if c.LLM.TopP == 0 {
		c.LLM.TopP = 0.9
	}
	if c.LLM.RepeatPenalty == 0 {
		c.LLM.RepeatPenalty = 1.2
	}
	if c.LLM.RepeatLastN <= 0 {
		c.LLM.RepeatLastN = 64
	}
	if c.LLM.NumThread <= 0 {
		c.LLM.NumThread = 8
	}
	if c.LLM.AskTimeoutSec <= 0 {
		c.LLM.AskTimeoutSec = 60
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = c.LLM.Model
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.RetryAttempts <= 0 {
		c.Embedding.RetryAttempts = 3
	}

	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 800
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = 150
	}
	if len(c.Chunking.Separators) == 0 {
		c.Chunking.Separators = append([]string(nil), DefaultSeparators...)
	}

	if c.Retrieval.K <= 0 {
		c.Retrieval.K = 6
	}
	if c.Retrieval.MaxContextChars <= 0 {
		c.Retrieval.MaxContextChars = 12000
	}
	if c.Retrieval.DedupPrefixLen <= 0 {
		c.Retrieval.DedupPrefixLen = 200
	}

	if c.Cache.Size <= 0 {
		c.Cache.Size = 100
	}

	if c.Storage.DocumentsDir == "" {
		c.Storage.DocumentsDir = "documents"
	}
	if c.Storage.RemovedDir == "" {
		c.Storage.RemovedDir = "removed_doc"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "vector_db"
	}
	if c.Storage.IndexName == "" {
		c.Storage.IndexName = "rag_index"
	}
	if c.Storage.IndexBackend == "" {
		c.Storage.IndexBackend = "flat"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
}

// Validate checks the configuration for correctness.
//
//nolint:gocyclo // flat list of checks
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	// http.port < 0 disables the admin API
	if c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.Port > 0 && c.HTTP.Port == c.Server.Port {
		return fmt.Errorf("http.port and server.port must differ, both are %d", c.Server.Port)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"console\", got %q", c.Logging.Format)
	}

	switch c.Embedding.Provider {
	case "ollama":
	case "openai":
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("embedding.base_url is required for provider openai")
		}
	default:
		return fmt.Errorf("embedding.provider must be \"ollama\" or \"openai\", got %q", c.Embedding.Provider)
	}

	switch c.Storage.IndexBackend {
	case "flat":
	case "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for storage.index_backend valkey")
		}
	default:
		return fmt.Errorf("storage.index_backend must be \"flat\" or \"valkey\", got %q", c.Storage.IndexBackend)
	}

	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}

	switch c.Index.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}

	if c.Storage.DocumentsDir == c.Storage.RemovedDir {
		return fmt.Errorf("storage.removed_dir must differ from storage.documents_dir")
	}
	return nil
}

// UseDatabase reports whether a Valkey/Redis connection is configured.
func (c *Config) UseDatabase() bool {
	return len(c.Database.Addrs) > 0
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
