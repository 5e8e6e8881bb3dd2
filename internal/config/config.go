package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Neo4jConfig contains connection details for the graph database.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LLMConfig configures the OpenAI-compatible model provider used for
// embeddings, extraction and completion.
type LLMConfig struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// IngestConfig configures how documents are split into chunks.
type IngestConfig struct {
	MaxChunkChars int `yaml:"max_chunk_chars"`
}

// RetrievalConfig configures question answering.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	LLM       LLMConfig       `yaml:"llm"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Server    ServerConfig    `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults. Environment variables override file values either way.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(&cfg)
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/graphrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/graphrag/config.yaml and
// returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "graphrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "password",
		},
		LLM: LLMConfig{
			Provider:       "openai",
			BaseURL:        "https://api.openai.com/v1",
			APIKeyEnv:      "OPENAI_API_KEY",
			EmbeddingModel: "text-embedding-3-small",
			ChatModel:      "gpt-4o-mini",
			Dimensions:     1536,
			TimeoutSecs:    60,
		},
		Ingest:    IngestConfig{MaxChunkChars: 1200},
		Retrieval: RetrievalConfig{TopK: 5},
		Server:    ServerConfig{Addr: "127.0.0.1:3322"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = "bolt://localhost:7687"
	}
	if cfg.Neo4j.Username == "" {
		cfg.Neo4j.Username = "neo4j"
	}
	if cfg.Neo4j.Password == "" {
		cfg.Neo4j.Password = "password"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.BaseURL == "" {
		switch cfg.LLM.Provider {
		case "ollama":
			cfg.LLM.BaseURL = "http://localhost:11434/v1"
		default:
			cfg.LLM.BaseURL = "https://api.openai.com/v1"
		}
	}
	if cfg.LLM.APIKeyEnv == "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = "gpt-4o-mini"
	}
	if cfg.LLM.Dimensions == 0 {
		cfg.LLM.Dimensions = 1536
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.Ingest.MaxChunkChars == 0 {
		cfg.Ingest.MaxChunkChars = 1200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:3322"
	}
}

// applyEnvOverrides lets the environment win over file values, matching the
// variables the deployment scripts export.
func applyEnvOverrides(cfg *AppConfig) {
	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setIfPresent(&cfg.Neo4j.URI, "NEO4J_URI")
	setIfPresent(&cfg.Neo4j.Username, "NEO4J_USER")
	setIfPresent(&cfg.Neo4j.Password, "NEO4J_PASSWORD")
	setIfPresent(&cfg.Server.Addr, "SERVER_ADDR")
	setIfPresent(&cfg.LLM.Provider, "LLM_PROVIDER")
	setIfPresent(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setIfPresent(&cfg.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setIfPresent(&cfg.LLM.ChatModel, "LLM_CHAT_MODEL")
}
