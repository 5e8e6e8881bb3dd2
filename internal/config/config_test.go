package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.LLM.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ChatModel)
	assert.Equal(t, 1536, cfg.LLM.Dimensions)
	assert.Equal(t, 1200, cfg.Ingest.MaxChunkChars)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "127.0.0.1:3322", cfg.Server.Addr)
}

func TestLoadFillsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("neo4j:\n  uri: bolt://db:7687\nllm:\n  provider: ollama\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt://db:7687", cfg.Neo4j.URI)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Empty(t, cfg.LLM.APIKeyEnv, "ollama needs no API key")
	assert.Equal(t, 1200, cfg.Ingest.MaxChunkChars)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("neo4j: [broken"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://override:7687")
	t.Setenv("NEO4J_USER", "admin")
	t.Setenv("LLM_CHAT_MODEL", "gpt-4o")
	t.Setenv("SERVER_ADDR", "0.0.0.0:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "bolt://override:7687", cfg.Neo4j.URI)
	assert.Equal(t, "admin", cfg.Neo4j.Username)
	assert.Equal(t, "gpt-4o", cfg.LLM.ChatModel)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Neo4j.Password = "secret"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.Neo4j.Password)
	assert.Equal(t, cfg.Server.Addr, loaded.Server.Addr)
}
