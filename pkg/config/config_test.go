package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "openai"
  model: "gpt-4o-mini"
  embedding_model: "text-embedding-3-small"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  chunk_table: "test_chunks"
  vector_dim: 768

rag:
  default_top_k: 3
  max_top_k: 10
  similarity_threshold: 0.65
  tool_calling_max_iterations: 4
  tool_calling_enabled: false
  history_window: 8

server:
  addr: ":9090"
  rate_limit: 2.5
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", config.LLM.EmbeddingModel)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_chunks", config.Database.ChunkTable)
	assert.Equal(t, 768, config.Database.VectorDim)
	assert.Equal(t, 3, config.RAG.DefaultTopK)
	assert.Equal(t, 10, config.RAG.MaxTopK)
	assert.Equal(t, 0.65, config.RAG.SimilarityThreshold)
	assert.Equal(t, 4, config.RAG.ToolCallingMaxIterations)
	assert.False(t, config.ToolCallingEnabled())
	assert.Equal(t, 8, config.RAG.HistoryWindow)
	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, 2.5, config.Server.RateLimit)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("database:\n  url: postgres://localhost:5432/test\n"), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "document_chunks", config.Database.ChunkTable)
	assert.Equal(t, "documents", config.Database.DocumentTable)
	assert.Equal(t, "chat_sessions", config.Database.SessionTable)
	assert.Equal(t, 1536, config.Database.VectorDim)
	assert.Equal(t, 5, config.RAG.DefaultTopK)
	assert.Equal(t, 20, config.RAG.MaxTopK)
	assert.Equal(t, 0.7, config.RAG.SimilarityThreshold)
	assert.Equal(t, 10, config.RAG.ToolCallingMaxIterations)
	assert.True(t, config.ToolCallingEnabled(), "tool calling should default to enabled")
	assert.Equal(t, 20, config.RAG.HistoryWindow)
	assert.Equal(t, ":8080", config.Server.Addr)
}

func TestToolCallingKillSwitch(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("rag:\n  tool_calling_enabled: false\n"), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// An explicit false must survive the defaulting pass.
	assert.False(t, config.ToolCallingEnabled())
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		applyDefaults(c)
		c.Database.URL = "postgres://localhost:5432/test"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "unknown provider",
			mutate: func(c *Config) { c.LLM.Provider = "anthropic" },
			field:  "llm.provider",
		},
		{
			name:   "max tokens out of range",
			mutate: func(c *Config) { c.LLM.MaxTokens = 5000 },
			field:  "llm.max_tokens",
		},
		{
			name:   "temperature out of range",
			mutate: func(c *Config) { c.LLM.Temperature = 3.0 },
			field:  "llm.temperature",
		},
		{
			name:   "missing database url",
			mutate: func(c *Config) { c.Database.URL = "" },
			field:  "database.url",
		},
		{
			name:   "vector dim must be positive",
			mutate: func(c *Config) { c.Database.VectorDim = -1 },
			field:  "database.vector_dim",
		},
		{
			name:   "default_top_k must be positive",
			mutate: func(c *Config) { c.RAG.DefaultTopK = 0 },
			field:  "rag.default_top_k",
		},
		{
			name:   "max_top_k below default_top_k",
			mutate: func(c *Config) { c.RAG.MaxTopK = c.RAG.DefaultTopK - 1 },
			field:  "rag.max_top_k",
		},
		{
			name:   "threshold above one",
			mutate: func(c *Config) { c.RAG.SimilarityThreshold = 1.5 },
			field:  "rag.similarity_threshold",
		},
		{
			name:   "iteration cap must be positive",
			mutate: func(c *Config) { c.RAG.ToolCallingMaxIterations = 0 },
			field:  "rag.tool_calling_max_iterations",
		},
		{
			name:   "rate limit must be positive",
			mutate: func(c *Config) { c.Server.RateLimit = -1 },
			field:  "server.rate_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)
			errors := config.Validate()

			if tt.field == "" {
				assert.Empty(t, errors)
				return
			}

			require.NotEmpty(t, errors)
			fields := make([]string, 0, len(errors))
			for _, e := range errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
}
