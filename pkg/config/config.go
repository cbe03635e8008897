package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider       string  `yaml:"provider"`
		BaseURL        string  `yaml:"base_url"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"llm"`

	Database struct {
		URL                 string `yaml:"url"`
		ChunkTable          string `yaml:"chunk_table"`
		DocumentTable       string `yaml:"document_table"`
		SessionTable        string `yaml:"session_table"`
		VectorDim           int    `yaml:"vector_dim"`
		QueryTimeoutSeconds int    `yaml:"query_timeout_seconds"`
	} `yaml:"database"`

	RAG struct {
		DefaultTopK              int     `yaml:"default_top_k"`
		MaxTopK                  int     `yaml:"max_top_k"`
		SimilarityThreshold      float64 `yaml:"similarity_threshold"`
		ToolCallingMaxIterations int     `yaml:"tool_calling_max_iterations"`
		ToolCallingEnabled       *bool   `yaml:"tool_calling_enabled"`
		HistoryWindow            int     `yaml:"history_window"`
	} `yaml:"rag"`

	Server struct {
		Addr      string  `yaml:"addr"`
		RateLimit float64 `yaml:"rate_limit"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"server"`
}

// ToolCallingEnabled reports the kill-switch value, defaulting to true
// when the option is absent from the file.
func (c *Config) ToolCallingEnabled() bool {
	if c.RAG.ToolCallingEnabled == nil {
		return true
	}
	return *c.RAG.ToolCallingEnabled
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/askdocs/config.yaml"),
			"/etc/askdocs/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.TimeoutSeconds == 0 {
		config.LLM.TimeoutSeconds = 120
	}

	if config.Database.ChunkTable == "" {
		config.Database.ChunkTable = "document_chunks"
	}
	if config.Database.DocumentTable == "" {
		config.Database.DocumentTable = "documents"
	}
	if config.Database.SessionTable == "" {
		config.Database.SessionTable = "chat_sessions"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.QueryTimeoutSeconds == 0 {
		config.Database.QueryTimeoutSeconds = 10
	}

	if config.RAG.DefaultTopK == 0 {
		config.RAG.DefaultTopK = 5
	}
	if config.RAG.MaxTopK == 0 {
		config.RAG.MaxTopK = 20
	}
	if config.RAG.SimilarityThreshold == 0 {
		config.RAG.SimilarityThreshold = 0.7
	}
	if config.RAG.ToolCallingMaxIterations == 0 {
		config.RAG.ToolCallingMaxIterations = 10
	}
	if config.RAG.ToolCallingEnabled == nil {
		enabled := true
		config.RAG.ToolCallingEnabled = &enabled
	}
	if config.RAG.HistoryWindow == 0 {
		config.RAG.HistoryWindow = 20
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.RateLimit == 0 {
		config.Server.RateLimit = 5.0
	}
	if config.Server.RateBurst == 0 {
		config.Server.RateBurst = 10
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}
