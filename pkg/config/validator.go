package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.Provider != "openai" && c.LLM.Provider != "ollama" {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q, expected openai or ollama", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	// Validate Database config
	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "database URL is required",
		})
	} else if _, err := url.Parse(c.Database.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate RAG config
	if c.RAG.DefaultTopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "rag.default_top_k",
			Message: "default_top_k must be positive",
		})
	}

	if c.RAG.MaxTopK < c.RAG.DefaultTopK {
		errors = append(errors, ValidationError{
			Field:   "rag.max_top_k",
			Message: "max_top_k must be at least default_top_k",
		})
	}

	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "rag.similarity_threshold",
			Message: "similarity_threshold must be between 0 and 1",
		})
	}

	if c.RAG.ToolCallingMaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "rag.tool_calling_max_iterations",
			Message: "tool_calling_max_iterations must be positive",
		})
	}

	if c.RAG.HistoryWindow < 1 {
		errors = append(errors, ValidationError{
			Field:   "rag.history_window",
			Message: "history_window must be positive",
		})
	}

	// Validate Server config
	if c.Server.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Server.RateBurst < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.rate_burst",
			Message: "rate_burst must be positive",
		})
	}

	return errors
}
