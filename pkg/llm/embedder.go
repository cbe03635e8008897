package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmbeddingUnavailable marks an embedding failure: the upstream
// provider errored or returned a vector of the wrong dimension.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// EmbeddingClient is the slice of the vendor client the embedder needs.
// Both openai.LLM and ollama.LLM satisfy it.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider       string
	Model          string
	BaseURL        string
	VectorDim      int
	TimeoutSeconds int
}

// Embedder turns query text into a fixed-dimension vector. Safe for
// concurrent use; holds no per-call state.
type Embedder struct {
	config EmbedderConfig
	client EmbeddingClient
}

// NewEmbedderWithConfig creates an Embedder backed by the configured
// vendor.
func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}

	client, err := newEmbeddingClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	return &Embedder{config: config, client: client}, nil
}

// NewEmbedderWithClient creates an Embedder over an existing client.
func NewEmbedderWithClient(config EmbedderConfig, client EmbeddingClient) *Embedder {
	return &Embedder{config: config, client: client}
}

func newEmbeddingClient(config EmbedderConfig) (EmbeddingClient, error) {
	switch config.Provider {
	case "openai":
		opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		baseURL := config.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(baseURL))
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}
}

// Embed returns the vector for text. Any upstream failure or dimension
// mismatch wraps ErrEmbeddingUnavailable so callers can fail the tool
// invocation without aborting the turn.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	vectors, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingUnavailable, len(vectors))
	}
	if e.config.VectorDim > 0 && len(vectors[0]) != e.config.VectorDim {
		return nil, fmt.Errorf("%w: dimension mismatch: got %d, want %d",
			ErrEmbeddingUnavailable, len(vectors[0]), e.config.VectorDim)
	}

	return vectors[0], nil
}
