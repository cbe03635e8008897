package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/pkg/llm"
)

type fakeEmbeddingClient struct {
	vectors [][]float32
	err     error
}

func (f *fakeEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func TestEmbed(t *testing.T) {
	client := &fakeEmbeddingClient{vectors: [][]float32{{0.1, 0.2, 0.3}}}
	embedder := llm.NewEmbedderWithClient(llm.EmbedderConfig{VectorDim: 3}, client)

	vector, err := embedder.Embed(context.Background(), "what is NAT?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestEmbedUpstreamError(t *testing.T) {
	client := &fakeEmbeddingClient{err: errors.New("connection refused")}
	embedder := llm.NewEmbedderWithClient(llm.EmbedderConfig{VectorDim: 3}, client)

	_, err := embedder.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrEmbeddingUnavailable)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	client := &fakeEmbeddingClient{vectors: [][]float32{{0.1, 0.2}}}
	embedder := llm.NewEmbedderWithClient(llm.EmbedderConfig{VectorDim: 3}, client)

	_, err := embedder.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestEmbedWrongVectorCount(t *testing.T) {
	client := &fakeEmbeddingClient{vectors: [][]float32{}}
	embedder := llm.NewEmbedderWithClient(llm.EmbedderConfig{VectorDim: 3}, client)

	_, err := embedder.Embed(context.Background(), "query")
	assert.ErrorIs(t, err, llm.ErrEmbeddingUnavailable)
}
