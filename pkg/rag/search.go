package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/internal/types"
)

// SearchToolName is the tool name declared to the model.
const SearchToolName = "semantic_search"

const searchToolDescription = `Search for relevant documents using semantic similarity.

Use this tool to find information from uploaded documents that's relevant to the user's question.
The tool will return the most relevant document chunks along with their sources.

Args:
    query (string): The search query or question to find relevant documents for
    top_k (integer): Number of results to return (default: 5)

Returns results with filename, page and content, the unique sources found, and the result count.`

type SearchToolConfig struct {
	DefaultTopK         int
	MaxTopK             int
	SimilarityThreshold float64
}

// SearchTool wraps the embedder and the search engine behind the
// semantic_search callable.
type SearchTool struct {
	config   SearchToolConfig
	embedder types.Embedder
	engine   types.SearchEngine
	logger   *slog.Logger
}

func NewSearchTool(embedder types.Embedder, engine types.SearchEngine, config SearchToolConfig, logger *slog.Logger) *SearchTool {
	if config.DefaultTopK == 0 {
		config.DefaultTopK = 5
	}
	if config.MaxTopK == 0 {
		config.MaxTopK = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchTool{config: config, embedder: embedder, engine: engine, logger: logger}
}

func (t *SearchTool) Name() string        { return SearchToolName }
func (t *SearchTool) Description() string { return searchToolDescription }

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query or question to find relevant documents for",
			},
			"top_k": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Number of results to return (default: %d, max: %d)", t.config.DefaultTopK, t.config.MaxTopK),
			},
		},
		"required": []string{"query"},
	}
}

type searchArgs struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k"`
}

type searchPayload struct {
	Query   string          `json:"query"`
	Results []resultView    `json:"results"`
	Sources []models.Source `json:"sources"`
	Count   int             `json:"count"`
}

type resultView struct {
	Content    string  `json:"content"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Similarity float64 `json:"similarity_score"`
	ChunkIndex int     `json:"chunk_index"`
}

// Call validates the arguments, embeds the query and runs the search.
// Operational failures come back as wrapped sentinel errors; the
// orchestrator reports them to the model as a tool-error result.
func (t *SearchTool) Call(ctx context.Context, args json.RawMessage) (*Result, error) {
	parsed, err := parseSearchArgs(args)
	if err != nil {
		return nil, err
	}

	topK := t.config.DefaultTopK
	if parsed.TopK != nil {
		topK = *parsed.TopK
	}
	if topK > t.config.MaxTopK {
		topK = t.config.MaxTopK
	}

	t.logger.Info("semantic search requested", "query", truncate(parsed.Query, 50), "top_k", topK)

	vector, err := t.embedder.Embed(ctx, parsed.Query)
	if err != nil {
		return nil, err
	}

	results, err := t.engine.Search(ctx, vector, topK, t.config.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	payload := searchPayload{
		Query:   parsed.Query,
		Results: make([]resultView, 0, len(results)),
		Sources: []models.Source{},
		Count:   len(results),
	}
	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		payload.Results = append(payload.Results, resultView{
			Content:    r.Content,
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			Page:       r.Page,
			Similarity: r.Score,
			ChunkIndex: r.ChunkIndex,
		})
		sources = append(sources, models.SourceOf(r))
	}
	sources = DedupeSources(sources)
	if sources != nil {
		payload.Sources = sources
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search payload: %w", err)
	}

	t.logger.Info("semantic search completed", "results", len(results), "sources", len(sources))

	return &Result{Content: string(encoded), Count: len(results), Sources: sources}, nil
}

func parseSearchArgs(args json.RawMessage) (*searchArgs, error) {
	var parsed searchArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToolArguments, err)
		}
	}
	if strings.TrimSpace(parsed.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidToolArguments)
	}
	if parsed.TopK != nil && *parsed.TopK < 1 {
		return nil, fmt.Errorf("%w: top_k must be positive", ErrInvalidToolArguments)
	}
	return &parsed, nil
}

// QueryOf pulls the query string out of raw tool arguments for
// progress events, tolerating malformed input.
func QueryOf(args json.RawMessage) string {
	var parsed searchArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return ""
	}
	return parsed.Query
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
