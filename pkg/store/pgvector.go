package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/askdocs/internal/models"
)

// ErrSearchUnavailable marks a vector store failure. Tool invocations
// hitting it report an error result to the model instead of failing
// the turn.
var ErrSearchUnavailable = errors.New("search engine unavailable")

// Connect opens a pgx pool shared by the stores in this package.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

type SearchStoreConfig struct {
	ChunkTable          string
	DocumentTable       string
	VectorDim           int
	MaxTopK             int
	QueryTimeoutSeconds int
}

// SearchStore runs cosine similarity search over the chunk table the
// ingestion pipeline maintains. Read-only; safe for concurrent use.
type SearchStore struct {
	config SearchStoreConfig
	pool   *pgxpool.Pool
}

func NewSearchStore(pool *pgxpool.Pool, config SearchStoreConfig) (*SearchStore, error) {
	if config.ChunkTable == "" {
		config.ChunkTable = "document_chunks"
	}
	if config.DocumentTable == "" {
		config.DocumentTable = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.MaxTopK == 0 {
		config.MaxTopK = 20
	}

	s := &SearchStore{config: config, pool: pool}

	if err := s.initialize(); err != nil {
		return nil, err
	}

	return s, nil
}

// initialize documents the collaborator contract: the ingestion
// pipeline owns these tables, we only make sure they exist so a fresh
// database answers searches (with zero rows) instead of erroring.
func (s *SearchStore) initialize() error {
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createDocuments := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.config.DocumentTable)

	if _, err := s.pool.Exec(ctx, createDocuments); err != nil {
		return fmt.Errorf("failed to create document table: %w", err)
	}

	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES %s(id),
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			page_number INTEGER,
			embedding vector(%d),
			metadata JSONB
		)`, s.config.ChunkTable, s.config.DocumentTable, s.config.VectorDim)

	if _, err := s.pool.Exec(ctx, createChunks); err != nil {
		return fmt.Errorf("failed to create chunk table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		s.config.ChunkTable, s.config.ChunkTable)

	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Search returns the chunks most similar to the query vector, scored
// as 1 - cosine distance, clamped to [0,1], filtered by threshold and
// ordered by descending score with ascending chunk index breaking
// ties. Only chunks of fully processed documents are eligible. An
// empty result is not an error.
func (s *SearchStore) Search(ctx context.Context, vector []float32, topK int, threshold float64) ([]models.SearchResult, error) {
	if len(vector) != s.config.VectorDim {
		return nil, fmt.Errorf("%w: query dimension %d does not match index dimension %d",
			ErrSearchUnavailable, len(vector), s.config.VectorDim)
	}

	topK = clampTopK(topK, s.config.MaxTopK)
	if topK == 0 {
		return []models.SearchResult{}, nil
	}

	if s.config.QueryTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.QueryTimeoutSeconds)*time.Second)
		defer cancel()
	}

	query := fmt.Sprintf(`
		SELECT dc.id, dc.content, dc.document_id, d.filename,
		       COALESCE(dc.page_number, 0),
		       1 - (dc.embedding <=> $1) AS similarity_score,
		       dc.chunk_index
		FROM %s dc
		JOIN %s d ON d.id = dc.document_id
		WHERE d.status = 'processed'
		ORDER BY dc.embedding <=> $1 ASC, dc.chunk_index ASC
		LIMIT $2`,
		s.config.ChunkTable, s.config.DocumentTable)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ChunkID, &r.Content, &r.DocumentID, &r.Filename, &r.Page, &r.Score, &r.ChunkIndex); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %v", ErrSearchUnavailable, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	return rankResults(results, threshold), nil
}

// Healthy reports whether the chunk table is reachable.
func (s *SearchStore) Healthy(ctx context.Context) error {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.config.ChunkTable)
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	return nil
}

// clampTopK bounds the requested breadth regardless of caller input.
func clampTopK(topK, max int) int {
	if topK < 0 {
		return 0
	}
	if topK > max {
		return max
	}
	return topK
}

// clampScore validates a raw score into [0,1]. Floating point noise in
// the distance computation can push it slightly outside.
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// rankResults clamps scores, drops sub-threshold rows and re-sorts so
// ordering is reproducible: descending score, ascending chunk index on
// equal scores.
func rankResults(results []models.SearchResult, threshold float64) []models.SearchResult {
	ranked := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		r.Score = clampScore(r.Score)
		if r.Score < threshold {
			continue
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ChunkIndex < ranked[j].ChunkIndex
	})

	return ranked
}
