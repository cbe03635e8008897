package models

// ChunkRecord is one embedded segment of a source document. Rows are
// written by the ingestion pipeline and are read-only here.
type ChunkRecord struct {
	ID         string
	DocumentID string
	Content    string
	ChunkIndex int
	Page       int
	Embedding  []float32
	Metadata   map[string]interface{}
}

// SearchResult is a scored chunk returned by a similarity search.
// Scores are normalized to [0,1], higher is more similar.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	Content    string  `json:"content"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Score      float64 `json:"similarity_score"`
	ChunkIndex int     `json:"chunk_index"`
}

// Source is the attribution derived from a SearchResult and persisted
// on assistant messages.
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Score      float64 `json:"similarity_score"`
}

// SourceOf extracts the attribution for a search result.
func SourceOf(r SearchResult) Source {
	return Source{
		DocumentID: r.DocumentID,
		Filename:   r.Filename,
		Page:       r.Page,
		Score:      r.Score,
	}
}
