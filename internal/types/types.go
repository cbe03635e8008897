package types

import (
	"context"

	"github.com/xhad/askdocs/internal/models"
)

// Core interfaces

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchEngine returns the top-k chunks most similar to a query vector,
// scored in [0,1] and filtered by threshold.
type SearchEngine interface {
	Search(ctx context.Context, vector []float32, topK int, threshold float64) ([]models.SearchResult, error)
}

// SessionStore is the append-only session log this core writes to.
// Listing, deletion and ownership checks belong to the surrounding
// application, not to this core.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Append(ctx context.Context, id string, msgs ...models.Message) error
}
