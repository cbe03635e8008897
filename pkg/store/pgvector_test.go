package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/models"
)

func TestClampTopK(t *testing.T) {
	assert.Equal(t, 5, clampTopK(5, 20))
	assert.Equal(t, 20, clampTopK(100, 20))
	assert.Equal(t, 0, clampTopK(0, 20))
	assert.Equal(t, 0, clampTopK(-3, 20))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.92, clampScore(0.92))
	assert.Equal(t, 0.0, clampScore(-0.01))
	assert.Equal(t, 1.0, clampScore(1.0001))
}

func TestRankResultsOrdering(t *testing.T) {
	results := []models.SearchResult{
		{ChunkID: "c", Score: 0.80, ChunkIndex: 7},
		{ChunkID: "a", Score: 0.92, ChunkIndex: 3},
		{ChunkID: "b", Score: 0.80, ChunkIndex: 2},
	}

	ranked := rankResults(results, 0)
	require.Len(t, ranked, 3)
	assert.Equal(t, "a", ranked[0].ChunkID)
	// Equal scores break ties by ascending chunk index.
	assert.Equal(t, "b", ranked[1].ChunkID)
	assert.Equal(t, "c", ranked[2].ChunkID)
}

func TestRankResultsThreshold(t *testing.T) {
	results := []models.SearchResult{
		{ChunkID: "a", Score: 0.92},
		{ChunkID: "b", Score: 0.69},
		{ChunkID: "c", Score: 0.70},
	}

	ranked := rankResults(results, 0.7)
	require.Len(t, ranked, 2)
	for _, r := range ranked {
		assert.GreaterOrEqual(t, r.Score, 0.7)
	}
}

func TestRankResultsClampsScores(t *testing.T) {
	// ivfflat distance arithmetic can push raw scores slightly out of
	// range; ranked results always land in [0,1].
	results := []models.SearchResult{
		{ChunkID: "a", Score: 1.02},
		{ChunkID: "b", Score: -0.04},
	}

	ranked := rankResults(results, 0)
	require.Len(t, ranked, 2)
	for _, r := range ranked {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestRankResultsEmpty(t *testing.T) {
	ranked := rankResults(nil, 0.7)
	assert.Empty(t, ranked)
}
