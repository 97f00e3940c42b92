package knowledge

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/paydesk/paydesk/pkg/models"
)

// Hybrid scoring weights: combined = 0.7·vector + 0.3·keyword.
const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// VectorSearch returns the top-k chunks by cosine similarity ≥ threshold,
// descending, ties broken by newest chunk first. Only chunks of completed
// documents with non-null embeddings are searched.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, k int, threshold float64) ([]models.ScoredChunk, error) {
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d", len(embedding), s.dimension)
	}
	if k < 1 {
		k = 5
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.token_count, c.created_at,
		       d.source, d.title, d.doc_metadata,
		       GREATEST(0.0, LEAST(1.0, 1.0 - (c.embedding <=> $1))) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.processing_status = 'completed'
		  AND c.embedding IS NOT NULL
		  AND GREATEST(0.0, LEAST(1.0, 1.0 - (c.embedding <=> $1))) >= $2
		ORDER BY score DESC, c.created_at DESC
		LIMIT $3`,
		pgvector.NewVector(embedding), threshold, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	return collectScored(rows)
}

// HybridSearch combines cosine similarity with a keyword score over the same
// chunks. The combined score is 0.7·vector + 0.3·keyword, filtered by
// threshold, descending, deduplicated by chunk id.
func (s *Store) HybridSearch(ctx context.Context, embedding []float32, query string, k int, threshold float64) ([]models.ScoredChunk, error) {
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d", len(embedding), s.dimension)
	}
	if k < 1 {
		k = 5
	}

	rows, err := s.db.Pool().Query(ctx, `
		WITH scored AS (
			SELECT c.id, c.document_id, c.chunk_index, c.content, c.token_count, c.created_at,
			       d.source, d.title, d.doc_metadata,
			       GREATEST(0.0, LEAST(1.0, 1.0 - (c.embedding <=> $1))) AS vscore,
			       LEAST(1.0, ts_rank_cd(c.content_tsv, plainto_tsquery('english', $2))::float8) AS kscore
			FROM chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE d.processing_status = 'completed'
			  AND c.embedding IS NOT NULL
		)
		SELECT id, document_id, chunk_index, content, token_count, created_at,
		       source, title, doc_metadata,
		       ($3::float8 * vscore + $4::float8 * kscore) AS score
		FROM scored
		WHERE ($3::float8 * vscore + $4::float8 * kscore) >= $5
		ORDER BY score DESC, created_at DESC
		LIMIT $6`,
		pgvector.NewVector(embedding), query, vectorWeight, keywordWeight, threshold, k)
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}
	defer rows.Close()

	return collectScored(rows)
}

type chunkRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// collectScored scans result rows, deduplicating by chunk id while keeping
// the first (highest-scored) occurrence.
func collectScored(rows chunkRows) ([]models.ScoredChunk, error) {
	var out []models.ScoredChunk
	seen := make(map[string]bool)
	for rows.Next() {
		var sc models.ScoredChunk
		err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.ChunkIndex, &sc.Content, &sc.TokenCount,
			&sc.CreatedAt, &sc.Source, &sc.Title, &sc.DocMeta, &sc.Score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		if seen[sc.ID] {
			continue
		}
		seen[sc.ID] = true
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search hits: %w", err)
	}
	return out, nil
}
