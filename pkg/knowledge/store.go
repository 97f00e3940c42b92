// Package knowledge is the vector store gateway: document and chunk CRUD
// plus the vector, keyword, and hybrid search primitives over Postgres with
// the pgvector extension.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/database"
	"github.com/paydesk/paydesk/pkg/models"
	"github.com/paydesk/paydesk/pkg/services"
)

// Store is the vector store gateway. It owns no locks; Postgres is the
// shared state.
type Store struct {
	db        *database.Client
	dimension int
}

// NewStore creates the gateway. dimension is the corpus-wide embedding size.
func NewStore(db *database.Client, dimension int) *Store {
	if dimension <= 0 {
		dimension = config.DefaultEmbeddingDimension
	}
	return &Store{db: db, dimension: dimension}
}

// Dimension returns the corpus embedding dimensionality.
func (s *Store) Dimension() int { return s.dimension }

// UpsertDocument writes the document row keyed by (source, source_id). On
// conflict the existing row is updated in place and its id is kept. The
// document's ID field is set to the persisted id.
func (s *Store) UpsertDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	row := s.db.Pool().QueryRow(ctx, `
		INSERT INTO documents (id, title, source, source_id, content, doc_metadata, processing_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (source, source_id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			doc_metadata = EXCLUDED.doc_metadata,
			processing_status = EXCLUDED.processing_status,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		doc.ID, doc.Title, doc.Source, doc.SourceID, doc.Content, doc.Metadata, doc.Status)
	if err := row.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// CommitChunks transactionally replaces the document's chunks and marks it
// completed. All-or-nothing: any failure leaves the prior chunks untouched.
func (s *Store) CommitChunks(ctx context.Context, docID, content string, chunks []models.Chunk) error {
	for _, c := range chunks {
		if c.Embedding != nil && len(c.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %d embedding has %d dimensions, want %d",
				services.ErrInvalidInput, c.ChunkIndex, len(c.Embedding), s.dimension)
		}
	}

	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("failed to clear prior chunks: %w", err)
	}
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, document_id, chunk_index, content, embedding, token_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())`,
			c.ID, docID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), c.TokenCount)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	_, err = tx.Exec(ctx, `
		UPDATE documents SET content = $2, processing_status = $3, updated_at = now()
		WHERE id = $1`,
		docID, content, models.ProcessingStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to complete document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// MarkStatus updates the document's processing status; a non-empty reason is
// recorded in the document metadata.
func (s *Store) MarkStatus(ctx context.Context, docID string, status models.ProcessingStatus, reason string) error {
	var err error
	if reason != "" {
		_, err = s.db.Pool().Exec(ctx, `
			UPDATE documents
			SET processing_status = $2,
			    doc_metadata = doc_metadata || jsonb_build_object('error', $3::text),
			    updated_at = now()
			WHERE id = $1`, docID, status, reason)
	} else {
		_, err = s.db.Pool().Exec(ctx, `
			UPDATE documents SET processing_status = $2, updated_at = now()
			WHERE id = $1`, docID, status)
	}
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	return nil
}

// GetDocument fetches one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.Pool().QueryRow(ctx, `
		SELECT id, title, source, source_id, content, doc_metadata, processing_status, created_at, updated_at
		FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// DeleteDocument removes the document; chunks cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.db.Pool().Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, services.ErrNotFound)
	}
	return nil
}

// ListDocuments pages documents, optionally filtered by source and status,
// newest first.
func (s *Store) ListDocuments(ctx context.Context, filters models.DocumentFilters) (*models.DocumentListResponse, error) {
	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	where := `WHERE ($1 = '' OR source = $1) AND ($2 = '' OR processing_status = $2)`
	args := []any{string(filters.Source), string(filters.Status)}

	var total int
	if err := s.db.Pool().QueryRow(ctx, `SELECT count(*) FROM documents `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, title, source, source_id, content, doc_metadata, processing_status, created_at, updated_at
		FROM documents `+where+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0, pageSize)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	return &models.DocumentListResponse{
		Documents:  docs,
		Pagination: models.NewPagination(total, page, pageSize),
	}, nil
}

// DeleteOlderThan removes documents of one source created before the cutoff.
// Used by the retention sweeper. Returns the number of rows removed.
func (s *Store) DeleteOlderThan(ctx context.Context, source config.Source, cutoff time.Time) (int64, error) {
	tag, err := s.db.Pool().Exec(ctx,
		`DELETE FROM documents WHERE source = $1 AND created_at < $2`, source, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.Source, &doc.SourceID, &doc.Content,
		&doc.Metadata, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
