// Package models defines the data-transfer and persistence row types shared
// by the services, the ingestion pipeline, and the API layer.
package models

import (
	"time"

	"github.com/paydesk/paydesk/pkg/config"
)

// ProcessingStatus tracks a document through the ingestion pipeline
type ProcessingStatus string

const (
	// ProcessingStatusPending means the document row exists but work has not started
	ProcessingStatusPending ProcessingStatus = "pending"
	// ProcessingStatusProcessing means the pipeline is running for this document
	ProcessingStatusProcessing ProcessingStatus = "processing"
	// ProcessingStatusCompleted means at least one chunk is committed
	ProcessingStatusCompleted ProcessingStatus = "completed"
	// ProcessingStatusFailed means the pipeline gave up; reason in metadata
	ProcessingStatusFailed ProcessingStatus = "failed"
)

// IsValid checks if the processing status is valid
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case ProcessingStatusPending, ProcessingStatusProcessing, ProcessingStatusCompleted, ProcessingStatusFailed:
		return true
	default:
		return false
	}
}

// Document is a single retrievable item. Content is post-anonymization text;
// (Source, SourceID) is unique and re-ingestion replaces in place.
type Document struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Source    config.Source    `json:"source"`
	SourceID  string           `json:"source_id"`
	Content   string           `json:"content"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	Status    ProcessingStatus `json:"processing_status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Chunk is a searchable fragment of a Document. Chunks are immutable once
// written; updates happen by replacing the whole document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a search hit: a chunk plus its parent-document fields and
// the similarity score in [0,1].
type ScoredChunk struct {
	Chunk
	Score   float64        `json:"score"`
	Source  config.Source  `json:"source"`
	Title   string         `json:"title,omitempty"`
	DocMeta map[string]any `json:"doc_metadata,omitempty"`
}

// DocumentFilters narrows document listings.
type DocumentFilters struct {
	Source   config.Source    `json:"source,omitempty"`
	Status   ProcessingStatus `json:"status,omitempty"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// DocumentListResponse is a paginated document listing.
type DocumentListResponse struct {
	Documents  []*Document `json:"documents"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination is the standard list envelope.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes the envelope from totals.
func NewPagination(total, page, pageSize int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Pagination{Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}
}
