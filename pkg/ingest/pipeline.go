package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paydesk/paydesk/pkg/anonymizer"
	"github.com/paydesk/paydesk/pkg/chunker"
	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
	"github.com/paydesk/paydesk/pkg/notifier"
)

// documentStore is the knowledge-store surface the pipeline writes through.
type documentStore interface {
	UpsertDocument(ctx context.Context, doc *models.Document) error
	CommitChunks(ctx context.Context, docID, content string, chunks []models.Chunk) error
	MarkStatus(ctx context.Context, docID string, status models.ProcessingStatus, reason string) error
}

// statusSink records per-source counters.
type statusSink interface {
	RecordIngested(ctx context.Context, source config.Source, n int64) error
	RecordFailure(ctx context.Context, source config.Source, reason string) error
}

// embeddingProvider yields the embedder lazily so provider construction
// errors surface per document, not at startup.
type embeddingProvider interface {
	Embedder(ctx context.Context) (llm.Embedder, error)
}

// Pipeline is the per-document transformation: anonymize, chunk, embed,
// commit. The chunk replacement is all-or-nothing; a failure at any stage
// marks the document failed with the reason and leaves prior chunks intact.
type Pipeline struct {
	store    documentStore
	sources  statusSink
	anon     *anonymizer.Anonymizer
	splitter *chunker.Chunker
	llm      embeddingProvider
	alerts   *notifier.Notifier

	piiEnabled  bool
	piiFailOpen bool
}

// NewPipeline wires the pipeline. anon may be nil when anonymization is
// disabled.
func NewPipeline(store documentStore, sources statusSink, anon *anonymizer.Anonymizer,
	splitter *chunker.Chunker, provider embeddingProvider, alerts *notifier.Notifier,
	pii config.PIISettings) *Pipeline {
	return &Pipeline{
		store:       store,
		sources:     sources,
		anon:        anon,
		splitter:    splitter,
		llm:         provider,
		alerts:      alerts,
		piiEnabled:  pii.Active() && anon != nil,
		piiFailOpen: pii.FailOpen,
	}
}

// Process runs one item through the pipeline. The returned document reflects
// the final state, including failure.
func (p *Pipeline) Process(ctx context.Context, item Item) (*models.Document, error) {
	if strings.TrimSpace(item.Content) == "" {
		return nil, fmt.Errorf("empty content for %s/%s", item.Source, item.SourceID)
	}

	doc := &models.Document{
		Title:    item.Title,
		Source:   item.Source,
		SourceID: item.SourceID,
		Metadata: item.Metadata,
		Status:   models.ProcessingStatusPending,
	}
	if err := p.store.UpsertDocument(ctx, doc); err != nil {
		return nil, p.fail(ctx, doc, item, fmt.Errorf("failed to register document: %w", err))
	}

	content, entities, err := p.anonymize(item)
	if err != nil {
		return doc, p.fail(ctx, doc, item, err)
	}

	// The second upsert moves the row to processing and records what the
	// anonymizer found, so admins can audit scrubbing per document.
	if len(entities) > 0 {
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		doc.Metadata["pii_entities"] = entityCounts(entities)
	}
	doc.Status = models.ProcessingStatusProcessing
	if err := p.store.UpsertDocument(ctx, doc); err != nil {
		return doc, p.fail(ctx, doc, item, fmt.Errorf("failed to update document: %w", err))
	}

	pieces := p.splitter.Split(content)
	if len(pieces) == 0 {
		return doc, p.fail(ctx, doc, item, fmt.Errorf("no chunks produced"))
	}

	embedder, err := p.llm.Embedder(ctx)
	if err != nil {
		return doc, p.fail(ctx, doc, item, fmt.Errorf("embedder unavailable: %w", err))
	}
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Content
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return doc, p.fail(ctx, doc, item, fmt.Errorf("embedding failed: %w", err))
	}
	if len(vectors) != len(pieces) {
		return doc, p.fail(ctx, doc, item,
			fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(pieces)))
	}

	chunks := make([]models.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = models.Chunk{
			DocumentID: doc.ID,
			ChunkIndex: piece.Index,
			Content:    piece.Content,
			Embedding:  vectors[i],
			TokenCount: piece.TokenCount,
		}
	}
	if err := p.store.CommitChunks(ctx, doc.ID, content, chunks); err != nil {
		return doc, p.fail(ctx, doc, item, fmt.Errorf("failed to commit chunks: %w", err))
	}

	doc.Status = models.ProcessingStatusCompleted
	doc.Content = content
	if err := p.sources.RecordIngested(ctx, item.Source, 1); err != nil {
		slog.Debug("Failed to record ingestion counter", "source", item.Source, "error", err)
	}
	slog.Info("Document ingested",
		"source", item.Source, "source_id", item.SourceID, "chunks", len(chunks))
	return doc, nil
}

// anonymize applies PII scrubbing and reports what was detected. With
// fail-open set, an anonymizer error passes the original text through;
// otherwise it fails the document.
func (p *Pipeline) anonymize(item Item) (string, []anonymizer.Entity, error) {
	if !p.piiEnabled {
		return item.Content, nil, nil
	}
	result, err := p.anon.Anonymize(item.Content)
	if err != nil {
		if p.piiFailOpen {
			slog.Warn("Anonymizer failed, ingesting original text",
				"source", item.Source, "source_id", item.SourceID, "error", err)
			return item.Content, nil, nil
		}
		return "", nil, fmt.Errorf("anonymization failed: %w", err)
	}
	return result.Text, result.Entities, nil
}

// entityCounts folds detected entities into per-type counts. Spans and
// scores stay out of the stored metadata.
func entityCounts(entities []anonymizer.Entity) map[string]int {
	counts := make(map[string]int, len(entities))
	for _, e := range entities {
		counts[e.Type]++
	}
	return counts
}

// fail marks the document failed, bumps the failure counter, and alerts.
func (p *Pipeline) fail(ctx context.Context, doc *models.Document, item Item, cause error) error {
	if doc.ID != "" {
		if err := p.store.MarkStatus(ctx, doc.ID, models.ProcessingStatusFailed, cause.Error()); err != nil {
			slog.Warn("Failed to mark document failed", "document_id", doc.ID, "error", err)
		}
		doc.Status = models.ProcessingStatusFailed
	}
	if err := p.sources.RecordFailure(ctx, item.Source, cause.Error()); err != nil {
		slog.Debug("Failed to record failure counter", "source", item.Source, "error", err)
	}
	p.alerts.Notify(notifier.Event{
		Kind:    "ingestion_failure",
		Message: fmt.Sprintf("%s/%s: %v", item.Source, item.SourceID, cause),
	})
	return cause
}
