package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/anonymizer"
	"github.com/paydesk/paydesk/pkg/chunker"
	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/llm"
	"github.com/paydesk/paydesk/pkg/models"
)

type memStore struct {
	upsertErr error
	commitErr error

	doc       *models.Document
	upserted  []models.ProcessingStatus
	committed []models.Chunk
	content   string
	marked    models.ProcessingStatus
	reason    string
}

func (m *memStore) UpsertDocument(_ context.Context, doc *models.Document) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	doc.ID = "doc-1"
	m.doc = doc
	m.upserted = append(m.upserted, doc.Status)
	return nil
}

func (m *memStore) CommitChunks(_ context.Context, _ string, content string, chunks []models.Chunk) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = chunks
	m.content = content
	return nil
}

func (m *memStore) MarkStatus(_ context.Context, _ string, status models.ProcessingStatus, reason string) error {
	m.marked = status
	m.reason = reason
	return nil
}

type memSink struct {
	ingested int64
	failures int
}

func (m *memSink) RecordIngested(_ context.Context, _ config.Source, n int64) error {
	m.ingested += n
	return nil
}

func (m *memSink) RecordFailure(_ context.Context, _ config.Source, _ string) error {
	m.failures++
	return nil
}

type memEmbeddings struct {
	err error
}

func (m *memEmbeddings) Embedder(context.Context) (llm.Embedder, error) {
	if m.err != nil {
		return nil, m.err
	}
	return stubEmbedder{}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}
func (stubEmbedder) Dimension() int { return 3 }

func piiOff() config.PIISettings {
	return config.PIISettings{Enabled: config.BoolPtr(false)}
}

func newPipeline(store *memStore, sink *memSink, embeds *memEmbeddings, pii config.PIISettings) *Pipeline {
	var anon *anonymizer.Anonymizer
	if pii.Active() {
		anon = anonymizer.New(pii)
	}
	split := chunker.New(50, 10, chunker.ApproxTokenCounter)
	return NewPipeline(store, sink, anon, split, embeds, nil, pii)
}

func testItem() Item {
	return Item{
		Source:   config.SourceSlack,
		SourceID: "C1_1700000000.1",
		Title:    "ops thread",
		Content:  strings.Repeat("Settlement happens on the next business day. ", 12),
	}
}

func TestProcess_Success(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	p := newPipeline(store, sink, &memEmbeddings{}, piiOff())

	doc, err := p.Process(context.Background(), testItem())
	require.NoError(t, err)

	assert.Equal(t, models.ProcessingStatusCompleted, doc.Status)
	// The row is registered pending, then moves to processing before any
	// chunking or embedding work.
	assert.Equal(t, []models.ProcessingStatus{
		models.ProcessingStatusPending,
		models.ProcessingStatusProcessing,
	}, store.upserted)
	require.NotEmpty(t, store.committed)
	for i, c := range store.committed {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, []float32{1, 2, 3}, c.Embedding)
		assert.Equal(t, "doc-1", c.DocumentID)
	}
	assert.Equal(t, int64(1), sink.ingested)
	assert.Zero(t, sink.failures)
}

func TestProcess_AnonymizesBeforeCommit(t *testing.T) {
	store := &memStore{}
	pii := config.PIISettings{
		Enabled:         config.BoolPtr(true),
		DefaultStrategy: config.PIIStrategyReplace,
		Placeholder:     "[REDACTED]",
		MinScore:        0.5,
	}
	p := newPipeline(store, &memSink{}, &memEmbeddings{}, pii)

	item := testItem()
	item.Content += " Contact ops at payments@example.com for details."
	_, err := p.Process(context.Background(), item)
	require.NoError(t, err)

	assert.NotContains(t, store.content, "payments@example.com")
	assert.Contains(t, store.content, "[REDACTED]")

	// Detected entities land in the document metadata as per-type counts.
	require.NotNil(t, store.doc.Metadata)
	counts, ok := store.doc.Metadata["pii_entities"].(map[string]int)
	require.True(t, ok, "pii_entities metadata missing")
	assert.Equal(t, 1, counts[anonymizer.EntityEmail])
}

func TestProcess_NoEntitiesNoAuditMetadata(t *testing.T) {
	store := &memStore{}
	pii := config.PIISettings{
		Enabled:         config.BoolPtr(true),
		DefaultStrategy: config.PIIStrategyReplace,
		Placeholder:     "[REDACTED]",
		MinScore:        0.5,
	}
	p := newPipeline(store, &memSink{}, &memEmbeddings{}, pii)

	_, err := p.Process(context.Background(), testItem())
	require.NoError(t, err)
	if store.doc.Metadata != nil {
		assert.NotContains(t, store.doc.Metadata, "pii_entities")
	}
}

func TestProcess_EmptyContentRejected(t *testing.T) {
	p := newPipeline(&memStore{}, &memSink{}, &memEmbeddings{}, piiOff())
	_, err := p.Process(context.Background(), Item{Source: config.SourceSlack, SourceID: "x", Content: "   "})
	assert.Error(t, err)
}

func TestProcess_EmbedFailureMarksDocumentFailed(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	p := newPipeline(store, sink, &memEmbeddings{err: errors.New("provider down")}, piiOff())

	doc, err := p.Process(context.Background(), testItem())
	require.Error(t, err)
	assert.Equal(t, models.ProcessingStatusFailed, doc.Status)
	assert.Equal(t, models.ProcessingStatusFailed, store.marked)
	assert.Contains(t, store.reason, "provider down")
	assert.Equal(t, 1, sink.failures)
}

func TestProcess_CommitFailureLeavesFailedStatus(t *testing.T) {
	store := &memStore{commitErr: errors.New("tx aborted")}
	p := newPipeline(store, &memSink{}, &memEmbeddings{}, piiOff())

	doc, err := p.Process(context.Background(), testItem())
	require.Error(t, err)
	assert.Equal(t, models.ProcessingStatusFailed, doc.Status)
}

func TestCoordinator_SubmitAndDrain(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	c := NewCoordinator(newPipeline(store, sink, &memEmbeddings{}, piiOff()), 10)

	require.NoError(t, c.Submit(testItem()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	assert.Equal(t, int64(1), sink.ingested)
	assert.Error(t, c.Submit(testItem()), "submit after stop is rejected")
}

func TestCoordinator_RejectsUnknownSource(t *testing.T) {
	c := NewCoordinator(newPipeline(&memStore{}, &memSink{}, &memEmbeddings{}, piiOff()), 1)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	}()

	err := c.Submit(Item{Source: "carrier_pigeon", SourceID: "x", Content: "y"})
	assert.Error(t, err)
}
