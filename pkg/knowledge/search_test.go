package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/models"
)

// fakeRows feeds canned hits through collectScored.
type fakeRows struct {
	hits []models.ScoredChunk
	pos  int
}

func (f *fakeRows) Next() bool { return f.pos < len(f.hits) }

func (f *fakeRows) Scan(dest ...any) error {
	h := f.hits[f.pos]
	f.pos++
	*dest[0].(*string) = h.ID
	*dest[1].(*string) = h.DocumentID
	*dest[2].(*int) = h.ChunkIndex
	*dest[3].(*string) = h.Content
	*dest[4].(*int) = h.TokenCount
	*dest[5].(*time.Time) = h.CreatedAt
	*dest[6].(*config.Source) = h.Source
	*dest[7].(*string) = h.Title
	*dest[8].(*map[string]any) = h.DocMeta
	*dest[9].(*float64) = h.Score
	return nil
}

func (f *fakeRows) Err() error { return nil }

func TestCollectScored_DeduplicatesByChunkID(t *testing.T) {
	rows := &fakeRows{hits: []models.ScoredChunk{
		{Chunk: models.Chunk{ID: "a"}, Score: 0.9, Source: config.SourceSlack},
		{Chunk: models.Chunk{ID: "b"}, Score: 0.8, Source: config.SourceSlack},
		{Chunk: models.Chunk{ID: "a"}, Score: 0.7, Source: config.SourceSlack},
	}}
	out, err := collectScored(rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, 0.9, out[0].Score, "first (highest) occurrence kept")
	assert.Equal(t, "b", out[1].ID)
}

func TestHybridWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, vectorWeight+keywordWeight, 1e-9)
}
