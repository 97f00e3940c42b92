package collectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/ingest"
	"github.com/paydesk/paydesk/pkg/models"
)

type memProcessor struct {
	item ingest.Item
}

func (m *memProcessor) ProcessSync(_ context.Context, item ingest.Item) (*models.Document, error) {
	m.item = item
	return &models.Document{ID: "doc-1", Status: models.ProcessingStatusCompleted}, nil
}

func TestUploadIngest(t *testing.T) {
	proc := &memProcessor{}
	c := NewUploadCollector(proc)

	doc, err := c.Ingest(context.Background(), "runbooks/chargeback-sop.md",
		[]byte("# Chargeback SOP\nDispute within 7 days."), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)

	assert.Equal(t, config.SourceAdminUpload, proc.item.Source)
	assert.NotEmpty(t, proc.item.SourceID)
	assert.Equal(t, "chargeback-sop", proc.item.Title)
	assert.Equal(t, "chargeback-sop.md", proc.item.Metadata["filename"])
	assert.Equal(t, "text/markdown", proc.item.Metadata["content_type"])
	assert.Equal(t, "admin@example.com", proc.item.Metadata["uploaded_by"])
}

func TestUploadIngest_Rejections(t *testing.T) {
	c := NewUploadCollector(&memProcessor{})
	ctx := context.Background()

	_, err := c.Ingest(ctx, "notes.txt", nil, "admin")
	assert.Error(t, err, "empty file")

	_, err = c.Ingest(ctx, "report.pdf", []byte("%PDF-"), "admin")
	assert.Error(t, err, "unsupported extension")
}

func TestUploadAccepts(t *testing.T) {
	c := NewUploadCollector(&memProcessor{})
	assert.True(t, c.Accepts("a.txt"))
	assert.True(t, c.Accepts("B.MD"))
	assert.True(t, c.Accepts("fees.csv"))
	assert.False(t, c.Accepts("slides.pptx"))
	assert.False(t, c.Accepts("noext"))
}
