package collectors

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/ingest"
	"github.com/paydesk/paydesk/pkg/models"
	"github.com/paydesk/paydesk/pkg/services"
)

// uploadMaxBytes caps a single admin upload.
const uploadMaxBytes = 10 << 20

// uploadExtensions lists accepted file types. All are treated as plain text;
// CSV rows keep their commas so tabular context survives chunking.
var uploadExtensions = map[string]string{
	".txt": "text/plain",
	".md":  "text/markdown",
	".csv": "text/csv",
}

// processor runs the pipeline inline so the caller sees the outcome.
type processor interface {
	ProcessSync(ctx context.Context, item ingest.Item) (*models.Document, error)
}

// UploadCollector handles the synchronous admin upload path. Unlike the
// platform collectors it bypasses the queues: the admin waits for the result.
type UploadCollector struct {
	pipeline processor
}

func NewUploadCollector(pipeline processor) *UploadCollector {
	return &UploadCollector{pipeline: pipeline}
}

// Accepts reports whether the filename's extension is ingestable.
func (c *UploadCollector) Accepts(filename string) bool {
	_, ok := uploadExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Ingest validates and processes one uploaded file, returning the resulting
// document.
func (c *UploadCollector) Ingest(ctx context.Context, filename string, data []byte, uploadedBy string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: uploaded file is empty", services.ErrInvalidInput)
	}
	if len(data) > uploadMaxBytes {
		return nil, fmt.Errorf("%w: uploaded file exceeds %d bytes", services.ErrInvalidInput, uploadMaxBytes)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := uploadExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q (accepted: .txt, .md, .csv)", services.ErrInvalidInput, ext)
	}

	title := strings.TrimSuffix(filepath.Base(filename), ext)
	if title == "" {
		title = "Uploaded document"
	}

	return c.pipeline.ProcessSync(ctx, ingest.Item{
		Source:   config.SourceAdminUpload,
		SourceID: uuid.NewString(),
		Title:    title,
		Content:  string(data),
		Metadata: map[string]any{
			"filename":     filepath.Base(filename),
			"content_type": contentType,
			"uploaded_by":  uploadedBy,
			"size_bytes":   len(data),
		},
	})
}
