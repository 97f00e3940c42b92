package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/models"
)

func (s *Server) handleListDocuments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filters := models.DocumentFilters{
		Source:   config.Source(c.Query("source")),
		Status:   models.ProcessingStatus(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	}
	if filters.Source != "" && !filters.Source.IsValid() {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "unknown source filter",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	resp, err := s.deps.Documents.ListDocuments(c.Request.Context(), filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetDocument(c *gin.Context) {
	doc, err := s.deps.Documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	if err := s.deps.Documents.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bulkUploadMaxFiles caps one bulk request.
const bulkUploadMaxFiles = 10

// handleUpload ingests one file synchronously and returns the resulting
// document, so the admin sees chunking or embedding failures immediately.
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "multipart form must carry a 'file' part",
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	if !s.deps.Upload.Accepts(file.Filename) {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "unsupported file type (accepted: .txt, .md, .csv)",
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	data, err := readFormFile(file)
	if err != nil {
		s.respondError(c, err)
		return
	}

	doc, err := s.deps.Upload.Ingest(c.Request.Context(), file.Filename, data, currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// handleBulkUpload ingests up to bulkUploadMaxFiles files in one request.
// Per-file failures do not abort the batch; they are reported alongside the
// documents that did ingest.
func (s *Server) handleBulkUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "invalid multipart form: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     "multipart form must carry at least one 'files' part",
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	if len(files) > bulkUploadMaxFiles {
		c.JSON(http.StatusBadRequest, errorBody{
			Detail:     fmt.Sprintf("at most %d files per bulk upload", bulkUploadMaxFiles),
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	docs := make([]*models.Document, 0, len(files))
	failed := map[string]string{}
	for _, file := range files {
		if !s.deps.Upload.Accepts(file.Filename) {
			failed[file.Filename] = "unsupported file type (accepted: .txt, .md, .csv)"
			continue
		}
		data, err := readFormFile(file)
		if err != nil {
			failed[file.Filename] = err.Error()
			continue
		}
		doc, err := s.deps.Upload.Ingest(c.Request.Context(), file.Filename, data, currentUser(c))
		if err != nil {
			failed[file.Filename] = err.Error()
			continue
		}
		docs = append(docs, doc)
	}

	status := http.StatusCreated
	if len(docs) == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"documents": docs, "failed": failed})
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
