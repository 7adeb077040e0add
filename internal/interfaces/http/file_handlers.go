package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ai-bookkeeper/internal/application/service"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

// ConfirmRequest is the body of POST /api/files/confirm
type ConfirmRequest struct {
	DocumentID  string                  `json:"documentId" binding:"required"`
	Destination string                  `json:"destination"`
	Metadata    *entity.ExtractedFields `json:"metadata"`
	TargetPath  string                  `json:"targetPath"`
}

// DocumentIDRequest is the body of POST /api/files/reject
type DocumentIDRequest struct {
	DocumentID string `json:"documentId" binding:"required"`
}

// ResolveDuplicateRequest is the body of POST /api/files/duplicates/resolve
type ResolveDuplicateRequest struct {
	DocumentID string `json:"documentId" binding:"required"`
	Action     string `json:"action" binding:"required"`
}

// Upload handles POST /api/files/upload
func (h *Handlers) Upload(c *gin.Context) {
	h.limitBody(c)

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	source := entity.DocumentSource(c.DefaultPostForm("source", string(entity.SourceWeb)))
	if source != entity.SourceWeb && source != entity.SourceRepositoryScan {
		fail(c, http.StatusBadRequest, "invalid source")
		return
	}

	content, err := readFormFile(fh)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	fileRef, err := h.stage(ctx, bytes.NewReader(content), fh.Filename)
	if err != nil {
		h.writeError(c, err, "upload")
		return
	}

	doc, err := h.services.Intake.Ingest(ctx, service.IngestRequest{
		FileRef:  fileRef,
		FileName: fh.Filename,
		MimeType: detectMimeType(fh, content),
		Source:   source,
		Content:  content,
	})
	if err != nil {
		h.writeError(c, err, "ingest")
		return
	}
	ok(c, http.StatusCreated, doc)
}

// UploadBatch handles POST /api/files/upload/batch.
// Every file is staged first; classification then reads one file at a time.
func (h *Handlers) UploadBatch(c *gin.Context) {
	h.limitBody(c)

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		fail(c, http.StatusBadRequest, "multipart field \"files\" is required")
		return
	}

	ctx := c.Request.Context()
	var items []service.BatchItem
	var staged []service.BatchResult
	for _, fh := range form.File["files"] {
		fileRef, err := h.stageFormFile(ctx, fh)
		if err != nil {
			h.logger.Warn("Failed to stage batch file", "file", fh.Filename, "error", err)
			staged = append(staged, service.BatchResult{Error: fmt.Sprintf("%s: %v", fh.Filename, err)})
			continue
		}
		items = append(items, service.BatchItem{
			FileRef:  fileRef,
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Source:   entity.SourceWeb,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	results := append(staged, h.services.Intake.IngestBatch(ctx, items)...)
	ok(c, http.StatusOK, results)
}

// ListPending handles GET /api/files/pending
func (h *Handlers) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	docs, err := h.services.Review.ListPending(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err, "list pending documents")
		return
	}
	ok(c, http.StatusOK, docs)
}

// GetDocument handles GET /api/files/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	doc, err := h.services.Review.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "get document")
		return
	}
	ok(c, http.StatusOK, doc)
}

// UpdateDocument handles PATCH /api/files/:id
func (h *Handlers) UpdateDocument(c *gin.Context) {
	var fields entity.ExtractedFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.services.Review.UpdateExtracted(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		h.writeError(c, err, "update document")
		return
	}
	ok(c, http.StatusOK, doc)
}

// Confirm handles POST /api/files/confirm
func (h *Handlers) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "documentId is required")
		return
	}

	h.logger.Info("Approving document", "document_id", req.DocumentID, "destination", req.Destination)

	result, err := h.services.Approval.Approve(c.Request.Context(), service.ApproveRequest{
		DocumentID:  req.DocumentID,
		Destination: entity.Destination(req.Destination),
		Metadata:    req.Metadata,
		TargetPath:  req.TargetPath,
	})
	if err != nil {
		h.writeError(c, err, "approve document")
		return
	}
	ok(c, http.StatusOK, result)
}

// Reject handles POST /api/files/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req DocumentIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "documentId is required")
		return
	}

	doc, err := h.services.Approval.Reject(c.Request.Context(), req.DocumentID)
	if err != nil {
		h.writeError(c, err, "reject document")
		return
	}
	ok(c, http.StatusOK, doc)
}

// ResolveDuplicate handles POST /api/files/duplicates/resolve
func (h *Handlers) ResolveDuplicate(c *gin.Context) {
	var req ResolveDuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "documentId and action are required")
		return
	}

	doc, err := h.services.Review.ResolveDuplicate(c.Request.Context(), req.DocumentID, req.Action)
	if err != nil {
		h.writeError(c, err, "resolve duplicate")
		return
	}
	ok(c, http.StatusOK, doc)
}

func (h *Handlers) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
}

func (h *Handlers) stage(ctx context.Context, r io.Reader, filename string) (string, error) {
	fileRef, err := h.services.Files.UploadToPath(ctx, r, filename, entity.FolderUnprocessed)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return fileRef, nil
}

func (h *Handlers) stageFormFile(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return h.stage(ctx, f, fh.Filename)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("uploaded file is empty")
	}
	return content, nil
}

func detectMimeType(fh *multipart.FileHeader, content []byte) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return http.DetectContentType(content)
}
