package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/service"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type fakeIntake struct {
	ingestFunc func(ctx context.Context, req service.IngestRequest) (*entity.Document, error)
	batch      []service.BatchItem
}

func (f *fakeIntake) Ingest(ctx context.Context, req service.IngestRequest) (*entity.Document, error) {
	return f.ingestFunc(ctx, req)
}

func (f *fakeIntake) IngestBatch(ctx context.Context, items []service.BatchItem) []service.BatchResult {
	f.batch = items
	results := make([]service.BatchResult, 0, len(items))
	for _, item := range items {
		rc, err := item.Open()
		if err != nil {
			results = append(results, service.BatchResult{FileRef: item.FileRef, Error: err.Error()})
			continue
		}
		_ = rc.Close()
		results = append(results, service.BatchResult{FileRef: item.FileRef, Document: &entity.Document{ID: "doc-" + item.FileName}})
	}
	return results
}

type fakeReview struct {
	pending []*entity.Document
	getErr  error
	updated entity.ExtractedFields
	resolve func(id, action string) (*entity.Document, error)
}

func (f *fakeReview) ListPending(ctx context.Context, limit int) ([]*entity.Document, error) {
	return f.pending, nil
}

func (f *fakeReview) Get(ctx context.Context, id string) (*entity.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &entity.Document{ID: id}, nil
}

func (f *fakeReview) UpdateExtracted(ctx context.Context, id string, fields entity.ExtractedFields) (*entity.Document, error) {
	f.updated = fields
	return &entity.Document{ID: id, Extracted: fields}, nil
}

func (f *fakeReview) ResolveDuplicate(ctx context.Context, id, action string) (*entity.Document, error) {
	return f.resolve(id, action)
}

type fakeApproval struct {
	approveErr error
	lastReq    service.ApproveRequest
}

func (f *fakeApproval) Approve(ctx context.Context, req service.ApproveRequest) (*service.ApproveResult, error) {
	f.lastReq = req
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	billID := "555"
	return &service.ApproveResult{
		Document:      &entity.Document{ID: req.DocumentID, Status: entity.DocumentStatusProcessed},
		CreatedBillID: &billID,
		FinalPath:     "All Files/" + req.TargetPath,
	}, nil
}

func (f *fakeApproval) Reject(ctx context.Context, documentID string) (*entity.Document, error) {
	if documentID == "done" {
		return nil, service.ErrAlreadyProcessed
	}
	return &entity.Document{ID: documentID, Status: entity.DocumentStatusRejected}, nil
}

type fakeReconciliation struct{}

func (fakeReconciliation) DetectGhosts(ctx context.Context, realmID string) ([]*entity.Transaction, error) {
	if realmID == "broken" {
		return nil, errors.New("db down")
	}
	return []*entity.Transaction{{ExternalID: "bank-1", Amount: 75, Date: time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)}}, nil
}

func (fakeReconciliation) SyncBookTransactions(ctx context.Context, realmID string) (*service.SyncResult, error) {
	return &service.SyncResult{RealmID: realmID, Fetched: 2, Upserted: 2}, nil
}

type fakeSessions struct {
	cleared string
}

func (f *fakeSessions) Get(ctx context.Context, id string) (*entity.Session, error) {
	return &entity.Session{ID: id, Pending: entity.NoPendingAction()}, nil
}

func (f *fakeSessions) AppendTurn(ctx context.Context, id, role, content string) (*entity.Session, error) {
	if role != entity.RoleUser && role != entity.RoleAssistant {
		return nil, fmt.Errorf("%w: bad role", service.ErrInvalidRequest)
	}
	return &entity.Session{ID: id, Turns: []entity.Turn{{Role: role, Content: content}}}, nil
}

func (f *fakeSessions) SetPending(ctx context.Context, id string, pending entity.PendingAction) (*entity.Session, error) {
	if err := pending.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	return &entity.Session{ID: id, Pending: pending}, nil
}

func (f *fakeSessions) Clear(ctx context.Context, id string) error {
	f.cleared = id
	return nil
}

type fakeFiles struct {
	uploads []string
	failOn  string
}

func (f *fakeFiles) UploadToPath(ctx context.Context, content io.Reader, filename, path string) (string, error) {
	if filename == f.failOn {
		return "", errors.New("disk full")
	}
	_, _ = io.Copy(io.Discard, content)
	ref := path + "/" + filename
	f.uploads = append(f.uploads, ref)
	return ref, nil
}

func (f *fakeFiles) MovePath(ctx context.Context, fileRef, newPath string) (string, error) {
	return fileRef, nil
}

type testEnv struct {
	server   *Server
	intake   *fakeIntake
	review   *fakeReview
	approval *fakeApproval
	sessions *fakeSessions
	files    *fakeFiles
}

func newTestEnv() *testEnv {
	env := &testEnv{
		intake: &fakeIntake{ingestFunc: func(ctx context.Context, req service.IngestRequest) (*entity.Document, error) {
			return &entity.Document{ID: "doc-1", FileRef: req.FileRef, MimeType: req.MimeType, Source: req.Source, Status: entity.DocumentStatusNeedsReview}, nil
		}},
		review:   &fakeReview{},
		approval: &fakeApproval{},
		sessions: &fakeSessions{},
		files:    &fakeFiles{},
	}
	env.server = NewServer(DefaultServerConfig(), Services{
		Intake:         env.intake,
		Review:         env.review,
		Approval:       env.approval,
		Reconciliation: fakeReconciliation{},
		Sessions:       env.sessions,
		Files:          env.files,
	}, nopLogger{})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func multipartRequest(t *testing.T, path, field string, files map[string]string, extra map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv()
	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestUpload_StagesThenIngests(t *testing.T) {
	env := newTestEnv()
	req := multipartRequest(t, "/api/files/upload", "file", map[string]string{"power.pdf": "%PDF-1.4 test"}, map[string]string{"source": "repository-scan"})

	w := env.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"Unprocessed Files/power.pdf"}, env.files.uploads)

	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "Unprocessed Files/power.pdf", data["file_ref"])
	assert.Equal(t, "repository-scan", data["source"])
	assert.Equal(t, "application/pdf", data["mime_type"])
}

func TestUpload_Errors(t *testing.T) {
	env := newTestEnv()

	w := env.do(multipartRequest(t, "/api/files/upload", "other", map[string]string{"a.pdf": "x"}, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(multipartRequest(t, "/api/files/upload", "file", map[string]string{"a.pdf": "x"}, map[string]string{"source": "email"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.files.failOn = "a.pdf"
	w = env.do(multipartRequest(t, "/api/files/upload", "file", map[string]string{"a.pdf": "x"}, nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUploadBatch_ReportsPerFile(t *testing.T) {
	env := newTestEnv()
	env.files.failOn = "bad.pdf"
	req := multipartRequest(t, "/api/files/upload/batch", "files", map[string]string{"a.pdf": "x", "b.pdf": "y", "bad.pdf": "z"}, nil)

	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode(t, w).Data.([]interface{})
	require.Len(t, results, 3)
	assert.Len(t, env.intake.batch, 2)

	var failed int
	for _, r := range results {
		if msg, ok := r.(map[string]interface{})["error"]; ok {
			failed++
			assert.Contains(t, msg, "bad.pdf")
		}
	}
	assert.Equal(t, 1, failed)
}

func TestConfirm_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"already processed", service.ErrAlreadyProcessed, http.StatusConflict},
		{"conflict", fmt.Errorf("%w: lease held", service.ErrConflict), http.StatusConflict},
		{"invalid", fmt.Errorf("%w: bad amount", service.ErrInvalidRequest), http.StatusBadRequest},
		{"accounting", &service.AccountingWriteError{DocumentID: "d1", Err: errors.New("quickbooks 500")}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.approval.approveErr = tt.err

			w := env.doJSON(http.MethodPost, "/api/files/confirm", map[string]interface{}{
				"documentId":  "d1",
				"destination": "AccountingSystem",
				"targetPath":  "Utility Invoices",
				"metadata":    map[string]interface{}{"vendorName": "Acme Power", "amount": 125.4},
			})
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "d1", env.approval.lastReq.DocumentID)
			require.NotNil(t, env.approval.lastReq.Metadata)
			assert.Equal(t, 125.4, env.approval.lastReq.Metadata.Amount)
			if tt.name == "accounting" {
				assert.Contains(t, decode(t, w).Error, "remains in review")
			}
		})
	}
}

func TestConfirm_MissingDocumentID(t *testing.T) {
	env := newTestEnv()
	w := env.doJSON(http.MethodPost, "/api/files/confirm", map[string]interface{}{"destination": "ArchiveOnly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewRoutes(t *testing.T) {
	env := newTestEnv()
	env.review.pending = []*entity.Document{{ID: "d2"}, {ID: "d1"}}
	env.review.resolve = func(id, action string) (*entity.Document, error) {
		if action != service.ResolveKeepBoth {
			return nil, fmt.Errorf("%w: unknown action", service.ErrInvalidRequest)
		}
		return &entity.Document{ID: id}, nil
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/files/pending", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w).Data.([]interface{}), 2)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/files/d1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	env.review.getErr = service.ErrNotFound
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/files/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.doJSON(http.MethodPatch, "/api/files/d1", map[string]interface{}{"vendorName": "Verde Farms", "amount": 2500})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Verde Farms", env.review.updated.VendorName)

	w = env.doJSON(http.MethodPost, "/api/files/duplicates/resolve", map[string]string{"documentId": "d1", "action": "keep_both"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.doJSON(http.MethodPost, "/api/files/duplicates/resolve", map[string]string{"documentId": "d1", "action": "merge"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.doJSON(http.MethodPost, "/api/files/reject", map[string]string{"documentId": "d1"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.doJSON(http.MethodPost, "/api/files/reject", map[string]string{"documentId": "done"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReconciliationRoutes(t *testing.T) {
	env := newTestEnv()

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/reconciliation/realm-1/sync", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "realm-1", decode(t, w).Data.(map[string]interface{})["realm_id"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/reconciliation/realm-1/ghosts", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w).Data.([]interface{}), 1)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/reconciliation/realm-1/ghosts/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/reconciliation/broken/ghosts", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAssistantRoutes(t *testing.T) {
	env := newTestEnv()

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/assistant/sessions/s1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.doJSON(http.MethodPost, "/api/assistant/sessions/s1/turns", map[string]string{"role": "user", "content": "hi"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.doJSON(http.MethodPost, "/api/assistant/sessions/s1/turns", map[string]string{"role": "system", "content": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.doJSON(http.MethodPut, "/api/assistant/sessions/s1/pending", map[string]interface{}{
		"kind":   "awaiting_confirmation",
		"action": map[string]interface{}{"name": "create_bill"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.doJSON(http.MethodPut, "/api/assistant/sessions/s1/pending", map[string]interface{}{"kind": "awaiting_property_info"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/assistant/sessions/s1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", env.sessions.cleared)
}
