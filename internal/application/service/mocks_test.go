package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeDocRepo keeps documents in memory and honours the conditional update
// and lease semantics of the SQL repository.
type fakeDocRepo struct {
	mu      sync.Mutex
	docs    map[string]*entity.Document
	nextID  int
	patches []port.DocumentPatch

	insertFunc func(ctx context.Context, doc *entity.Document) error
	updateFunc func(ctx context.Context, id string, patch port.DocumentPatch) error
	queryFunc  func(ctx context.Context, vendor string, amount float64, since time.Time) ([]*entity.Document, error)
}

func newFakeDocRepo(docs ...*entity.Document) *fakeDocRepo {
	r := &fakeDocRepo{docs: make(map[string]*entity.Document)}
	for _, d := range docs {
		c := *d
		r.docs[d.ID] = &c
	}
	return r
}

func (r *fakeDocRepo) Insert(ctx context.Context, doc *entity.Document) error {
	if r.insertFunc != nil {
		if err := r.insertFunc(ctx, doc); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.ID == "" {
		r.nextID++
		doc.ID = fmt.Sprintf("doc-%d", r.nextID)
	}
	c := *doc
	r.docs[doc.ID] = &c
	return nil
}

func (r *fakeDocRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (r *fakeDocRepo) UpdateByID(ctx context.Context, id string, patch port.DocumentPatch) error {
	if r.updateFunc != nil {
		if err := r.updateFunc(ctx, id, patch); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patches = append(r.patches, patch)

	d, ok := r.docs[id]
	if !ok {
		return port.ErrRecordNotFound
	}
	if patch.ExpectedStatus != nil && d.Status != *patch.ExpectedStatus {
		return port.ErrStaleStatus
	}
	if patch.Status != nil {
		d.Status = *patch.Status
	}
	if patch.Category != nil {
		d.Category = *patch.Category
	}
	if patch.FileRef != nil {
		d.FileRef = *patch.FileRef
	}
	if patch.Extracted != nil {
		d.Extracted = *patch.Extracted
	}
	if patch.Metadata != nil {
		d.Metadata = patch.Metadata
	}
	if patch.ProcessedAt != nil {
		t := *patch.ProcessedAt
		d.ProcessedAt = &t
	}
	if patch.LastError != nil {
		d.LastError = *patch.LastError
	}
	if patch.ReleaseClaim {
		d.ClaimedUntil = nil
	}
	return nil
}

func (r *fakeDocRepo) ClaimForApproval(ctx context.Context, id string, now, until time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Status != entity.DocumentStatusNeedsReview || d.IsClaimed(now) {
		return false, nil
	}
	d.ClaimedUntil = &until
	return true, nil
}

func (r *fakeDocRepo) QueryByStatus(ctx context.Context, status entity.DocumentStatus, limit int) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Document
	for _, d := range r.docs {
		if d.Status == status {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDocRepo) QueryByVendorAndAmountSince(ctx context.Context, vendor string, amount float64, since time.Time) ([]*entity.Document, error) {
	if r.queryFunc != nil {
		return r.queryFunc(ctx, vendor, amount, since)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Document
	for _, d := range r.docs {
		if d.Extracted.VendorName == vendor && d.Extracted.Amount == amount && !d.CreatedAt.Before(since) {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeDocRepo) get(id string) *entity.Document {
	d, _ := r.GetByID(context.Background(), id)
	return d
}

type mockClassifier struct {
	tier1Func  func(ctx context.Context, content []byte, mimeType string) (*port.Tier1Result, error)
	tier2Func  func(ctx context.Context, content []byte, mimeType string) (*port.Tier2Result, error)
	tier1Calls int
	tier2Calls int
}

func (m *mockClassifier) ClassifyTier1(ctx context.Context, content []byte, mimeType string) (*port.Tier1Result, error) {
	m.tier1Calls++
	if m.tier1Func != nil {
		return m.tier1Func(ctx, content, mimeType)
	}
	return &port.Tier1Result{Category: entity.CategoryUnknown}, nil
}

func (m *mockClassifier) ClassifyTier2(ctx context.Context, content []byte, mimeType string) (*port.Tier2Result, error) {
	m.tier2Calls++
	if m.tier2Func != nil {
		return m.tier2Func(ctx, content, mimeType)
	}
	return nil, errors.New("tier2 not configured")
}

type mockFiles struct {
	moveFunc func(ctx context.Context, fileRef, newPath string) (string, error)
	moves    []string
}

func (m *mockFiles) UploadToPath(ctx context.Context, content io.Reader, filename, path string) (string, error) {
	return path + "/" + filename, nil
}

func (m *mockFiles) MovePath(ctx context.Context, fileRef, newPath string) (string, error) {
	m.moves = append(m.moves, newPath)
	if m.moveFunc != nil {
		return m.moveFunc(ctx, fileRef, newPath)
	}
	return fileRef, nil
}

type mockAccounting struct {
	findOrCreateVendorFunc func(ctx context.Context, name string) (*port.VendorRef, error)
	createBillFunc         func(ctx context.Context, req port.BillRequest) (*port.Bill, error)
	listBillsFunc          func(ctx context.Context, realmID string) ([]port.Bill, error)
	bills                  []port.BillRequest
	vendorCalls            int
}

func (m *mockAccounting) FindOrCreateVendor(ctx context.Context, name string) (*port.VendorRef, error) {
	m.vendorCalls++
	if m.findOrCreateVendorFunc != nil {
		return m.findOrCreateVendorFunc(ctx, name)
	}
	return &port.VendorRef{ID: "v-1", DisplayName: name}, nil
}

func (m *mockAccounting) CreateBill(ctx context.Context, req port.BillRequest) (*port.Bill, error) {
	m.bills = append(m.bills, req)
	if m.createBillFunc != nil {
		return m.createBillFunc(ctx, req)
	}
	return &port.Bill{ID: "bill-1", DueDate: req.DueDate, VendorName: req.Vendor.DisplayName}, nil
}

func (m *mockAccounting) ListBills(ctx context.Context, realmID string) ([]port.Bill, error) {
	if m.listBillsFunc != nil {
		return m.listBillsFunc(ctx, realmID)
	}
	return nil, nil
}

type mockNotifier struct {
	notified []string
	err      error
}

func (m *mockNotifier) NotifyPendingReview(ctx context.Context, doc *entity.Document) error {
	m.notified = append(m.notified, doc.ID)
	return m.err
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeTxnRepo upserts by (source, external id)
type fakeTxnRepo struct {
	rows map[string]*entity.Transaction
}

func newFakeTxnRepo(txns ...*entity.Transaction) *fakeTxnRepo {
	r := &fakeTxnRepo{rows: make(map[string]*entity.Transaction)}
	for _, t := range txns {
		_ = r.Upsert(context.Background(), t)
	}
	return r
}

func (r *fakeTxnRepo) Upsert(ctx context.Context, tx *entity.Transaction) error {
	key := string(tx.Source) + "/" + tx.ExternalID
	if existing, ok := r.rows[key]; ok {
		tx.ID = existing.ID
	} else if tx.ID == "" {
		tx.ID = key
	}
	c := *tx
	r.rows[key] = &c
	return nil
}

func (r *fakeTxnRepo) ListByRealmAndSource(ctx context.Context, realmID string, source entity.TransactionSource) ([]*entity.Transaction, error) {
	var out []*entity.Transaction
	for _, t := range r.rows {
		if t.RealmID == realmID && t.Source == source {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (r *fakeTxnRepo) CountBySource(ctx context.Context, realmID string, source entity.TransactionSource) (int, error) {
	list, _ := r.ListByRealmAndSource(ctx, realmID, source)
	return len(list), nil
}

type fakeSessionStore struct {
	sessions map[string]entity.Session
	saveErr  error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]entity.Session)}
}

func (s *fakeSessionStore) Load(ctx context.Context, id string) (*entity.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *fakeSessionStore) Save(ctx context.Context, session *entity.Session) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *fakeSessionStore) Delete(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}
