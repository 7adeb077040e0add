package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/service"
	"go.uber.org/zap"
)

// DefaultBookSyncInterval is used when no interval is configured
const DefaultBookSyncInterval = 15 * time.Minute

// BookSyncWorker periodically pulls bills from the accounting system into
// the book side of the transaction store, one realm at a time.
type BookSyncWorker struct {
	reconciliation service.ReconciliationService
	realms         []string
	interval       time.Duration
	logger         *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewBookSyncWorker creates a book sync worker
func NewBookSyncWorker(reconciliation service.ReconciliationService, realms []string, interval time.Duration, logger *zap.Logger) *BookSyncWorker {
	if interval <= 0 {
		interval = DefaultBookSyncInterval
	}
	return &BookSyncWorker{
		reconciliation: reconciliation,
		realms:         realms,
		interval:       interval,
		logger:         logger,
	}
}

// Start launches the sync loop; the first sync runs immediately
func (w *BookSyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("book sync worker is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("BookSyncWorker started",
		zap.Duration("interval", w.interval),
		zap.Strings("realms", w.realms))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sync to finish
func (w *BookSyncWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
}

// Name returns the worker name for identification
func (w *BookSyncWorker) Name() string {
	return "BookSyncWorker"
}

func (w *BookSyncWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.SyncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.SyncOnce(ctx)
		}
	}
}

// SyncOnce syncs every configured realm. A failing realm does not stop the others.
func (w *BookSyncWorker) SyncOnce(ctx context.Context) {
	for _, realmID := range w.realms {
		if ctx.Err() != nil {
			return
		}
		result, err := w.reconciliation.SyncBookTransactions(ctx, realmID)
		if err != nil {
			w.logger.Error("Book sync failed", zap.String("realm_id", realmID), zap.Error(err))
			continue
		}
		w.logger.Info("Book sync completed",
			zap.String("realm_id", realmID),
			zap.Int("fetched", result.Fetched),
			zap.Int("upserted", result.Upserted),
			zap.Int("skipped", result.Skipped))
	}
}
