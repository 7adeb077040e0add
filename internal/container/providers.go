// Package container provides dependency injection and lifecycle management
// for the AI Bookkeeper service following Clean Architecture principles.
package container

import (
	"context"
	"fmt"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/application/service"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/cache"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/classification"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/gemini"
	infraLark "github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/lark"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/openai"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/quickbooks"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/persistence/repository"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/storage"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/worker"
	"github.com/garyjia/ai-bookkeeper/migrations"
	"github.com/garyjia/ai-bookkeeper/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqldb.TxManager
}

// ExternalBundle holds clients for the model provider, the accounting
// system and the reviewer notification channel.
type ExternalBundle struct {
	Classifier port.Classifier
	Accounting *quickbooks.Client
	// Notifier is nil when Lark is not configured
	Notifier port.ReviewNotifier
}

// StorageBundle holds the file repository and session store with their
// release functions.
type StorageBundle struct {
	Files    port.FileRepository
	Sessions port.SessionStore
	closers  []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// ProvideDatabase opens the database, applies the embedded migrations and
// rewrites legacy document metadata.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqldb.NewTxManager(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
// Legacy extracted metadata is migrated to the current shape before returning.
func ProvideRepositories(ctx context.Context, db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	placeholder := database.Placeholder(db.Driver)
	docs := repository.NewDocumentRepository(db.DB, placeholder, logger)

	migrated, err := docs.MigrateLegacyMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate legacy metadata: %w", err)
	}
	if migrated > 0 {
		logger.Info("Legacy document metadata migrated", zap.Int("documents", migrated))
	}

	return &RepositoryBundle{
		Document:    docs,
		Transaction: repository.NewTransactionRepository(db.DB, placeholder, logger),
	}, nil
}

// ProvideClassifier creates the two-tier document classifier for the
// configured provider.
func ProvideClassifier(ctx context.Context, cfg *ClassifierConfig, logger *zap.Logger) (port.Classifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("classifier config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Load prompts from YAML file, or the built-in catalog
	prompts, err := classification.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	switch cfg.Provider {
	case "gemini":
		classifier, err := gemini.NewClassifier(ctx, gemini.Config{
			APIKey:     cfg.APIKey,
			Tier1Model: cfg.Tier1Model,
			Tier2Model: cfg.Tier2Model,
		}, prompts, logger)
		if err != nil {
			return nil, err
		}
		return classifier, nil
	case "openai", "":
		return openai.NewClassifier(openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Tier1Model: cfg.Tier1Model,
			Tier2Model: cfg.Tier2Model,
			MaxPages:   cfg.MaxPages,
		}, prompts, logger), nil
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %q", cfg.Provider)
	}
}

// ProvideExternalClients creates the classifier, QuickBooks client and the
// optional Lark notifier.
func ProvideExternalClients(ctx context.Context, cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	classifier, err := ProvideClassifier(ctx, &cfg.Classifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	accounting, err := quickbooks.NewClient(ctx, quickbooks.Config{
		Environment:  cfg.QuickBooks.Environment,
		ClientID:     cfg.QuickBooks.ClientID,
		ClientSecret: cfg.QuickBooks.ClientSecret,
		RefreshToken: cfg.QuickBooks.RefreshToken,
		RealmID:      cfg.QuickBooks.RealmID,
		Timeout:      cfg.QuickBooks.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create quickbooks client: %w", err)
	}

	return &ExternalBundle{
		Classifier: classifier,
		Accounting: accounting,
		Notifier:   ProvideNotifier(&cfg.Lark, logger),
	}, nil
}

// ProvideNotifier creates the Lark review notifier, or nil when Lark is
// not configured.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) port.ReviewNotifier {
	if cfg == nil || cfg.AppID == "" {
		logger.Info("Lark not configured, review notifications disabled")
		return nil
	}

	larkCfg := infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReviewChatID:  cfg.ReviewChatID,
		ReceiveIDType: cfg.ReceiveIDType,
		ReviewURL:     cfg.ReviewURL,
	}
	return infraLark.NewNotifier(infraLark.NewSDKClient(larkCfg, logger), larkCfg, logger)
}

// ProvideStorage creates the file repository and the session store.
func ProvideStorage(ctx context.Context, storageCfg *StorageConfig, sessionCfg *SessionConfig, logger *zap.Logger) (*StorageBundle, error) {
	if storageCfg == nil || sessionCfg == nil {
		return nil, fmt.Errorf("storage and session config are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &StorageBundle{}

	switch storageCfg.Provider {
	case "gdrive":
		drive, err := storage.NewDriveRepository(ctx, storageCfg.CredentialsFile, storageCfg.RootFolderID, logger)
		if err != nil {
			return nil, err
		}
		bundle.Files = drive
	case "gcs":
		gcs, closeFn, err := storage.NewGCSRepository(ctx, storageCfg.Bucket, storageCfg.Prefix, storageCfg.CredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		bundle.Files = gcs
		bundle.closers = append(bundle.closers, namedCloser{name: "gcs", close: closeFn})
	case "local", "":
		bundle.Files = storage.NewLocalRepository(storageCfg.BaseDir, logger)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %q", storageCfg.Provider)
	}

	if sessionCfg.RedisEnabled {
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:     sessionCfg.RedisAddr,
			Username: sessionCfg.RedisUsername,
			Password: sessionCfg.RedisPassword,
			DB:       sessionCfg.RedisDB,
		})
		if err != nil {
			bundle.Close(logger)
			return nil, err
		}
		bundle.Sessions = cache.NewRedisSessionStore(client, sessionCfg.TTL, logger)
		bundle.closers = append(bundle.closers, namedCloser{name: "redis", close: client.Close})
	} else {
		bundle.Sessions = cache.NewMemorySessionStore(sessionCfg.TTL)
	}

	return bundle, nil
}

// Close releases storage clients in reverse order of creation
func (b *StorageBundle) Close(logger *zap.Logger) error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		c := b.closers[i]
		if err := c.close(); err != nil {
			logger.Error("Failed to close storage client", zap.String("client", c.name), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", c.name, err)
			}
		}
	}
	b.closers = nil
	return firstErr
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	External   *ExternalBundle
	Storage    *StorageBundle
	IntakeCfg  *IntakeConfig
	SessionCfg *SessionConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
// Returns ServiceBundle containing all service implementations.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.External == nil || deps.Storage == nil {
		return nil, fmt.Errorf("external clients and storage are required")
	}
	if deps.IntakeCfg == nil || deps.SessionCfg == nil {
		return nil, fmt.Errorf("intake and session config are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Create logger adapter for services
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	approval := service.NewApprovalService(
		deps.Repos.Document,
		deps.External.Accounting,
		deps.Storage.Files,
		deps.IntakeCfg.ApprovalLease,
		serviceLogger,
	)

	return &ServiceBundle{
		Intake: service.NewIntakeService(
			deps.External.Classifier,
			service.NewDuplicateDetector(deps.Repos.Document, serviceLogger),
			deps.Repos.Document,
			deps.Storage.Files,
			deps.External.Notifier,
			service.IntakeConfig{
				DuplicateWindowDays: deps.IntakeCfg.DuplicateWindowDays,
				MaxFileBytes:        deps.IntakeCfg.MaxFileBytes,
			},
			serviceLogger,
		),
		Review:   service.NewReviewService(deps.Repos.Document, approval, serviceLogger),
		Approval: approval,
		Reconciliation: service.NewReconciliationService(
			deps.Repos.Transaction,
			deps.External.Accounting,
			deps.TxManager,
			serviceLogger,
		),
		Sessions: service.NewSessionService(deps.Storage.Sessions, deps.SessionCfg.MaxTurns, serviceLogger),
	}, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Services  *ServiceBundle
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.Manager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(deps.Logger)

	if deps.WorkerCfg.BookSyncEnabled && len(deps.WorkerCfg.Realms) > 0 {
		manager.Register(worker.NewBookSyncWorker(
			deps.Services.Reconciliation,
			deps.WorkerCfg.Realms,
			deps.WorkerCfg.BookSyncInterval,
			deps.Logger,
		))
	} else {
		deps.Logger.Info("Book sync worker disabled")
	}

	return manager, nil
}
