// Package container provides dependency injection and lifecycle management
// for the AI Bookkeeper service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Classifier configuration
	Classifier ClassifierConfig

	// QuickBooks accounting configuration
	QuickBooks QuickBooksConfig

	// Lark notification configuration
	Lark LarkConfig

	// Storage configuration
	Storage StorageConfig

	// Session store configuration
	Session SessionConfig

	// Intake pipeline configuration
	Intake IntakeConfig

	// Server configuration
	Server ServerConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite3 or pgx
	Driver string

	// Path to SQLite database file
	Path string

	// DSN is the Postgres connection string
	DSN string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// ClassifierConfig holds model provider settings for both tiers.
type ClassifierConfig struct {
	// Provider is openai or gemini
	Provider string

	// PromptsPath overrides the built-in prompt catalog
	PromptsPath string

	APIKey     string
	BaseURL    string
	Tier1Model string
	Tier2Model string

	// MaxPages limits how many PDF pages are rasterized for OpenAI
	MaxPages int
}

// QuickBooksConfig holds accounting system settings.
type QuickBooksConfig struct {
	Environment  string
	ClientID     string
	ClientSecret string
	RefreshToken string
	RealmID      string
	Timeout      time.Duration
}

// LarkConfig holds Lark API settings. Empty AppID disables notifications.
type LarkConfig struct {
	AppID         string
	AppSecret     string
	ReviewChatID  string
	ReceiveIDType string
	ReviewURL     string
}

// StorageConfig holds file repository settings.
type StorageConfig struct {
	// Provider is local, gdrive or gcs
	Provider string

	// BaseDir is the root directory for the local provider
	BaseDir string

	// RootFolderID is the Drive folder that holds the filing tree
	RootFolderID string

	// Bucket and Prefix locate the GCS filing tree
	Bucket string
	Prefix string

	// CredentialsFile is an optional service account key for Google APIs
	CredentialsFile string
}

// SessionConfig holds assistant session settings.
type SessionConfig struct {
	// RedisEnabled selects redis over the in-process store
	RedisEnabled  bool
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	MaxTurns int
	TTL      time.Duration
}

// IntakeConfig holds intake and approval pipeline settings.
type IntakeConfig struct {
	DuplicateWindowDays int
	MaxFileBytes        int64
	ApprovalLease       time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// MaxUploadBytes caps multipart uploads
	MaxUploadBytes int64
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	BookSyncEnabled  bool
	BookSyncInterval time.Duration
	Realms           []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			Path:            "data/bookkeeper.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Classifier: ClassifierConfig{
			Provider:   "openai",
			Tier1Model: "gpt-4o-mini",
			Tier2Model: "gpt-4o",
			MaxPages:   3,
		},
		QuickBooks: QuickBooksConfig{
			Environment: "sandbox",
			Timeout:     30 * time.Second,
		},
		Lark: LarkConfig{
			ReceiveIDType: "chat_id",
		},
		Storage: StorageConfig{
			Provider: "local",
			BaseDir:  "data/files",
		},
		Session: SessionConfig{
			RedisAddr: "localhost:6379",
			MaxTurns:  20,
			TTL:       24 * time.Hour,
		},
		Intake: IntakeConfig{
			DuplicateWindowDays: 30,
			MaxFileBytes:        25 << 20,
			ApprovalLease:       2 * time.Minute,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxUploadBytes: 25 << 20,
		},
		Worker: WorkerConfig{
			BookSyncEnabled:  true,
			BookSyncInterval: 15 * time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	// Validate classifier configuration
	if c.Classifier.Provider != "openai" && c.Classifier.Provider != "gemini" {
		return fmt.Errorf("unsupported classifier provider: %q", c.Classifier.Provider)
	}
	if c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier api key is required")
	}

	// Validate QuickBooks configuration
	if c.QuickBooks.ClientID == "" || c.QuickBooks.RefreshToken == "" {
		return fmt.Errorf("quickbooks credentials are required")
	}
	if c.QuickBooks.RealmID == "" {
		return fmt.Errorf("quickbooks.realm_id is required")
	}

	// Validate storage configuration
	switch c.Storage.Provider {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required")
		}
	case "gdrive":
		if c.Storage.RootFolderID == "" {
			return fmt.Errorf("storage.root_folder_id is required")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage provider: %q", c.Storage.Provider)
	}

	return nil
}
