package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	QuickBooks QuickBooksConfig `mapstructure:"quickbooks"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Session    SessionConfig    `mapstructure:"session"`
	Lark       LarkConfig       `mapstructure:"lark"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Intake     IntakeConfig     `mapstructure:"intake"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite3 or pgx
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ClassifierConfig selects the model provider used for both tiers
type ClassifierConfig struct {
	Provider    string `mapstructure:"provider"` // openai or gemini
	PromptsPath string `mapstructure:"prompts_path"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Tier1Model string `mapstructure:"tier1_model"`
	Tier2Model string `mapstructure:"tier2_model"`
	MaxPages   int    `mapstructure:"max_pages"`
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Tier1Model string `mapstructure:"tier1_model"`
	Tier2Model string `mapstructure:"tier2_model"`
}

// QuickBooksConfig holds QuickBooks Online API configuration
type QuickBooksConfig struct {
	Environment  string        `mapstructure:"environment"` // sandbox or production
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RefreshToken string        `mapstructure:"refresh_token"`
	RealmID      string        `mapstructure:"realm_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds file repository configuration
type StorageConfig struct {
	Provider        string `mapstructure:"provider"` // local, gdrive or gcs
	BaseDir         string `mapstructure:"base_dir"`
	RootFolderID    string `mapstructure:"root_folder_id"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// RedisConfig holds Redis configuration for assistant sessions
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig holds assistant session limits
type SessionConfig struct {
	MaxTurns int           `mapstructure:"max_turns"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LarkConfig holds Lark API configuration. Notifications are disabled
// when app_id is empty.
type LarkConfig struct {
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	ReviewChatID  string `mapstructure:"review_chat_id"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
	ReviewURL     string `mapstructure:"review_url"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	BookSyncEnabled  bool          `mapstructure:"book_sync_enabled"`
	BookSyncInterval time.Duration `mapstructure:"book_sync_interval"`
	Realms           []string      `mapstructure:"realms"`
}

// IntakeConfig holds intake pipeline configuration
type IntakeConfig struct {
	DuplicateWindowDays int           `mapstructure:"duplicate_window_days"`
	MaxFileBytes        int64         `mapstructure:"max_file_bytes"`
	ApprovalLease       time.Duration `mapstructure:"approval_lease"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied to the environment first.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_upload_bytes", 25<<20)

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/bookkeeper.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Classifier defaults
	v.SetDefault("classifier.provider", "openai")
	v.SetDefault("openai.tier1_model", "gpt-4o-mini")
	v.SetDefault("openai.tier2_model", "gpt-4o")
	v.SetDefault("openai.max_pages", 3)
	v.SetDefault("gemini.tier1_model", "gemini-2.5-flash")
	v.SetDefault("gemini.tier2_model", "gemini-2.5-pro")

	// QuickBooks defaults
	v.SetDefault("quickbooks.environment", "sandbox")
	v.SetDefault("quickbooks.timeout", 30*time.Second)

	// Storage defaults
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "data/files")

	// Redis and session defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("session.max_turns", 20)
	v.SetDefault("session.ttl", 24*time.Hour)

	// Lark defaults
	v.SetDefault("lark.receive_id_type", "chat_id")

	// Worker defaults
	v.SetDefault("worker.book_sync_enabled", true)
	v.SetDefault("worker.book_sync_interval", 15*time.Minute)

	// Intake defaults
	v.SetDefault("intake.duplicate_window_days", 30)
	v.SetDefault("intake.max_file_bytes", 25<<20)
	v.SetDefault("intake.approval_lease", 2*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("quickbooks.client_id", "QBO_CLIENT_ID")
	v.BindEnv("quickbooks.client_secret", "QBO_CLIENT_SECRET")
	v.BindEnv("quickbooks.refresh_token", "QBO_REFRESH_TOKEN")
	v.BindEnv("quickbooks.realm_id", "QBO_REALM_ID")
	v.BindEnv("storage.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("lark.app_id", "LARK_APP_ID")
	v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate database
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" && c.Database.DSN == "" {
			return fmt.Errorf("database.path is required")
		}
	case "pgx":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for pgx")
		}
	default:
		return fmt.Errorf("unsupported database.driver: %q", c.Database.Driver)
	}

	// Validate classifier credentials
	switch c.Classifier.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is required")
		}
	default:
		return fmt.Errorf("unsupported classifier.provider: %q", c.Classifier.Provider)
	}

	// Validate QuickBooks credentials
	if c.QuickBooks.ClientID == "" || c.QuickBooks.ClientSecret == "" {
		return fmt.Errorf("quickbooks.client_id and quickbooks.client_secret are required")
	}
	if c.QuickBooks.RefreshToken == "" {
		return fmt.Errorf("quickbooks.refresh_token is required")
	}
	if c.QuickBooks.RealmID == "" {
		return fmt.Errorf("quickbooks.realm_id is required")
	}

	// Validate storage
	switch c.Storage.Provider {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required")
		}
	case "gdrive":
		if c.Storage.RootFolderID == "" {
			return fmt.Errorf("storage.root_folder_id is required for gdrive")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for gcs")
		}
	default:
		return fmt.Errorf("unsupported storage.provider: %q", c.Storage.Provider)
	}

	if c.Lark.AppID != "" && c.Lark.ReviewChatID == "" {
		return fmt.Errorf("lark.review_chat_id is required when lark is enabled")
	}

	if c.Intake.DuplicateWindowDays < 0 {
		return fmt.Errorf("intake.duplicate_window_days must not be negative")
	}

	return nil
}

// SyncRealms returns the realms the book sync worker should visit,
// falling back to the default QuickBooks realm.
func (c *Config) SyncRealms() []string {
	if len(c.Worker.Realms) > 0 {
		return c.Worker.Realms
	}
	if c.QuickBooks.RealmID != "" {
		return []string{c.QuickBooks.RealmID}
	}
	return nil
}
