package config

import (
	"github.com/garyjia/ai-bookkeeper/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	classifier := container.ClassifierConfig{
		Provider:    c.Classifier.Provider,
		PromptsPath: c.Classifier.PromptsPath,
	}
	switch c.Classifier.Provider {
	case "gemini":
		classifier.APIKey = c.Gemini.APIKey
		classifier.Tier1Model = c.Gemini.Tier1Model
		classifier.Tier2Model = c.Gemini.Tier2Model
	default:
		classifier.APIKey = c.OpenAI.APIKey
		classifier.BaseURL = c.OpenAI.BaseURL
		classifier.Tier1Model = c.OpenAI.Tier1Model
		classifier.Tier2Model = c.OpenAI.Tier2Model
		classifier.MaxPages = c.OpenAI.MaxPages
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Classifier: classifier,
		QuickBooks: container.QuickBooksConfig{
			Environment:  c.QuickBooks.Environment,
			ClientID:     c.QuickBooks.ClientID,
			ClientSecret: c.QuickBooks.ClientSecret,
			RefreshToken: c.QuickBooks.RefreshToken,
			RealmID:      c.QuickBooks.RealmID,
			Timeout:      c.QuickBooks.Timeout,
		},
		Lark: container.LarkConfig{
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReviewChatID:  c.Lark.ReviewChatID,
			ReceiveIDType: c.Lark.ReceiveIDType,
			ReviewURL:     c.Lark.ReviewURL,
		},
		Storage: container.StorageConfig{
			Provider:        c.Storage.Provider,
			BaseDir:         c.Storage.BaseDir,
			RootFolderID:    c.Storage.RootFolderID,
			Bucket:          c.Storage.Bucket,
			Prefix:          c.Storage.Prefix,
			CredentialsFile: c.Storage.CredentialsFile,
		},
		Session: container.SessionConfig{
			RedisEnabled:  c.Redis.Enabled,
			RedisAddr:     c.Redis.Addr,
			RedisUsername: c.Redis.Username,
			RedisPassword: c.Redis.Password,
			RedisDB:       c.Redis.DB,
			MaxTurns:      c.Session.MaxTurns,
			TTL:           c.Session.TTL,
		},
		Intake: container.IntakeConfig{
			DuplicateWindowDays: c.Intake.DuplicateWindowDays,
			MaxFileBytes:        c.Intake.MaxFileBytes,
			ApprovalLease:       c.Intake.ApprovalLease,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
		Worker: container.WorkerConfig{
			BookSyncEnabled:  c.Worker.BookSyncEnabled,
			BookSyncInterval: c.Worker.BookSyncInterval,
			Realms:           c.SyncRealms(),
		},
	}
}
