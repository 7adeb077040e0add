package port

import (
	"context"
	"errors"
	"io"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

// ErrFileNotFound is returned when a file reference does not resolve
var ErrFileNotFound = errors.New("file not found")

// FileRepository is a hierarchical folder-path file store.
// Paths use "/" separators, e.g. "All Files/Invoices/2026/Verde Farms".
type FileRepository interface {
	// UploadToPath stores content as filename inside path and returns a file reference
	UploadToPath(ctx context.Context, content io.Reader, filename, path string) (string, error)

	// MovePath moves the file into newPath and returns its (possibly new) reference.
	// Moving into the folder that already holds the file succeeds without change.
	MovePath(ctx context.Context, fileRef, newPath string) (string, error)
}

// SessionStore persists assistant sessions.
// Load returns nil, nil when the session does not exist.
type SessionStore interface {
	Load(ctx context.Context, id string) (*entity.Session, error)
	Save(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, id string) error
}
