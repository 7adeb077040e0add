package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/pkg/utils"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const driveFolderMimeType = "application/vnd.google-apps.folder"

// driveAPI is the subset of Drive operations the repository needs
type driveAPI interface {
	FindFolder(ctx context.Context, name, parentID string) (string, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	CreateFile(ctx context.Context, name, parentID string, content io.Reader) (string, error)
	Parents(ctx context.Context, fileID string) ([]string, error)
	Reparent(ctx context.Context, fileID, addParent string, removeParents []string) error
}

// DriveRepository stores files in Google Drive below a root folder.
// File references are Drive file ids; moves keep the id.
type DriveRepository struct {
	api    driveAPI
	rootID string
	logger *zap.Logger

	mu      sync.Mutex
	folders map[string]string // sanitized path -> folder id
}

var _ port.FileRepository = (*DriveRepository)(nil)

// NewDriveRepository creates a Drive repository authenticated with a service account file.
// An empty credentials file uses Application Default Credentials.
func NewDriveRepository(ctx context.Context, credentialsFile, rootFolderID string, logger *zap.Logger) (*DriveRepository, error) {
	opts := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return newDriveRepository(&driveService{srv: srv}, rootFolderID, logger), nil
}

func newDriveRepository(api driveAPI, rootID string, logger *zap.Logger) *DriveRepository {
	if rootID == "" {
		rootID = "root"
	}
	return &DriveRepository{
		api:     api,
		rootID:  rootID,
		logger:  logger,
		folders: make(map[string]string),
	}
}

// UploadToPath uploads content as filename into folderPath, creating folders as needed
func (r *DriveRepository) UploadToPath(ctx context.Context, content io.Reader, filename, folderPath string) (string, error) {
	name := utils.SanitizePathSegment(filename)
	if name == "" {
		return "", fmt.Errorf("invalid file name %q", filename)
	}

	folderID, err := r.resolveFolder(ctx, folderPath)
	if err != nil {
		return "", err
	}

	id, err := r.api.CreateFile(ctx, name, folderID, content)
	if err != nil {
		r.logger.Error("Failed to upload file to Drive",
			zap.String("name", name),
			zap.String("path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return id, nil
}

// MovePath replaces the file's parents with the folder at newPath
func (r *DriveRepository) MovePath(ctx context.Context, fileRef, newPath string) (string, error) {
	parents, err := r.api.Parents(ctx, fileRef)
	if err != nil {
		if isDriveNotFound(err) {
			return "", fmt.Errorf("%w: %s", port.ErrFileNotFound, fileRef)
		}
		return "", fmt.Errorf("failed to get file parents: %w", err)
	}

	folderID, err := r.resolveFolder(ctx, newPath)
	if err != nil {
		return "", err
	}
	if len(parents) == 1 && parents[0] == folderID {
		return fileRef, nil
	}

	if err := r.api.Reparent(ctx, fileRef, folderID, parents); err != nil {
		r.logger.Error("Failed to move Drive file",
			zap.String("file_id", fileRef),
			zap.String("path", newPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to move file: %w", err)
	}
	return fileRef, nil
}

// resolveFolder walks path segment by segment, creating missing folders
func (r *DriveRepository) resolveFolder(ctx context.Context, folderPath string) (string, error) {
	clean := utils.SanitizePath(folderPath)
	if clean == "" {
		return r.rootID, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parentID := r.rootID
	segments := strings.Split(clean, "/")
	for i, segment := range segments {
		key := strings.Join(segments[:i+1], "/")
		if id, ok := r.folders[key]; ok {
			parentID = id
			continue
		}

		id, err := r.api.FindFolder(ctx, segment, parentID)
		if err != nil {
			return "", fmt.Errorf("failed to find folder %q: %w", key, err)
		}
		if id == "" {
			id, err = r.api.CreateFolder(ctx, segment, parentID)
			if err != nil {
				return "", fmt.Errorf("failed to create folder %q: %w", key, err)
			}
			r.logger.Debug("Created Drive folder", zap.String("path", key), zap.String("folder_id", id))
		}
		r.folders[key] = id
		parentID = id
	}
	return parentID, nil
}

func isDriveNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// driveService adapts *drive.Service to driveAPI
type driveService struct {
	srv *drive.Service
}

func (d *driveService) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeDriveQuery(name), escapeDriveQuery(parentID), driveFolderMimeType)
	list, err := d.srv.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (d *driveService) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	f, err := d.srv.Files.Create(&drive.File{
		Name:     name,
		MimeType: driveFolderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

func (d *driveService) CreateFile(ctx context.Context, name, parentID string, content io.Reader) (string, error) {
	f, err := d.srv.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{parentID},
	}).Media(content).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

func (d *driveService) Parents(ctx context.Context, fileID string) ([]string, error) {
	f, err := d.srv.Files.Get(fileID).Fields("id, parents").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return f.Parents, nil
}

func (d *driveService) Reparent(ctx context.Context, fileID, addParent string, removeParents []string) error {
	call := d.srv.Files.Update(fileID, &drive.File{}).
		AddParents(addParent).
		Fields("id, parents").
		SupportsAllDrives(true)
	if len(removeParents) > 0 {
		call = call.RemoveParents(strings.Join(removeParents, ","))
	}
	_, err := call.Context(ctx).Do()
	return err
}

func escapeDriveQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`)
}
