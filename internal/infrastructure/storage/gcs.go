package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/pkg/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// objectStore is the subset of bucket operations the repository needs
type objectStore interface {
	Write(ctx context.Context, name string, content io.Reader) error
	Exists(ctx context.Context, name string) (bool, error)
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, name string) error
}

// GCSRepository stores files as objects in a Cloud Storage bucket.
// Folders are object name prefixes; file references are object names.
type GCSRepository struct {
	store  objectStore
	prefix string
	logger *zap.Logger
}

var _ port.FileRepository = (*GCSRepository)(nil)

// NewGCSRepository creates a bucket-backed repository.
// An empty credentials file uses Application Default Credentials.
func NewGCSRepository(ctx context.Context, bucket, prefix, credentialsFile string, logger *zap.Logger) (*GCSRepository, func() error, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create storage client: %w", err)
	}
	return newGCSRepository(&bucketStore{bkt: client.Bucket(bucket)}, prefix, logger), client.Close, nil
}

func newGCSRepository(store objectStore, prefix string, logger *zap.Logger) *GCSRepository {
	return &GCSRepository{
		store:  store,
		prefix: utils.SanitizePath(prefix),
		logger: logger,
	}
}

// UploadToPath writes content to {prefix}/{folderPath}/{filename}
func (r *GCSRepository) UploadToPath(ctx context.Context, content io.Reader, filename, folderPath string) (string, error) {
	name := utils.SanitizePathSegment(filename)
	if name == "" {
		return "", fmt.Errorf("invalid file name %q", filename)
	}

	object, err := r.availableName(ctx, utils.JoinPath(r.prefix, utils.SanitizePath(folderPath)), name)
	if err != nil {
		return "", err
	}
	if err := r.store.Write(ctx, object, content); err != nil {
		r.logger.Error("Failed to upload object", zap.String("object", object), zap.Error(err))
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return object, nil
}

// MovePath copies the object under newPath and deletes the original
func (r *GCSRepository) MovePath(ctx context.Context, fileRef, newPath string) (string, error) {
	exists, err := r.store.Exists(ctx, fileRef)
	if err != nil {
		return "", fmt.Errorf("failed to stat object: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", port.ErrFileNotFound, fileRef)
	}

	folder := utils.JoinPath(r.prefix, utils.SanitizePath(newPath))
	if path.Dir(fileRef) == folder || (path.Dir(fileRef) == "." && folder == "") {
		return fileRef, nil
	}

	dst, err := r.availableName(ctx, folder, path.Base(fileRef))
	if err != nil {
		return "", err
	}
	if err := r.store.Copy(ctx, fileRef, dst); err != nil {
		return "", fmt.Errorf("failed to copy object: %w", err)
	}
	if err := r.store.Delete(ctx, fileRef); err != nil {
		// The copy is the file of record from here on
		r.logger.Warn("Failed to delete source object after copy",
			zap.String("object", fileRef),
			zap.Error(err))
	}
	return dst, nil
}

func (r *GCSRepository) availableName(ctx context.Context, folder, name string) (string, error) {
	ext := path.Ext(name)
	stem := name[:len(name)-len(ext)]
	candidate := name
	for i := 1; ; i++ {
		object := utils.JoinPath(folder, candidate)
		exists, err := r.store.Exists(ctx, object)
		if err != nil {
			return "", fmt.Errorf("failed to stat object: %w", err)
		}
		if !exists {
			return object, nil
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
}

// bucketStore adapts a bucket handle to objectStore
type bucketStore struct {
	bkt *storage.BucketHandle
}

func (b *bucketStore) Write(ctx context.Context, name string, content io.Reader) error {
	w := b.bkt.Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, content); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy content to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

func (b *bucketStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.bkt.Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *bucketStore) Copy(ctx context.Context, src, dst string) error {
	_, err := b.bkt.Object(dst).CopierFrom(b.bkt.Object(src)).Run(ctx)
	return err
}

func (b *bucketStore) Delete(ctx context.Context, name string) error {
	return b.bkt.Object(name).Delete(ctx)
}
