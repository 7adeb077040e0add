// Package storage implements port.FileRepository over local disk, Google Drive and GCS.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/pkg/utils"
	"go.uber.org/zap"
)

// LocalRepository stores files under a base directory.
// File references are slash-separated paths relative to the base.
type LocalRepository struct {
	baseDir string
	logger  *zap.Logger
}

var _ port.FileRepository = (*LocalRepository)(nil)

// NewLocalRepository creates a LocalRepository rooted at baseDir
func NewLocalRepository(baseDir string, logger *zap.Logger) *LocalRepository {
	return &LocalRepository{
		baseDir: baseDir,
		logger:  logger,
	}
}

// UploadToPath writes content as filename inside folderPath.
// An existing file with the same name is not overwritten; a numeric suffix is added.
func (s *LocalRepository) UploadToPath(ctx context.Context, content io.Reader, filename, folderPath string) (string, error) {
	name := utils.SanitizePathSegment(filename)
	if name == "" {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	folder := utils.SanitizePath(folderPath)

	dir, err := s.resolve(folder)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", dir),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	name = availableName(dir, name)
	fullPath := filepath.Join(dir, name)
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	ref := path.Join(folder, name)
	s.logger.Debug("File saved successfully",
		zap.String("ref", ref),
		zap.Int64("size", size))
	return ref, nil
}

// MovePath moves a file into newPath, keeping its name
func (s *LocalRepository) MovePath(ctx context.Context, fileRef, newPath string) (string, error) {
	src, err := s.resolve(fileRef)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", port.ErrFileNotFound, fileRef)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	current := utils.SanitizePath(fileRef)
	folder := utils.SanitizePath(newPath)
	if currentDir := path.Dir(current); currentDir == folder || (currentDir == "." && folder == "") {
		return current, nil
	}

	dir, err := s.resolve(folder)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	name := availableName(dir, filepath.Base(src))
	if err := os.Rename(src, filepath.Join(dir, name)); err != nil {
		s.logger.Error("Failed to move file",
			zap.String("from", fileRef),
			zap.String("to", folder),
			zap.Error(err))
		return "", fmt.Errorf("failed to move file: %w", err)
	}
	return path.Join(folder, name), nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *LocalRepository) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

func (s *LocalRepository) resolve(ref string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(utils.SanitizePath(ref)))
	if err := s.ValidatePath(full); err != nil {
		return "", err
	}
	return full, nil
}

// availableName returns name, or name with a " (n)" suffix when it is taken
func availableName(dir, name string) string {
	if _, err := os.Stat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(filepath.Join(dir, candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
