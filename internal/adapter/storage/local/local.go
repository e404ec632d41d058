// Package local stores listing media as files in one directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

// FieldName prefixes every stored file name.
const FieldName = "Files"

// Storage writes uploads under dir. Media identifiers are bare file names.
type Storage struct {
	dir    string
	now    func() time.Time
	logger *logger.Logger
}

var _ domain.MediaStore = (*Storage)(nil)

// NewStorage creates dir if needed.
func NewStorage(dir string, log *logger.Logger) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory %s: %w", dir, err)
	}
	return &Storage{dir: dir, now: time.Now, logger: log.Named("LocalStorage")}, nil
}

// ErrInvalidName is returned for identifiers that are not plain file names.
var ErrInvalidName = errors.New("invalid media name")

func (s *Storage) fileName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	return fmt.Sprintf("%s-%d-%s%s", FieldName, s.now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", ""), ext)
}

func (s *Storage) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Storage) Store(ctx context.Context, data []byte, originalName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := s.fileName(originalName)
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		s.logger.Error("failed to write media file", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("%w: write %s: %w", domain.ErrStorageUnavailable, name, err)
	}
	s.logger.Debug("media file stored", zap.String("name", name), zap.Int("size", len(data)))
	return name, nil
}

// Delete removes a stored file. A file that is already gone counts as deleted.
func (s *Storage) Delete(ctx context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("failed to remove media file", zap.String("name", id), zap.Error(err))
		return fmt.Errorf("%w: remove %s: %w", domain.ErrStorageUnavailable, id, err)
	}
	return nil
}

// ServeHTTP serves a stored file by the last path segment of the request.
// Directory listings are never produced.
func (s *Storage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	p, err := s.path(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, p)
}
