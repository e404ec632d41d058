package local

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanestate/listing-service/internal/platform/logger"
)

func newStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewStorage(dir, logger.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s, dir
}

func TestStoreAndDelete(t *testing.T) {
	ctx := context.Background()
	s, dir := newStorage(t)

	name, err := s.Store(ctx, []byte("jpeg-bytes"), "kitchen.JPG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "Files-1700000000000-"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	other, err := s.Store(ctx, []byte("x"), "kitchen.JPG")
	require.NoError(t, err)
	assert.NotEqual(t, name, other)

	require.NoError(t, s.Delete(ctx, name))
	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, name), "deleting twice is not an error")
}

func TestDelete_RejectsPaths(t *testing.T) {
	s, _ := newStorage(t)
	for _, bad := range []string{"", "..", "../secret", "a/b", `a\b`} {
		assert.ErrorIs(t, s.Delete(context.Background(), bad), ErrInvalidName, bad)
	}
}

func TestServeHTTP(t *testing.T) {
	s, _ := newStorage(t)
	name, err := s.Store(context.Background(), []byte("hello"), "a.txt")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
