package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveServeDelete(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir, "http://example.test/objects/")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ls.Save(ctx, "user-1/1700000000000.pdf", strings.NewReader("hello")))

	data, err := os.ReadFile(filepath.Join(dir, "user-1", "1700000000000.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "http://example.test/objects/user-1/1700000000000.pdf", ls.URL("user-1/1700000000000.pdf"))
	dl, err := ls.DownloadURL(ctx, "user-1/1700000000000.pdf")
	require.NoError(t, err)
	assert.Equal(t, ls.URL("user-1/1700000000000.pdf"), dl)

	srv := httptest.NewServer(ls.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/user-1/1700000000000.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, ls.Delete(ctx, "user-1/1700000000000.pdf"))
	require.NoError(t, ls.Delete(ctx, "user-1/1700000000000.pdf"), "second delete is a no-op")
	_, err = os.Stat(filepath.Join(dir, "user-1", "1700000000000.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoragePathStaysInsideBase(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(filepath.Join(dir, "objects"), "http://example.test")
	require.NoError(t, err)

	require.NoError(t, ls.Save(context.Background(), "../escape.txt", strings.NewReader("x")))

	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "objects", "escape.txt"))
	assert.NoError(t, err)

	assert.ErrorIs(t, ls.Delete(context.Background(), ""), ErrInvalidPath)
}
