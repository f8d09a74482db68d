package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiffhttp/skiff/pkg/sink"
	"github.com/skiffhttp/skiff/pkg/source"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>hello</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "guide.txt"), []byte("the guide"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "nested", "deep.txt"), []byte("deep"), 0o644))

	store, err := NewFSStore(context.Background(), root)
	require.NoError(t, err)
	return store
}

func TestNewFSStoreRejectsMissingRoot(t *testing.T) {
	_, err := NewFSStore(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestNewFSStoreRejectsFileRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewFSStore(context.Background(), file)
	assert.Error(t, err)
}

func TestOpenAndRead(t *testing.T) {
	store := newTestStore(t)

	src, err := store.Open(context.Background(), "/index.html")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, int64(14), src.Size())
	assert.True(t, src.HasContentLength())
	assert.Equal(t, "text/html; charset=utf-8", src.Stat().ContentType)
	assert.False(t, src.Stat().LastModified.IsZero())

	buf := make([]byte, 64)
	n, err := src.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "<h1>hello</h1>", string(buf[:n]))

	_, err = src.Read(buf, int64(n))
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenUnknownExtension(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.root, "blob"), []byte{0x01}, 0o644))

	src, err := store.Open(context.Background(), "/blob")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, sink.DefaultContentType, src.Stat().ContentType)
}

func TestOpenMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "/nope.txt")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestOpenDirectory(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "/docs")
	assert.ErrorIs(t, err, source.ErrIsDirectory)
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, p := range []string{
		"/../../../etc/passwd",
		"/docs/../../outside.txt",
	} {
		_, err := store.Open(context.Background(), p)
		assert.ErrorIs(t, err, source.ErrNotFound, "path %q", p)
	}
}

func TestOpenFilenameWithDots(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.root, "notes..txt"), []byte("dotted"), 0o644))

	src, err := store.Open(context.Background(), "/notes..txt")
	require.NoError(t, err)
	defer src.Close()

	buf := make([]byte, 16)
	n, err := src.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "dotted", string(buf[:n]))
}

func TestList(t *testing.T) {
	store := newTestStore(t)

	listing, err := store.List(context.Background(), "/docs")
	require.NoError(t, err)

	normalized := listing.Normalize()
	require.Len(t, normalized, 2)
	assert.Equal(t, sink.ListingItem{Name: "nested", Type: sink.ItemTypeDir}, normalized[0])
	assert.Equal(t, sink.ListingItem{Name: "guide.txt", Type: sink.ItemTypeFile}, normalized[1])
}

func TestListErrors(t *testing.T) {
	store := newTestStore(t)

	_, err := store.List(context.Background(), "/index.html")
	assert.ErrorIs(t, err, source.ErrNotDirectory)

	_, err = store.List(context.Background(), "/nowhere")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestCloseIdempotent(t *testing.T) {
	store := newTestStore(t)

	src, err := store.Open(context.Background(), "/index.html")
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.Read(make([]byte, 4), 0)
	assert.Error(t, err)
}

func TestOpenCancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Open(ctx, "/index.html")
	assert.ErrorIs(t, err, context.Canceled)
}
