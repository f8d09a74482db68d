// Package fs implements a filesystem-backed content store.
//
// Entries are served straight from a root directory: stat data feeds the
// content metadata (modification time, size, MIME type by extension) and
// the returned DataSource reads through the open *os.File, which stays
// open until the sink closes the source.
package fs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skiffhttp/skiff/pkg/sink"
	"github.com/skiffhttp/skiff/pkg/source"
)

// FSStore serves content from a directory tree on the local filesystem.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at root. The directory must exist.
func NewFSStore(ctx context.Context, root string) (*FSStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	return &FSStore{root: abs}, nil
}

// resolve maps a request path under the root. Cleaning resolves traversal
// segments lexically; the joined path must still land inside the root.
// Filenames that merely contain dots pass through untouched.
func (s *FSStore) resolve(p string) (string, error) {
	clean := path.Clean("/" + p)
	full := filepath.Join(s.root, filepath.FromSlash(clean))

	prefix := s.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if full != s.root && !strings.HasPrefix(full, prefix) {
		return "", source.ErrNotFound
	}
	return full, nil
}

func (s *FSStore) Open(ctx context.Context, p string) (sink.DataSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, source.ErrNotFound
		}
		if os.IsPermission(err) {
			return nil, sink.Forbidden("open %s: permission denied", p)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, source.ErrIsDirectory
	}

	fi := sink.NewFileInfo(contentTypeFor(full))
	fi.LastModified = info.ModTime()

	return &fileSource{name: p, file: f, fi: fi, size: info.Size()}, nil
}

func (s *FSStore) List(ctx context.Context, p string) (sink.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, source.ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if !info.IsDir() {
		return nil, source.ErrNotDirectory
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", p, err)
	}

	listing := make(sink.Listing, 0, len(entries))
	for _, entry := range entries {
		kind := sink.ItemTypeFile
		if entry.IsDir() {
			kind = sink.ItemTypeDir
		}
		listing = append(listing, sink.ListingItem{Name: entry.Name(), Type: kind})
	}
	return listing, nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return sink.DefaultContentType
}

// fileSource is a DataSource over an open file. Size is exact and trusted.
type fileSource struct {
	name string
	fi   sink.FileInfo
	size int64

	mu   sync.Mutex
	file *os.File
}

func (f *fileSource) Stat() sink.FileInfo { return f.fi }

func (f *fileSource) Read(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return 0, os.ErrClosed
	}
	n, err := f.file.ReadAt(p, off)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (f *fileSource) Size() int64            { return f.size }
func (f *fileSource) Name() string           { return f.name }
func (f *fileSource) HasContentLength() bool { return true }

func (f *fileSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	file := f.file
	f.file = nil
	return file.Close()
}
