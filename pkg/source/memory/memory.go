// Package memory implements an in-memory content store.
//
// Entries live in a mutex-guarded map keyed by slash-separated paths.
// Directories are implicit: any path prefix of a stored entry lists as a
// directory. The store is meant for tests, development and small embedded
// deployments; everything is lost on restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/skiffhttp/skiff/pkg/sink"
	"github.com/skiffhttp/skiff/pkg/source"
)

type entry struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStore serves content from process memory.
//
// All operations are protected by an RWMutex; data is copied on Put so
// callers cannot mutate stored content afterwards.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(ctx context.Context) (*MemoryStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &MemoryStore{entries: make(map[string]entry)}, nil
}

// Put stores data under path with the given content type. An existing entry
// is replaced. An empty contentType falls back to the generic default.
func (s *MemoryStore) Put(path string, data []byte, contentType string) {
	if contentType == "" {
		contentType = sink.DefaultContentType
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[clean(path)] = entry{data: buf, contentType: contentType, modified: time.Now()}
}

func (s *MemoryStore) Open(ctx context.Context, path string) (sink.DataSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := clean(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		if s.hasChildrenLocked(key) {
			return nil, source.ErrIsDirectory
		}
		return nil, source.ErrNotFound
	}

	fi := sink.NewFileInfo(e.contentType)
	fi.LastModified = e.modified
	return sink.NewBytesSource(key, e.data, fi), nil
}

func (s *MemoryStore) List(ctx context.Context, path string) (sink.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := clean(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entries[key]; ok {
		return nil, source.ErrNotDirectory
	}

	prefix := ""
	if key != "" {
		prefix = key + "/"
	}

	seen := make(map[string]sink.ItemType)
	for stored := range s.entries {
		if !strings.HasPrefix(stored, prefix) {
			continue
		}
		rest := stored[len(prefix):]
		if rest == "" {
			continue
		}
		if name, _, nested := strings.Cut(rest, "/"); nested {
			seen[name] = sink.ItemTypeDir
		} else {
			seen[name] = sink.ItemTypeFile
		}
	}

	if len(seen) == 0 && key != "" {
		return nil, source.ErrNotFound
	}

	listing := make(sink.Listing, 0, len(seen))
	for name, kind := range seen {
		listing = append(listing, sink.ListingItem{Name: name, Type: kind})
	}
	return listing, nil
}

func (s *MemoryStore) hasChildrenLocked(key string) bool {
	prefix := key + "/"
	for stored := range s.entries {
		if strings.HasPrefix(stored, prefix) {
			return true
		}
	}
	return false
}

func clean(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}
