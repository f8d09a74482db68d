// Package badger implements a content store persisted in BadgerDB.
//
// Each entry is one key-value pair: the key is the slash-separated content
// path under a fixed prefix, the value a small binary header (modification
// time, content type) followed by the raw bytes. The whole value is copied
// out of the read transaction at Open time, so the returned DataSource is
// independent of the database afterwards. Suited for trees of small and
// medium files that must survive restarts without a filesystem layout.
package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/skiffhttp/skiff/pkg/sink"
	"github.com/skiffhttp/skiff/pkg/source"
)

// entryPrefix namespaces content keys so future key types cannot collide.
const entryPrefix = "content/"

// BadgerStore serves content out of a BadgerDB database.
type BadgerStore struct {
	db *badger.DB
}

// Options configures a BadgerStore.
type Options struct {
	// Path is the database directory.
	Path string

	// InMemory runs the database without touching disk. Tests mostly.
	InMemory bool
}

// NewBadgerStore opens (or creates) the database.
func NewBadgerStore(ctx context.Context, opts Options) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	badgerOpts := badger.DefaultOptions(opts.Path)
	badgerOpts = badgerOpts.WithInMemory(opts.InMemory)
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

// Close releases the database. No sources may be opened afterwards.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Put stores data under path, replacing any previous entry.
func (s *BadgerStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = sink.DefaultContentType
	}

	value := encodeEntry(time.Now(), contentType, data)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(entryPrefix+clean(path)), value)
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}
	return nil
}

func (s *BadgerStore) Open(ctx context.Context, path string) (sink.DataSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := clean(path)
	var src sink.DataSource

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryPrefix + key))
		if err == badger.ErrKeyNotFound {
			if s.hasChildren(txn, key) {
				return source.ErrIsDirectory
			}
			return source.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup %s: %w", path, err)
		}

		return item.Value(func(value []byte) error {
			modified, contentType, data, err := decodeEntry(value)
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}

			// Copy out of the transaction; the value buffer is only valid
			// inside this closure.
			buf := make([]byte, len(data))
			copy(buf, data)

			fi := sink.NewFileInfo(contentType)
			fi.LastModified = modified
			src = sink.NewBytesSource(key, buf, fi)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (s *BadgerStore) List(ctx context.Context, path string) (sink.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := clean(path)
	var listing sink.Listing

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(entryPrefix + key)); err == nil {
			return source.ErrNotDirectory
		}

		prefix := entryPrefix
		if key != "" {
			prefix += key + "/"
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		seen := make(map[string]sink.ItemType)
		for it.Rewind(); it.Valid(); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), prefix)
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
			return source.ErrNotFound
		}

		for name, kind := range seen {
			listing = append(listing, sink.ListingItem{Name: name, Type: kind})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *BadgerStore) hasChildren(txn *badger.Txn, key string) bool {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(entryPrefix + key + "/")

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	return it.Valid()
}

// Value layout: 8-byte big-endian unix-nano modification time, 2-byte
// big-endian content-type length, content type, data.
func encodeEntry(modified time.Time, contentType string, data []byte) []byte {
	buf := make([]byte, 0, 10+len(contentType)+len(data))
	buf = binary.BigEndian.AppendUint64(buf, uint64(modified.UnixNano()))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(contentType)))
	buf = append(buf, contentType...)
	buf = append(buf, data...)
	return buf
}

func decodeEntry(value []byte) (time.Time, string, []byte, error) {
	if len(value) < 10 {
		return time.Time{}, "", nil, fmt.Errorf("value truncated at %d bytes", len(value))
	}
	modified := time.Unix(0, int64(binary.BigEndian.Uint64(value[:8])))
	ctLen := int(binary.BigEndian.Uint16(value[8:10]))
	if len(value) < 10+ctLen {
		return time.Time{}, "", nil, fmt.Errorf("content type truncated")
	}
	contentType := string(value[10 : 10+ctLen])
	return modified, contentType, value[10+ctLen:], nil
}

func clean(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}
