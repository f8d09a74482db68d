// Package source defines where served content comes from.
//
// A Store maps request paths onto sink.DataSource values and directory
// listings. The handler layer is the only consumer; it opens a source,
// hands it to the sink for streaming, and lets the sink's ownership rules
// take care of closing. Backends exist for the local filesystem, memory,
// BadgerDB and S3.
package source

import (
	"context"
	"errors"

	"github.com/skiffhttp/skiff/pkg/sink"
)

// ErrNotFound is returned by Open and List when no entry exists at the
// given path.
var ErrNotFound = errors.New("content not found")

// ErrIsDirectory is returned by Open when the path names a directory;
// callers should List it instead.
var ErrIsDirectory = errors.New("path is a directory")

// ErrNotDirectory is returned by List when the path names a regular entry.
var ErrNotDirectory = errors.New("path is not a directory")

// Store provides read access to a tree of served content.
//
// Paths are slash-separated, relative, already cleaned by the caller
// ("" or "." names the root). Implementations must be safe for concurrent
// use by multiple goroutines.
type Store interface {
	// Open returns a DataSource for the entry at path. The caller owns the
	// source until it hands it to a sink; if it never does, the caller
	// closes it.
	Open(ctx context.Context, path string) (sink.DataSource, error)

	// List enumerates the direct children of the directory at path.
	List(ctx context.Context, path string) (sink.Listing, error)
}
