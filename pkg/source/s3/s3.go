// Package s3 implements a content store backed by Amazon S3 or any
// S3-compatible storage (MinIO, Localstack, Cubbit DS3, ...).
//
// Object keys mirror request paths under an optional key prefix, so a
// bucket laid out like a filesystem serves directly. Directory semantics
// come from delimiter listings: a path is a directory when objects exist
// under "path/". Every read hits S3, there is no caching at this layer.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/skiffhttp/skiff/pkg/sink"
	"github.com/skiffhttp/skiff/pkg/source"
)

// S3Store implements source.Store over an S3 bucket.
//
// Path-based key design: the request path is used directly as the object
// key (with an optional prefix), so the bucket contents stay
// human-readable and inspectable. "docs/report.pdf" with prefix "site/"
// maps to the key "site/docs/report.pdf".
//
// Safe for concurrent use by multiple goroutines.
type S3Store struct {
	client    *awss3.Client
	bucket    string
	keyPrefix string
}

// Config contains configuration for the S3 store.
type Config struct {
	// Client is the configured S3 client.
	Client *awss3.Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys,
	// e.g. "site/" results in keys like "site/docs/report.pdf".
	KeyPrefix string
}

// NewS3Store creates a new S3-backed store and verifies bucket access.
// The bucket must already exist, this function does not create it.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey returns the full S3 object key for a request path.
func (s *S3Store) objectKey(p string) string {
	return s.keyPrefix + clean(p)
}

// clean normalizes a request path to a key-relative form with no
// leading or trailing slash. Root maps to the empty string.
func clean(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

// isNotFound reports whether an S3 error means the object does not exist.
// GetObject surfaces NoSuchKey while HeadObject surfaces NotFound, so
// both are checked.
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

// Open returns a DataSource streaming the object at the given path.
//
// The object is stat'd up front with HeadObject so size and metadata are
// known before the first byte. The body download itself is deferred to
// the first Read, a source that is opened and closed without reading
// never issues a GetObject.
//
// A path with no object but with objects beneath it resolves to
// source.ErrIsDirectory so callers can redirect to a listing.
func (s *S3Store) Open(ctx context.Context, p string) (sink.DataSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.objectKey(p)
	if key == s.keyPrefix {
		// Root of the bucket (or of the prefix) is always a directory.
		return nil, source.ErrIsDirectory
	}

	head, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			children, cerr := s.hasChildren(ctx, key+"/")
			if cerr != nil {
				return nil, cerr
			}
			if children {
				return nil, source.ErrIsDirectory
			}
			return nil, fmt.Errorf("%s: %w", p, source.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}

	size := int64(sink.SizeUnknown)
	if head.ContentLength != nil {
		size = *head.ContentLength
	}

	contentType := aws.ToString(head.ContentType)
	if contentType == "" || contentType == "binary/octet-stream" {
		if byExt := mime.TypeByExtension(path.Ext(key)); byExt != "" {
			contentType = byExt
		} else {
			contentType = sink.DefaultContentType
		}
	}

	fi := sink.NewFileInfo(contentType)
	if head.LastModified != nil {
		fi.LastModified = *head.LastModified
	}

	return &objectSource{
		store: s,
		key:   key,
		name:  path.Base(key),
		info:  fi,
		size:  size,
	}, nil
}

// List returns the immediate children of the given directory path in
// listing order. S3 has no real directories, so children are derived
// from a delimiter listing: common prefixes become subdirectories and
// objects become files.
func (s *S3Store) List(ctx context.Context, p string) (sink.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.objectKey(p)
	if key != s.keyPrefix {
		// An object at the exact key means the path is a file.
		_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return nil, fmt.Errorf("%s: %w", p, source.ErrNotDirectory)
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to head object: %w", err)
		}
		key += "/"
	}

	var listing sink.Listing

	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(key),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, prefix := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(prefix.Prefix), key), "/")
			if name == "" {
				continue
			}
			listing = append(listing, sink.ListingItem{Name: name, Type: sink.ItemTypeDir})
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), key)
			if name == "" {
				// Placeholder object marking the directory itself.
				continue
			}
			listing = append(listing, sink.ListingItem{Name: name, Type: sink.ItemTypeFile})
		}
	}

	if len(listing) == 0 && key != s.keyPrefix {
		return nil, fmt.Errorf("%s: %w", p, source.ErrNotFound)
	}

	return listing.Normalize(), nil
}

// hasChildren reports whether any object exists under the given prefix.
func (s *S3Store) hasChildren(ctx context.Context, prefix string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list objects: %w", err)
	}
	return len(out.Contents) > 0, nil
}

// objectSource streams one S3 object sequentially. The body is fetched
// lazily on the first Read and offsets must advance monotonically, S3
// bodies cannot be rewound.
type objectSource struct {
	store *S3Store
	key   string
	name  string
	info  sink.FileInfo
	size  int64

	mu     sync.Mutex
	body   io.ReadCloser
	off    int64
	closed bool
}

func (o *objectSource) Stat() sink.FileInfo {
	return o.info
}

func (o *objectSource) Read(p []byte, off int64) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return 0, fmt.Errorf("read %s: source closed", o.key)
	}

	if o.body == nil && o.off == 0 {
		result, err := o.store.client.GetObject(context.Background(), &awss3.GetObjectInput{
			Bucket: aws.String(o.store.bucket),
			Key:    aws.String(o.key),
		})
		if err != nil {
			if isNotFound(err) {
				return 0, fmt.Errorf("%s: %w", o.key, source.ErrNotFound)
			}
			return 0, fmt.Errorf("failed to get object: %w", err)
		}
		o.body = result.Body
	}

	if off != o.off {
		return 0, fmt.Errorf("non-sequential read at offset %d (expected %d): %w",
			off, o.off, io.ErrUnexpectedEOF)
	}
	if o.body == nil {
		return 0, io.EOF
	}

	n, err := o.body.Read(p)
	o.off += int64(n)
	return n, err
}

func (o *objectSource) Size() int64 {
	return o.size
}

func (o *objectSource) Name() string {
	return o.name
}

func (o *objectSource) HasContentLength() bool {
	return o.size >= 0
}

func (o *objectSource) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	if o.body == nil {
		return nil
	}
	body := o.body
	o.body = nil
	return body.Close()
}
