package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const geotiffContentType = "image/tiff"

// Sink receives exported files.
type Sink interface {
	// Upload stores the file at path under key and returns its location and size.
	Upload(ctx context.Context, key, path string) (string, int64, error)
	// Location formats where key is or would be stored.
	Location(key string) string
}

// BucketSink uploads into a bucket of the object store.
type BucketSink struct {
	store  *Store
	bucket string
}

// NewBucketSink returns a sink writing to bucket.
func NewBucketSink(store *Store, bucket string) *BucketSink {
	return &BucketSink{store: store, bucket: bucket}
}

// Bucket returns the destination bucket.
func (s *BucketSink) Bucket() string { return s.bucket }

// Location returns s3://bucket/key.
func (s *BucketSink) Location(key string) string { return "s3://" + s.bucket + "/" + key }

// Upload implements Sink.
func (s *BucketSink) Upload(ctx context.Context, key, path string) (string, int64, error) {
	n, err := s.store.Upload(ctx, s.bucket, key, path, geotiffContentType)
	if err != nil {
		return "", 0, err
	}
	return s.Location(key), n, nil
}

// DirSink copies exports under a local directory. Used for offline runs.
type DirSink struct {
	root string
}

// NewDirSink returns a sink writing below root.
func NewDirSink(root string) *DirSink { return &DirSink{root: root} }

// Location returns the local path of key.
func (s *DirSink) Location(key string) string { return filepath.Join(s.root, filepath.FromSlash(key)) }

// Upload implements Sink.
func (s *DirSink) Upload(ctx context.Context, key, path string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	dst := s.Location(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", 0, fmt.Errorf("create export folder: %w", err)
	}
	in, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open staged export: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", 0, fmt.Errorf("create export: %w", err)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("copy export: %w", err)
	}
	return dst, n, nil
}
