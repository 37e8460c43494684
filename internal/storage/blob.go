package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
	"gocloud.dev/gcerrors"
)

// BlobStore writes datasets to any gocloud bucket: a local directory,
// Google Cloud Storage or S3-compatible storage.
type BlobStore struct {
	bucket  *blob.Bucket
	baseURI string // scheme and bucket, e.g. "gs://datasets" or "file:///srv/out"
	prefix  string
}

// NewBlobStore opens the bucket behind location, a local directory or a
// file://, gs:// or s3:// URL. A path inside a bucket URL becomes part of the
// key prefix. Local directories are created when missing.
func NewBlobStore(ctx context.Context, location, prefix string) (*BlobStore, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return newLocalStore(location, prefix)
	}
	if u.Scheme == "file" {
		return newLocalStore(u.Path, prefix)
	}

	keyPrefix := strings.TrimPrefix(u.Path, "/")
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, "/") {
		keyPrefix += "/"
	}
	base := u.Scheme + "://" + u.Host
	u.Path = ""
	bucket, err := blob.OpenBucket(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", location, err)
	}
	return &BlobStore{bucket: bucket, baseURI: base, prefix: keyPrefix + prefix}, nil
}

func newLocalStore(dir, prefix string) (*BlobStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", abs, err)
	}
	bucket, err := fileblob.OpenBucket(abs, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("open local bucket %s: %w", abs, err)
	}
	return &BlobStore{bucket: bucket, baseURI: "file://" + filepath.ToSlash(abs), prefix: prefix}, nil
}

// Prefix returns the key prefix applied to dataset paths.
func (s *BlobStore) Prefix() string {
	return s.prefix
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	return s.baseURI + "/" + key
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

func (s *BlobStore) put(ctx context.Context, key string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

func tempKey(final string) string {
	return final + ".tmp." + uuid.New().String()
}

// WriteDatasetTemp writes the data file to a temporary location.
func (s *BlobStore) WriteDatasetTemp(ctx context.Context, ref DatasetRef, data []byte) (string, error) {
	key := tempKey(ref.Path(s.prefix))
	if err := s.put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// WriteManifestTemp writes a manifest to a temporary location.
func (s *BlobStore) WriteManifestTemp(ctx context.Context, ref DatasetRef, manifest *Manifest) (string, error) {
	data, err := manifest.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	key := tempKey(ref.ManifestPath(s.prefix))
	if err := s.put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// Finalize moves temp files to their canonical location with copy + delete.
func (s *BlobStore) Finalize(ctx context.Context, ref DatasetRef, tempKeys []string) error {
	finalKeys := []string{
		ref.Path(s.prefix),
		ref.ManifestPath(s.prefix),
	}
	if len(tempKeys) != len(finalKeys) {
		return fmt.Errorf("expected %d temp keys, got %d", len(finalKeys), len(tempKeys))
	}

	for i, src := range tempKeys {
		if err := s.bucket.Copy(ctx, finalKeys[i], src, nil); err != nil {
			// Roll back what was already published.
			for j := 0; j < i; j++ {
				s.bucket.Delete(ctx, finalKeys[j])
			}
			s.Abort(ctx, tempKeys)
			return fmt.Errorf("finalize %s -> %s: %w", src, finalKeys[i], err)
		}
	}

	for _, key := range tempKeys {
		s.bucket.Delete(ctx, key) // ignore errors
	}
	return nil
}

// Abort removes temporary files without publishing.
func (s *BlobStore) Abort(ctx context.Context, tempKeys []string) error {
	var lastErr error
	for _, key := range tempKeys {
		if err := s.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			lastErr = err
		}
	}
	return lastErr
}

// Exists checks if a dataset's data file is published.
func (s *BlobStore) Exists(ctx context.Context, ref DatasetRef) (bool, error) {
	return s.bucket.Exists(ctx, ref.Path(s.prefix))
}

// ReadManifest loads a published manifest.
func (s *BlobStore) ReadManifest(ctx context.Context, ref DatasetRef) (*Manifest, error) {
	key := ref.ManifestPath(s.prefix)
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", key, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", key, err)
	}
	return &m, nil
}

// Head returns metadata about a stored object.
func (s *BlobStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get attributes for %s: %w", key, err)
	}
	return &ObjectInfo{
		Key:     key,
		Size:    attrs.Size,
		ETag:    attrs.ETag,
		ModTime: attrs.ModTime,
	}, nil
}

// List returns all keys with the given prefix.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Verify BlobStore implements DatasetStore.
var _ DatasetStore = (*BlobStore)(nil)
