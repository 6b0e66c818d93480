package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/vela-games/lfsserver/lfs"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

var errInvalidOID = &lfs.ObjectError{Code: 422, Message: "Invalid object id"}

// LocalStorage keeps objects on the local filesystem and serves them through
// the server's own /transfer endpoint.
type LocalStorage struct {
	bucket   *blob.Bucket
	endpoint string
}

// OpenLocalStorage opens (creating if needed) the repository directory dir.
// An empty endpoint makes actions point at the base URL of each request.
func OpenLocalStorage(dir, endpoint string) (*LocalStorage, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("opening local repository %s: %w", dir, err)
	}

	return NewLocalStorage(bucket, endpoint), nil
}

func NewLocalStorage(bucket *blob.Bucket, endpoint string) *LocalStorage {
	return &LocalStorage{
		bucket:   bucket,
		endpoint: endpoint,
	}
}

// ObjectKey shards objects by the first two pairs of characters of their oid.
func ObjectKey(oid string) string {
	first := oid[:min(2, len(oid))]
	second := oid[min(2, len(oid)):min(4, len(oid))]

	return path.Join(first, second, oid)
}

// ValidOID reports whether oid is safe to use as a file name. The .attrs
// suffix is reserved by fileblob.
func ValidOID(oid string) bool {
	return oid != "" &&
		!strings.ContainsAny(oid, `/\`) &&
		!strings.Contains(oid, "..") &&
		!strings.HasSuffix(oid, ".attrs")
}

func (l *LocalStorage) Exists(ctx context.Context, oid string) (bool, error) {
	if !ValidOID(oid) {
		return false, nil
	}

	exists, err := l.bucket.Exists(ctx, ObjectKey(oid))
	if err != nil {
		return false, fmt.Errorf("checking local object %s: %w", oid, err)
	}

	return exists, nil
}

func (l *LocalStorage) PrepareDownload(ctx context.Context, oid string, size int64) (*lfs.Action, error) {
	return l.prepare(ctx, oid)
}

func (l *LocalStorage) PrepareUpload(ctx context.Context, oid string, size int64) (*lfs.Action, error) {
	return l.prepare(ctx, oid)
}

func (l *LocalStorage) prepare(ctx context.Context, oid string) (*lfs.Action, error) {
	if !ValidOID(oid) {
		return nil, errInvalidOID
	}

	return &lfs.Action{
		Href: l.Endpoint(ctx) + "transfer/" + url.PathEscape(oid),
	}, nil
}

// Endpoint is the public base URL of the server, always ending in a slash.
func (l *LocalStorage) Endpoint(ctx context.Context) string {
	endpoint := l.endpoint
	if endpoint == "" {
		endpoint = EndpointFromContext(ctx)
	}

	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	return endpoint
}

// Download opens the object for reading and returns its size. A missing or
// invalid object is lfs.ErrNotFound.
func (l *LocalStorage) Download(ctx context.Context, oid string) (io.ReadCloser, int64, error) {
	if !ValidOID(oid) {
		return nil, 0, lfs.ErrNotFound
	}

	r, err := l.bucket.NewReader(ctx, ObjectKey(oid), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, 0, lfs.ErrNotFound
		}

		return nil, 0, fmt.Errorf("reading local object %s: %w", oid, err)
	}

	return r, r.Size(), nil
}

// Upload stores body as the object. The object only becomes visible once
// fully written.
func (l *LocalStorage) Upload(ctx context.Context, oid string, body io.Reader) error {
	if !ValidOID(oid) {
		return lfs.ErrNotFound
	}

	// Cancelling the writer's context discards the partial object on Close.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := l.bucket.NewWriter(ctx, ObjectKey(oid), nil)
	if err != nil {
		return fmt.Errorf("writing local object %s: %w", oid, err)
	}

	if _, err := io.Copy(w, body); err != nil {
		cancel()
		return errors.Join(fmt.Errorf("writing local object %s: %w", oid, err), w.Close())
	}

	return w.Close()
}

func (l *LocalStorage) Close() error {
	return l.bucket.Close()
}
