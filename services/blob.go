package services

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/vela-games/lfsserver/lfs"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob" // driver for azblob://
	_ "gocloud.dev/blob/gcsblob"   // driver for gs://
)

// BlobOptions tune the actions handed out by a BlobStorage.
type BlobOptions struct {
	// Expiry is the lifetime of signed URLs.
	Expiry time.Duration

	// UploadHeader must be sent by the client along with the upload.
	UploadHeader map[string]string

	// ReportExpiresAt adds expires_at to every action.
	ReportExpiresAt bool
}

// BlobStorage signs URLs against any gocloud.dev bucket that supports
// SignedURL.
type BlobStorage struct {
	bucket *blob.Bucket
	opts   BlobOptions
	now    func() time.Time
}

func NewBlobStorage(bucket *blob.Bucket, opts BlobOptions) *BlobStorage {
	return &BlobStorage{
		bucket: bucket,
		opts:   opts,
		now:    time.Now,
	}
}

// OpenAzureStorage opens an Azure Blob Storage container. Credentials come
// from AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY.
func OpenAzureStorage(ctx context.Context, container string, expiry time.Duration) (*BlobStorage, error) {
	bucket, err := blob.OpenBucket(ctx, "azblob://"+container)
	if err != nil {
		return nil, fmt.Errorf("opening azure container %s: %w", container, err)
	}

	return NewBlobStorage(bucket, BlobOptions{
		Expiry: expiry,
		UploadHeader: map[string]string{
			"x-ms-blob-type": "BlockBlob",
		},
		ReportExpiresAt: true,
	}), nil
}

// OpenGCSStorage opens a Google Cloud Storage bucket using the application
// default credentials.
func OpenGCSStorage(ctx context.Context, bucketName string, expiry time.Duration) (*BlobStorage, error) {
	bucket, err := blob.OpenBucket(ctx, "gs://"+bucketName)
	if err != nil {
		return nil, fmt.Errorf("opening gcs bucket %s: %w", bucketName, err)
	}

	return NewBlobStorage(bucket, BlobOptions{Expiry: expiry}), nil
}

func (b *BlobStorage) Exists(ctx context.Context, oid string) (bool, error) {
	exists, err := b.bucket.Exists(ctx, oid)
	if err != nil {
		return false, fmt.Errorf("checking blob %s: %w", oid, err)
	}

	return exists, nil
}

func (b *BlobStorage) PrepareDownload(ctx context.Context, oid string, size int64) (*lfs.Action, error) {
	return b.sign(ctx, oid, http.MethodGet, nil)
}

func (b *BlobStorage) PrepareUpload(ctx context.Context, oid string, size int64) (*lfs.Action, error) {
	return b.sign(ctx, oid, http.MethodPut, b.opts.UploadHeader)
}

func (b *BlobStorage) sign(ctx context.Context, oid, method string, header map[string]string) (*lfs.Action, error) {
	expiresAt := b.now().UTC().Truncate(time.Second).Add(b.opts.Expiry)

	href, err := b.bucket.SignedURL(ctx, oid, &blob.SignedURLOptions{
		Expiry: b.opts.Expiry,
		Method: method,
	})
	if err != nil {
		return nil, fmt.Errorf("signing %s of blob %s: %w", method, oid, err)
	}

	action := &lfs.Action{
		Href:   href,
		Header: maps.Clone(header),
	}

	if b.opts.ReportExpiresAt {
		action.ExpiresAt = &expiresAt
	}

	return action, nil
}

func (b *BlobStorage) Close() error {
	return b.bucket.Close()
}
