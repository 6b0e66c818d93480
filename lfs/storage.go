package lfs

import "context"

// LargeFileStorage is implemented by every storage backend.
type LargeFileStorage interface {
	// Exists reports whether the object is stored. A missing object is not
	// an error.
	Exists(ctx context.Context, oid string) (bool, error)

	// PrepareDownload returns an action allowing the client to fetch the
	// object directly from storage. It does not check existence.
	PrepareDownload(ctx context.Context, oid string, size int64) (*Action, error)

	// PrepareUpload returns an action allowing the client to write the
	// object directly to storage, including any headers it must send.
	PrepareUpload(ctx context.Context, oid string, size int64) (*Action, error)
}
