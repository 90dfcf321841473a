package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to external blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// BlobReader retrieves and enumerates objects in external blob storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver exports settled markets to long-term blob storage for audit
// retention. Archived records are not removed from the primary store.
type Archiver interface {
	// ArchiveSettled exports every market resolved strictly before the
	// cutoff together with its predictions, returning the number of markets
	// archived.
	ArchiveSettled(ctx context.Context, before time.Time) (int64, error)
}
