package archive

import (
	"context"
	"io"
)

// ObjectStore is the permanent storage the archiver writes finished
// artifacts to. Uploads are upserts: writing the same key twice must
// replace the object rather than fail, so re-running an archival step
// is idempotent.
type ObjectStore interface {
	// Upload writes the object under key and returns the number of
	// bytes stored.
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (int64, error)

	// PublicURL returns the permanent, publicly reachable locator for
	// the object stored under key.
	PublicURL(key string) string
}
