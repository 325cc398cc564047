package storage

import (
	"context"
	"io"
	"path"
)

// KeyPrefix is the root all published site artifacts live under.
const KeyPrefix = "__outputs"

// ArtifactStore is blob storage keyed by {slug}/{relativePath}. Writes are
// last-write-wins; a redeploy overwrites same-named keys and leaves stale
// ones behind (no garbage collection).
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
}

// ObjectKey builds the store key for one published file of a project.
// rel must already use forward slashes.
func ObjectKey(slug, rel string) string {
	return path.Join(KeyPrefix, slug, rel)
}
