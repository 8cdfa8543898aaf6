// Package storage holds the object store the catalog publishes into: source
// archives and preview images in the products bucket, preview fonts in the
// previews bucket.
package storage

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/fontmarkt/catalog-api/pkg/config"
)

// ErrNotFound is returned by Download when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// UploadOptions controls how an object is written.
type UploadOptions struct {
	ContentType  string
	CacheControl string // max-age in seconds
	Upsert       bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// ObjectStore is the subset of an object storage service the catalog needs.
// Remove is a bulk operation and treats missing keys as no-ops.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Remove(ctx context.Context, bucket string, keys []string) error
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	PublicURL(bucket, key string) string
}

const publicSegment = "/object/public/"

// KeyFromPublicURL recovers the object key from a public URL of bucket. It
// returns false for URLs that point elsewhere.
func KeyFromPublicURL(raw, bucket string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Path == "" {
		return "", false
	}
	marker := publicSegment + bucket + "/"
	idx := strings.Index(u.Path, marker)
	if idx < 0 {
		return "", false
	}
	key := u.Path[idx+len(marker):]
	if key == "" {
		return "", false
	}
	return key, true
}

func publicURL(base, bucket, key string) string {
	return base + publicSegment + url.PathEscape(bucket) + "/" + escapeKey(key)
}

// escapeKey escapes each path segment of key, keeping the separators.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// New returns the Supabase store when a storage endpoint is configured and
// an in-memory store otherwise.
func New(cfg config.Storage) ObjectStore {
	if cfg.Remote() {
		return NewSupabaseStore(cfg)
	}
	log.Printf("[storage] STORAGE_URL or STORAGE_SERVICE_KEY not set, using in-memory store")
	return NewMemoryStore(cfg.URL)
}
