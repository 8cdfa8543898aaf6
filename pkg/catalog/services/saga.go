package services

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/fontmarkt/catalog-api/pkg/catalog/repositories"
	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
)

type stepKind int

const (
	stepUploaded stepKind = iota
	stepOverwrote
	stepPersisted
)

// step is one side effect of a run together with what undoes it.
type step struct {
	kind   stepKind
	bucket string
	key    string
	prior  []byte
	id     string
}

func (s step) String() string {
	switch s.kind {
	case stepUploaded:
		return fmt.Sprintf("Uploaded(%s/%s)", s.bucket, s.key)
	case stepOverwrote:
		return fmt.Sprintf("Overwrote(%s/%s)", s.bucket, s.key)
	default:
		return fmt.Sprintf("Persisted(%s)", s.id)
	}
}

// ledger records the side effects of a run in order so they can be undone in
// reverse when a later step fails.
type ledger struct {
	steps []step
}

func (l *ledger) Uploaded(bucket, key string) {
	l.steps = append(l.steps, step{kind: stepUploaded, bucket: bucket, key: key})
}

// Overwrote records that key held prior before this run replaced it.
func (l *ledger) Overwrote(bucket, key string, prior []byte) {
	l.steps = append(l.steps, step{kind: stepOverwrote, bucket: bucket, key: key, prior: prior})
}

func (l *ledger) Persisted(id string) {
	l.steps = append(l.steps, step{kind: stepPersisted, id: id})
}

func (l *ledger) Steps() []step { return append([]step(nil), l.steps...) }

// compensate undoes every recorded step, last first. Failures are logged and
// returned as warnings; compensation never stops halfway.
func (l *ledger) compensate(ctx context.Context, store storage.ObjectStore, repo repositories.ProductRepository, opts storage.UploadOptions) []string {
	var warnings []string
	for i := len(l.steps) - 1; i >= 0; i-- {
		s := l.steps[i]
		var err error
		switch s.kind {
		case stepUploaded:
			err = store.Remove(ctx, s.bucket, []string{s.key})
		case stepOverwrote:
			restore := opts
			restore.Upsert = true
			err = store.Upload(ctx, s.bucket, s.key, s.prior, restore)
		case stepPersisted:
			_, err = repo.Delete(ctx, s.id)
		}
		if err != nil {
			log.Printf("[ingest] compensate %s failed: %v", s, err)
			warnings = append(warnings, fmt.Sprintf("compensate %s: %v", s, err))
			continue
		}
		log.Printf("[ingest] compensated %s", s)
	}
	l.steps = nil
	return warnings
}

// removeBestEffort deletes keys grouped per bucket. Errors become warnings.
func removeBestEffort(ctx context.Context, store storage.ObjectStore, keysByBucket map[string][]string) []string {
	buckets := make([]string, 0, len(keysByBucket))
	for bucket := range keysByBucket {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)

	var warnings []string
	for _, bucket := range buckets {
		keys := keysByBucket[bucket]
		if len(keys) == 0 {
			continue
		}
		if err := store.Remove(ctx, bucket, keys); err != nil {
			log.Printf("[ingest] remove %d objects from %s failed: %v", len(keys), bucket, err)
			warnings = append(warnings, fmt.Sprintf("%s: %s: %v", StorageDeleteFailure, bucket, err))
			continue
		}
		log.Printf("[ingest] removed %d objects from %s", len(keys), bucket)
	}
	return warnings
}
