// Package sweeper removes stored objects that no product references any more.
// Failed compensations and best-effort deletes leave such objects behind.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
)

// RefSource lists the storage references of every product.
type RefSource interface {
	AllAssetRefs(ctx context.Context) ([]models.AssetRefs, error)
}

const defaultMaxFraction = 0.5

// ErrRefused is returned, with nothing removed, when a run would delete
// objects while no product references exist or would delete more than
// MaxFraction of the stored objects.
var ErrRefused = errors.New("sweep refused")

type Options struct {
	DryRun         bool
	Grace          time.Duration
	ProductsBucket string
	PreviewsBucket string
	// MaxFraction caps the share of scanned objects one run may remove.
	// Zero means 0.5.
	MaxFraction float64
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result reports one sweep. Orphans holds the unreferenced keys per bucket
// that were old enough to remove; in a dry run nothing was removed.
type Result struct {
	Scanned  int
	Young    int
	Orphans  map[string][]string
	Removed  int
	Warnings []string
}

// Sweep lists both buckets and removes every object that is not referenced
// by a product record and was last modified more than Grace ago. Objects
// without a modification time are kept, as are uploads still in flight.
func Sweep(ctx context.Context, refs RefSource, store storage.ObjectStore, opts Options) (Result, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	cutoff := now().Add(-opts.Grace)

	all, err := refs.AllAssetRefs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("sweep: load product references: %w", err)
	}
	referenced := map[string]map[string]bool{}
	for _, r := range all {
		for bucket, keys := range r.Keys(opts.ProductsBucket, opts.PreviewsBucket) {
			if referenced[bucket] == nil {
				referenced[bucket] = map[string]bool{}
			}
			for _, k := range keys {
				referenced[bucket][k] = true
			}
		}
	}

	res := Result{Orphans: map[string][]string{}}
	for _, bucket := range []string{opts.ProductsBucket, opts.PreviewsBucket} {
		objects, err := store.List(ctx, bucket, "")
		if err != nil {
			return res, fmt.Errorf("sweep: list %s: %w", bucket, err)
		}
		for _, obj := range objects {
			res.Scanned++
			if referenced[bucket][obj.Key] {
				continue
			}
			if obj.UpdatedAt.IsZero() || obj.UpdatedAt.After(cutoff) {
				res.Young++
				continue
			}
			res.Orphans[bucket] = append(res.Orphans[bucket], obj.Key)
		}
		sort.Strings(res.Orphans[bucket])
	}

	if err := checkPlan(len(all), res, opts.MaxFraction); err != nil {
		if !opts.DryRun {
			log.Printf("[sweep] %v", err)
			return res, err
		}
		res.Warnings = append(res.Warnings, err.Error())
	}

	for _, bucket := range []string{opts.ProductsBucket, opts.PreviewsBucket} {
		keys := res.Orphans[bucket]
		if len(keys) == 0 {
			continue
		}
		if opts.DryRun {
			log.Printf("[sweep] dry run: %d orphans in %s", len(keys), bucket)
			continue
		}
		if err := store.Remove(ctx, bucket, keys); err != nil {
			log.Printf("[sweep] remove from %s failed: %v", bucket, err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", bucket, err))
			continue
		}
		res.Removed += len(keys)
	}

	log.Printf("[sweep] scanned %d objects, %d too young, %d removed", res.Scanned, res.Young, res.Removed)
	return res, nil
}

func checkPlan(products int, res Result, maxFraction float64) error {
	orphans := 0
	for _, keys := range res.Orphans {
		orphans += len(keys)
	}
	if orphans == 0 {
		return nil
	}
	if products == 0 {
		return fmt.Errorf("%w: no product references loaded but %d objects unreferenced", ErrRefused, orphans)
	}
	if maxFraction <= 0 || maxFraction > 1 {
		maxFraction = defaultMaxFraction
	}
	if float64(orphans) > maxFraction*float64(res.Scanned) {
		return fmt.Errorf("%w: %d of %d objects unreferenced, above the %.0f%% limit", ErrRefused, orphans, res.Scanned, maxFraction*100)
	}
	return nil
}
