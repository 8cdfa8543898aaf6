package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/archive"
	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/fontinfo"
	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/problem"
	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/util"
	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
	"github.com/fontmarkt/catalog-api/pkg/catalog/repositories"
	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
	"github.com/fontmarkt/catalog-api/pkg/config"
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const maxSlugAttempts = 5

// IngestService turns uploaded font archives into product records and keeps
// the object store and the database consistent through compensation.
// Mutations of one product must be serialized by the caller.
type IngestService struct {
	repo      repositories.ProductRepository
	store     storage.ObjectStore
	writer    *RecordWriter
	publisher *AssetPublisher
	storage   config.Storage
	ingest    config.Ingest
}

func NewIngestService(repo repositories.ProductRepository, store storage.ObjectStore, cfg config.Config) *IngestService {
	return &IngestService{
		repo:      repo,
		store:     store,
		writer:    NewRecordWriter(repo, cfg.Catalog),
		publisher: NewAssetPublisher(store, cfg.Storage),
		storage:   cfg.Storage,
		ingest:    cfg.Ingest,
	}
}

// GetProduct returns the product with id, or a NotFound error.
func (s *IngestService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, newIngestError(PersistenceFailure, err, "load product %s", id)
	}
	if p == nil {
		return nil, newIngestError(NotFound, nil, "product %s does not exist", id)
	}
	return p, nil
}

// LoadPriorAssets captures the asset state of a product before an update.
func (s *IngestService) LoadPriorAssets(ctx context.Context, id string) (*models.AssetRefs, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	refs := p.Refs()
	return &refs, nil
}

// CreateProduct ingests the archive at archiveKey in the products bucket and
// creates a product from it. On any failure every side effect of the run is
// undone, including the upstream upload of the archive itself.
func (s *IngestService) CreateProduct(ctx context.Context, in models.ProductInput, archiveKey string) (Outcome, error) {
	r := newRun("create", archiveKey)
	if err := s.writer.Validate(in); err != nil {
		return Outcome{}, r.fail(err)
	}
	if strings.TrimSpace(archiveKey) == "" {
		return Outcome{}, r.fail(&IngestError{
			Kind:    ValidationFailure,
			Msg:     "sourceArchiveKey is required",
			Invalid: []problem.InvalidParam{{Name: "sourceArchiveKey", Reason: "is required"}},
		})
	}
	r.ledger.Uploaded(s.storage.ProductsBucket, archiveKey)

	slug, err := s.uniqueSlug(ctx, in.Name)
	if err != nil {
		return Outcome{}, s.abort(ctx, r, newIngestError(PersistenceFailure, err, "reserve slug for %q", in.Name))
	}

	res, err := s.process(ctx, r, slug, archiveKey, primaryForCreate, nil)
	if err != nil {
		return Outcome{}, s.abort(ctx, r, err)
	}

	product := &models.Product{ID: uuid.NewString(), Slug: slug}
	util.ApplyInput(product, in)
	res.applyTo(product, archiveKey)

	r.enter(statePersisting)
	if err := s.writer.Create(ctx, product); err != nil {
		return Outcome{}, s.abort(ctx, r, persistenceError(err, "create product %s", slug))
	}
	r.ledger.Persisted(product.ID)
	r.enter(stateDone)

	return Outcome{ProductID: product.ID, Slug: slug, Warnings: r.warnings, Product: product}, nil
}

// UpdateProduct merges in into product id. When newArchiveKey is set the
// archive is re-ingested: new previews are published and committed before
// anything from prior is deleted. A nil prior is loaded from the store.
func (s *IngestService) UpdateProduct(ctx context.Context, id string, in models.ProductInput, newArchiveKey *string, prior *models.AssetRefs) (Outcome, error) {
	r := newRun("update", id)
	if err := s.writer.Validate(in); err != nil {
		return Outcome{}, r.fail(err)
	}
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return Outcome{}, r.fail(err)
	}
	if prior == nil {
		refs := product.Refs()
		prior = &refs
	}
	util.ApplyInput(product, in)

	archiveKey := ""
	if newArchiveKey != nil {
		archiveKey = strings.TrimSpace(*newArchiveKey)
	}

	priorFonts := s.fontKeys(prior.FontFiles)
	if archiveKey != "" {
		// Re-processing the archive the product already points at must not
		// delete it on failure.
		if archiveKey != prior.DownloadZipPath {
			r.ledger.Uploaded(s.storage.ProductsBucket, archiveKey)
		}
		res, err := s.process(ctx, r, product.Slug, archiveKey, primaryForUpdate, toSet(priorFonts))
		if err != nil {
			return Outcome{}, s.abort(ctx, r, err)
		}
		res.applyTo(product, archiveKey)
	}

	r.enter(statePersisting)
	if err := s.writer.Update(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			// Deleted while the archive was being processed.
			return Outcome{}, s.abort(ctx, r, newIngestError(NotFound, err, "product %s does not exist", id))
		}
		return Outcome{}, s.abort(ctx, r, persistenceError(err, "update product %s", id))
	}
	r.enter(stateDone)

	// Old assets go only after the new state is committed.
	stale := map[string][]string{}
	if archiveKey != "" {
		if prior.DownloadZipPath != "" && prior.DownloadZipPath != archiveKey {
			stale[s.storage.ProductsBucket] = append(stale[s.storage.ProductsBucket], prior.DownloadZipPath)
		}
		current := toSet(s.fontKeys(product.FontFiles))
		for _, key := range priorFonts {
			if !current[key] {
				stale[s.storage.PreviewsBucket] = append(stale[s.storage.PreviewsBucket], key)
			}
		}
	}
	if in.PreviewImageURLs != nil {
		kept := toSet(product.PreviewImageURLs)
		for _, u := range prior.PreviewImageURLs {
			if kept[u] {
				continue
			}
			if key, ok := storage.KeyFromPublicURL(u, s.storage.ProductsBucket); ok {
				stale[s.storage.ProductsBucket] = append(stale[s.storage.ProductsBucket], key)
			}
		}
	}
	r.warnings = append(r.warnings, removeBestEffort(ctx, s.store, stale)...)

	return Outcome{ProductID: product.ID, Slug: product.Slug, Warnings: r.warnings, Product: product}, nil
}

// DeleteProduct removes a product and, best effort, every object it owns.
// Deleting a product that does not exist succeeds without touching storage.
func (s *IngestService) DeleteProduct(ctx context.Context, id string) (Outcome, error) {
	r := newRun("delete", id)
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Outcome{}, r.fail(newIngestError(PersistenceFailure, err, "load product %s", id))
	}
	if product == nil {
		log.Printf("[ingest] delete %s: already absent", id)
		return Outcome{ProductID: id, Message: "product already absent"}, nil
	}

	warnings := removeBestEffort(ctx, s.store, s.assetKeys(product.Refs()))
	deleted, err := s.writer.Delete(ctx, id)
	if err != nil {
		return Outcome{}, r.fail(newIngestError(PersistenceFailure, err, "delete product %s", id))
	}
	out := Outcome{ProductID: id, Slug: product.Slug, Warnings: warnings}
	if deleted {
		out.Deleted = 1
	}
	log.Printf("[ingest] delete %s: done, %d storage warnings", id, len(warnings))
	return out, nil
}

// BulkDeleteProducts deletes a batch of products with one storage call per
// bucket and one database statement. Ids that do not exist are reported in
// Outcome.Missing.
func (s *IngestService) BulkDeleteProducts(ctx context.Context, ids []string) (Outcome, error) {
	r := newRun("bulk-delete", fmt.Sprintf("%d ids", len(ids)))
	ids = dedupe(ids)
	if len(ids) == 0 {
		return Outcome{}, r.fail(&IngestError{
			Kind:    ValidationFailure,
			Msg:     "ids must not be empty",
			Invalid: []problem.InvalidParam{{Name: "ids", Reason: "must not be empty"}},
		})
	}

	products, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return Outcome{}, r.fail(newIngestError(PersistenceFailure, err, "load %d products", len(ids)))
	}

	found := map[string]bool{}
	keys := map[string][]string{}
	for i := range products {
		found[products[i].ID] = true
		for bucket, k := range s.assetKeys(products[i].Refs()) {
			keys[bucket] = append(keys[bucket], k...)
		}
	}
	var missing, present []string
	for _, id := range ids {
		if found[id] {
			present = append(present, id)
		} else {
			missing = append(missing, id)
		}
	}

	warnings := removeBestEffort(ctx, s.store, keys)
	deleted, err := s.writer.DeleteMany(ctx, present)
	if err != nil {
		return Outcome{}, r.fail(newIngestError(PersistenceFailure, err, "delete %d products", len(present)))
	}

	out := Outcome{Deleted: int(deleted), Missing: missing, Warnings: warnings}
	out.Message = bulkMessage(out, len(ids))
	log.Printf("[ingest] bulk-delete: %s", out.Message)
	return out, nil
}

func bulkMessage(out Outcome, requested int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "deleted %d of %d products", out.Deleted, requested)
	if len(out.Missing) > 0 {
		fmt.Fprintf(&b, "; not found: %s", strings.Join(out.Missing, ", "))
	}
	if len(out.Warnings) > 0 {
		fmt.Fprintf(&b, "; storage warnings: %s", strings.Join(out.Warnings, "; "))
	}
	return b.String()
}

// primaryPolicy picks the entry glyphs are read from, or -1.
type primaryPolicy func(entries []archive.Materialized) int

// primaryForCreate prefers the first otf/ttf labelled Regular and falls back
// to the first otf/ttf.
func primaryForCreate(entries []archive.Materialized) int {
	first := -1
	for i, e := range entries {
		if !fontinfo.Introspectable(e.Ext) {
			continue
		}
		if first < 0 {
			first = i
		}
		if fontinfo.StyleLabel(e.Name) == fontinfo.DefaultStyle {
			return i
		}
	}
	return first
}

// primaryForUpdate takes the first otf in scan order, whatever its style.
func primaryForUpdate(entries []archive.Materialized) int {
	for i, e := range entries {
		if fontinfo.Publishable(e.Ext) {
			return i
		}
	}
	return -1
}

type processed struct {
	assets    []models.FontStyleAsset
	glyphs    []string
	fileTypes []string
	sizeKB    int64
}

func (p *processed) applyTo(product *models.Product, archiveKey string) {
	product.FontFiles = p.assets
	product.Glyphs = p.glyphs
	product.FileTypes = p.fileTypes
	product.FileSizeKB = p.sizeKB
	product.DownloadZipPath = archiveKey
}

type publishResult struct {
	key       string
	attempted bool
	overwrote bool
	prior     []byte
	asset     models.FontStyleAsset
	kind      ErrorKind
	err       error
}

// process downloads, inspects and introspects the archive and publishes its
// OTF previews. Every upload attempted is recorded in the run's ledger, also
// when process fails. Keys in priorKeys are backed up before being replaced.
func (s *IngestService) process(ctx context.Context, r *run, slug, archiveKey string, pickPrimary primaryPolicy, priorKeys map[string]bool) (*processed, error) {
	r.enter(stateDownloading)
	data, err := s.store.Download(ctx, s.storage.ProductsBucket, archiveKey)
	if err != nil {
		return nil, newIngestError(StorageDownloadFailure, err, "download source archive %s", archiveKey)
	}

	r.enter(stateInspecting)
	inv, err := archive.Inspect(data)
	if err != nil {
		return nil, newIngestError(ArchiveUnreadable, err, "open source archive %s", archiveKey)
	}
	maxEntry := s.ingest.MaxEntryBytes
	if maxEntry <= 0 {
		maxEntry = config.DefaultMaxEntryBytes
	}
	// Only otf/ttf bytes are ever used; web formats are listed, never read.
	entries, readErrs := inv.Materialize(func(e archive.Entry) bool {
		return fontinfo.Introspectable(e.Ext)
	}, maxEntry)
	for _, e := range readErrs {
		log.Printf("[ingest] %s: skip entry: %v", r, e)
		r.warnings = append(r.warnings, e.Error())
	}

	r.enter(stateIntrospecting)
	primary := pickPrimary(entries)
	var publishable []archive.Materialized
	seen := map[string]bool{}
	for _, e := range entries {
		if !fontinfo.Publishable(e.Ext) {
			continue
		}
		if seen[e.Name] {
			r.warnings = append(r.warnings, fmt.Sprintf("duplicate file name %s skipped (%s)", e.Name, e.Path))
			continue
		}
		seen[e.Name] = true
		publishable = append(publishable, e)
	}

	r.enter(statePublishing)
	limit := s.ingest.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))
	var g errgroup.Group

	var glyphs []string
	var glyphErr error
	if primary >= 0 {
		entry := entries[primary]
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, newIngestError(StorageUploadFailure, err, "publishing interrupted")
		}
		g.Go(func() error {
			defer sem.Release(1)
			glyphs, glyphErr = fontinfo.GlyphSet(entry.Data)
			if glyphErr != nil {
				glyphErr = fmt.Errorf("%s: %w", entry.Path, glyphErr)
			}
			return nil
		})
	}

	results := make([]publishResult, len(publishable))
	for i, e := range publishable {
		results[i].key = StorageKey(slug, e.Name)
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].kind, results[i].err = StorageUploadFailure, err
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			s.publishOne(ctx, slug, e, priorKeys[results[i].key], &results[i])
			return nil
		})
	}
	_ = g.Wait()

	var failed *publishResult
	var assets []models.FontStyleAsset
	for i := range results {
		res := &results[i]
		if res.attempted {
			if res.overwrote {
				r.ledger.Overwrote(s.publisher.Bucket(), res.key, res.prior)
			} else {
				r.ledger.Uploaded(s.publisher.Bucket(), res.key)
			}
		}
		if res.err != nil {
			if failed == nil {
				failed = res
			}
			continue
		}
		assets = append(assets, res.asset)
	}
	if failed != nil {
		return nil, newIngestError(failed.kind, failed.err, "publish %s", failed.key)
	}
	if len(assets) == 0 {
		return nil, newIngestError(NoPreviewableFont, nil, "archive %s contains no previewable otf font", archiveKey)
	}

	if glyphErr != nil {
		log.Printf("[ingest] %s: %s: %v", r, BinaryParseFailure, glyphErr)
		r.warnings = append(r.warnings, fmt.Sprintf("%s: %v", BinaryParseFailure, glyphErr))
	}
	if glyphs == nil {
		glyphs = []string{}
	}

	return &processed{
		assets:    assets,
		glyphs:    glyphs,
		fileTypes: inv.FileTypes,
		sizeKB:    inv.SizeKB(),
	}, nil
}

func (s *IngestService) publishOne(ctx context.Context, slug string, e archive.Materialized, replacesPrior bool, res *publishResult) {
	if replacesPrior {
		prior, err := s.store.Download(ctx, s.publisher.Bucket(), res.key)
		switch {
		case err == nil:
			res.overwrote, res.prior = true, prior
		case errors.Is(err, storage.ErrNotFound):
		default:
			res.kind, res.err = StorageDownloadFailure, fmt.Errorf("back up %s: %w", res.key, err)
			return
		}
	}
	res.attempted = true
	asset, err := s.publisher.Publish(ctx, slug, e.Name, e.Data)
	if err != nil {
		res.kind, res.err = StorageUploadFailure, err
		return
	}
	res.asset = asset
}

// abort undoes the run and attaches the compensation warnings to err.
func (s *IngestService) abort(ctx context.Context, r *run, err error) error {
	warnings := r.ledger.compensate(context.WithoutCancel(ctx), s.store, s.repo, s.publisher.UploadOptions())
	if len(warnings) > 0 {
		log.Printf("[ingest] %s: compensation left %d objects behind", r, len(warnings))
		var ie *IngestError
		if errors.As(err, &ie) {
			ie.Warnings = append(ie.Warnings, warnings...)
		}
	}
	return r.fail(err)
}

func (s *IngestService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := util.Slugify(name)
	if base == "" {
		base = "font"
	}
	slug := base
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		exists, err := s.repo.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		suffix, err := shortid.Generate()
		if err != nil {
			return "", err
		}
		slug = base + "-" + util.Slugify(suffix)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", name, maxSlugAttempts)
}

func (s *IngestService) fontKeys(assets []models.FontStyleAsset) []string {
	return models.FontKeys(assets, s.storage.PreviewsBucket)
}

func (s *IngestService) assetKeys(refs models.AssetRefs) map[string][]string {
	return refs.Keys(s.storage.ProductsBucket, s.storage.PreviewsBucket)
}

func persistenceError(err error, format string, args ...any) error {
	if KindOf(err) != "" {
		return err
	}
	return newIngestError(PersistenceFailure, err, format, args...)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func dedupe(values []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
