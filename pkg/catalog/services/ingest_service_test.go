package services_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
	"github.com/fontmarkt/catalog-api/pkg/catalog/repositories"
	"github.com/fontmarkt/catalog-api/pkg/catalog/services"
	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
	"github.com/fontmarkt/catalog-api/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	productsBucket = "products"
	previewsBucket = "font-previews"
)

type zipFile struct {
	name string
	data []byte
}

func buildZip(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testConfig() config.Config {
	return config.Config{
		Storage: config.Storage{
			URL:            "https://cdn.test",
			ProductsBucket: productsBucket,
			PreviewsBucket: previewsBucket,
			CacheSeconds:   31536000,
		},
		Catalog: config.Catalog{Categories: config.DefaultCategories, MaxPreviewImages: 20},
		Ingest:  config.Ingest{MaxConcurrent: 2},
	}
}

func setupRepo(t *testing.T) repositories.ProductRepository {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return repositories.NewProductRepository(db)
}

// stubRepo lets single repository calls fail.
type stubRepo struct {
	repositories.ProductRepository
	createErr error
	updateErr error
}

func (r *stubRepo) Create(ctx context.Context, p *models.Product) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.ProductRepository.Create(ctx, p)
}

func (r *stubRepo) Update(ctx context.Context, p *models.Product) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.ProductRepository.Update(ctx, p)
}

// faultyStore fails uploads or removes on demand.
type faultyStore struct {
	*storage.MemoryStore
	failUpload func(bucket, key string) bool
	failRemove bool
}

func (f *faultyStore) Upload(ctx context.Context, bucket, key string, data []byte, opts storage.UploadOptions) error {
	if f.failUpload != nil && f.failUpload(bucket, key) {
		return errors.New("storage unavailable")
	}
	return f.MemoryStore.Upload(ctx, bucket, key, data, opts)
}

func (f *faultyStore) Remove(ctx context.Context, bucket string, keys []string) error {
	if f.failRemove {
		return errors.New("storage unavailable")
	}
	return f.MemoryStore.Remove(ctx, bucket, keys)
}

func scenarioArchive(t *testing.T) []byte {
	return buildZip(t,
		zipFile{"pack/Brand-Regular.otf", goregular.TTF},
		zipFile{"pack/Brand-Bold.otf", gobold.TTF},
		zipFile{"pack/Brand.ttf", goregular.TTF},
	)
}

func brandInput() models.ProductInput {
	return models.ProductInput{
		Name:     "Brand",
		Category: "sans-serif",
		Tags:     []string{"geometric"},
		Price:    39,
	}
}

func TestCreateProduct_Scenario(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("https://cdn.test")
	store.Put(productsBucket, "uploads/pack.zip", scenarioArchive(t))
	svc := services.NewIngestService(repo, store, testConfig())

	out, err := svc.CreateProduct(ctx, brandInput(), "uploads/pack.zip")
	require.NoError(t, err)
	assert.Equal(t, "brand", out.Slug)
	assert.Empty(t, out.Warnings)

	p, err := repo.GetByID(ctx, out.ProductID)
	require.NoError(t, err)
	require.NotNil(t, p)

	require.Len(t, p.FontFiles, 2)
	assert.Equal(t, "Regular", p.FontFiles[0].Style)
	assert.True(t, strings.HasSuffix(p.FontFiles[0].URL, "/brand/styles/Brand-Regular.otf"), p.FontFiles[0].URL)
	assert.Equal(t, "Bold", p.FontFiles[1].Style)
	assert.True(t, strings.HasSuffix(p.FontFiles[1].URL, "/brand/styles/Brand-Bold.otf"), p.FontFiles[1].URL)
	assert.Equal(t, "brand/styles/Brand-Regular.otf", p.FontFiles[0].StorageKey)

	assert.Equal(t, []string{"OTF", "TTF"}, []string(p.FileTypes))
	assert.NotEmpty(t, p.Glyphs)
	assert.Contains(t, []string(p.Glyphs), "A")
	assert.Equal(t, "uploads/pack.zip", p.DownloadZipPath)
	assert.Equal(t, int64((2*len(goregular.TTF)+len(gobold.TTF)+1023)/1024), p.FileSizeKB)

	assert.Equal(t, []string{"brand/styles/Brand-Bold.otf", "brand/styles/Brand-Regular.otf"}, store.Keys(previewsBucket))
	assert.Equal(t, []string{"uploads/pack.zip"}, store.Keys(productsBucket))

	data, opts, ok := store.Object(previewsBucket, "brand/styles/Brand-Regular.otf")
	require.True(t, ok)
	assert.Equal(t, goregular.TTF, data)
	assert.Equal(t, storage.UploadOptions{ContentType: "font/otf", CacheControl: "31536000", Upsert: true}, opts)
}

func TestCreateProduct_NoPreviewableFont(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("")
	store.Put(productsBucket, "uploads/ttf-only.zip", buildZip(t,
		zipFile{"Brand-Regular.ttf", goregular.TTF},
		zipFile{"Brand-Regular.woff", []byte("woff")},
		zipFile{"README.txt", []byte("hello")},
	))
	svc := services.NewIngestService(repo, store, testConfig())

	_, err := svc.CreateProduct(ctx, brandInput(), "uploads/ttf-only.zip")
	require.Error(t, err)
	assert.Equal(t, services.NoPreviewableFont, services.KindOf(err))

	exists, err := repo.SlugExists(ctx, "brand")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, store.Keys(previewsBucket))
	assert.Empty(t, store.Keys(productsBucket))
}

func TestCreateProduct_PersistenceFailureRestoresStorage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("")
	store.Put(productsBucket, "uploads/other.zip", []byte("other"))
	store.Put(previewsBucket, "other/styles/Other-Regular.otf", []byte("other"))
	previewsBefore := store.Keys(previewsBucket)
	store.Put(productsBucket, "uploads/pack.zip", scenarioArchive(t))

	repo := &stubRepo{ProductRepository: setupRepo(t), createErr: errors.New("connection reset")}
	svc := services.NewIngestService(repo, store, testConfig())

	_, err := svc.CreateProduct(ctx, brandInput(), "uploads/pack.zip")
	require.Error(t, err)
	assert.Equal(t, services.PersistenceFailure, services.KindOf(err))
	assert.Contains(t, err.Error(), "connection reset")

	assert.Equal(t, previewsBefore, store.Keys(previewsBucket))
	assert.Equal(t, []string{"uploads/other.zip"}, store.Keys(productsBucket))
}

func TestCreateProduct_UploadFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{
		MemoryStore: storage.NewMemoryStore(""),
		failUpload: func(bucket, key string) bool {
			return strings.HasSuffix(key, "Brand-Bold.otf")
		},
	}
	store.Put(productsBucket, "uploads/pack.zip", scenarioArchive(t))
	repo := setupRepo(t)
	svc := services.NewIngestService(repo, store, testConfig())

	_, err := svc.CreateProduct(ctx, brandInput(), "uploads/pack.zip")
	require.Error(t, err)
	assert.Equal(t, services.StorageUploadFailure, services.KindOf(err))
	assert.Empty(t, store.Keys(previewsBucket))
	assert.Empty(t, store.Keys(productsBucket))

	exists, err := repo.SlugExists(ctx, "brand")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateProduct_ArchiveUnreadable(t *testing.T) {
	store := storage.NewMemoryStore("")
	store.Put(productsBucket, "uploads/broken.zip", []byte("definitely not a zip"))
	svc := services.NewIngestService(setupRepo(t), store, testConfig())

	_, err := svc.CreateProduct(context.Background(), brandInput(), "uploads/broken.zip")
	assert.Equal(t, services.ArchiveUnreadable, services.KindOf(err))
	assert.Empty(t, store.Keys(productsBucket))
}

func TestCreateProduct_MissingArchive(t *testing.T) {
	store := storage.NewMemoryStore("")
	svc := services.NewIngestService(setupRepo(t), store, testConfig())

	_, err := svc.CreateProduct(context.Background(), brandInput(), "uploads/nowhere.zip")
	assert.Equal(t, services.StorageDownloadFailure, services.KindOf(err))
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestCreateProduct_ValidationBeforeAnyNetworkCall(t *testing.T) {
	store := storage.NewMemoryStore("")
	svc := services.NewIngestService(setupRepo(t), store, testConfig())

	in := brandInput()
	in.Name = "   "
	in.Price = -1
	in.Category = "blackletter"
	_, err := svc.CreateProduct(context.Background(), in, "uploads/pack.zip")
	require.Error(t, err)
	assert.Equal(t, services.ValidationFailure, services.KindOf(err))

	var ie *services.IngestError
	require.True(t, errors.As(err, &ie))
	names := make([]string, 0, len(ie.Invalid))
	for _, p := range ie.Invalid {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"name", "price", "category"}, names)
	assert.Equal(t, 0, store.Ops().Total())
}

func TestCreateProduct_CorruptPrimaryIsAWarning(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("")
	store.Put(productsBucket, "uploads/pack.zip", buildZip(t,
		zipFile{"Brand-Regular.otf", []byte("OTTO garbage")},
		zipFile{"Brand-Bold.otf", gobold.TTF},
	))
	svc := services.NewIngestService(repo, store, testConfig())

	out, err := svc.CreateProduct(ctx, brandInput(), "uploads/pack.zip")
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], string(services.BinaryParseFailure))

	p, err := repo.GetByID(ctx, out.ProductID)
	require.NoError(t, err)
	assert.Empty(t, p.Glyphs)
	require.Len(t, p.FontFiles, 2)
	assert.Equal(t, "Regular", p.FontFiles[0].Style)
}

func TestCreateProduct_EntrySizeLimit(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("")
	oversized := append(bytes.Repeat([]byte{0}, len(goregular.TTF)), 1)
	store.Put(productsBucket, "uploads/pack.zip", buildZip(t,
		zipFile{"Brand-Regular.otf", goregular.TTF},
		zipFile{"Brand-Black.otf", oversized},
		zipFile{"web/Brand-Regular.woff2", oversized},
	))
	cfg := testConfig()
	cfg.Ingest.MaxEntryBytes = int64(len(goregular.TTF))
	svc := services.NewIngestService(repo, store, cfg)

	out, err := svc.CreateProduct(ctx, brandInput(), "uploads/pack.zip")
	require.NoError(t, err)
	// The web font is never read, so only the oversized otf is reported.
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "Brand-Black.otf")
	assert.Contains(t, out.Warnings[0], "exceeds size limit")

	p, err := repo.GetByID(ctx, out.ProductID)
	require.NoError(t, err)
	require.Len(t, p.FontFiles, 1)
	assert.Equal(t, "Regular", p.FontFiles[0].Style)
	assert.Equal(t, []string{"OTF", "WOFF2"}, []string(p.FileTypes))
	assert.Equal(t, []string{"brand/styles/Brand-Regular.otf"}, store.Keys(previewsBucket))
}

func TestCreateProduct_SlugCollision(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("")
	store.Put(productsBucket, "a.zip", scenarioArchive(t))
	store.Put(productsBucket, "b.zip", scenarioArchive(t))
	svc := services.NewIngestService(setupRepo(t), store, testConfig())

	first, err := svc.CreateProduct(ctx, brandInput(), "a.zip")
	require.NoError(t, err)
	second, err := svc.CreateProduct(ctx, brandInput(), "b.zip")
	require.NoError(t, err)

	assert.Equal(t, "brand", first.Slug)
	assert.NotEqual(t, first.Slug, second.Slug)
	assert.True(t, strings.HasPrefix(second.Slug, "brand-"), second.Slug)
}

// seedProduct creates "brand" from v1.zip with Regular and Bold previews.
func seedProduct(t *testing.T, repo repositories.ProductRepository, store storage.ObjectStore, mem *storage.MemoryStore) string {
	t.Helper()
	mem.Put(productsBucket, "uploads/v1.zip", buildZip(t,
		zipFile{"Brand-Regular.otf", goregular.TTF},
		zipFile{"Brand-Bold.otf", gobold.TTF},
	))
	in := brandInput()
	in.PreviewImageURLs = &[]string{
		mem.PublicURL(productsBucket, "previews/brand-1.png"),
		mem.PublicURL(productsBucket, "previews/brand-2.png"),
	}
	mem.Put(productsBucket, "previews/brand-1.png", []byte("png"))
	mem.Put(productsBucket, "previews/brand-2.png", []byte("png"))

	out, err := services.NewIngestService(repo, store, testConfig()).CreateProduct(context.Background(), in, "uploads/v1.zip")
	require.NoError(t, err)
	return out.ProductID
}

func v2Archive(t *testing.T) []byte {
	return buildZip(t,
		zipFile{"Brand-Light.otf", gobold.TTF},
		zipFile{"Brand-Regular.otf", gobold.TTF},
	)
}

func TestUpdateProduct_CommitThenDeleteOld(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("")
	id := seedProduct(t, repo, store, store)
	store.Put(productsBucket, "uploads/v2.zip", v2Archive(t))
	svc := services.NewIngestService(repo, store, testConfig())

	prior, err := svc.LoadPriorAssets(ctx, id)
	require.NoError(t, err)
	in := brandInput()
	in.Name = "Brand Renamed"
	keep := prior.PreviewImageURLs[:1]
	in.PreviewImageURLs = &keep
	newKey := "uploads/v2.zip"

	out, err := svc.UpdateProduct(ctx, id, in, &newKey, prior)
	require.NoError(t, err)
	assert.Equal(t, "brand", out.Slug)

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Brand Renamed", p.Name)
	assert.Equal(t, "brand", p.Slug)
	assert.Equal(t, "uploads/v2.zip", p.DownloadZipPath)
	require.Len(t, p.FontFiles, 2)
	assert.Equal(t, "Light", p.FontFiles[0].Style)
	assert.Equal(t, "Regular", p.FontFiles[1].Style)

	assert.Equal(t, []string{"brand/styles/Brand-Light.otf", "brand/styles/Brand-Regular.otf"}, store.Keys(previewsBucket))
	data, _, _ := store.Object(previewsBucket, "brand/styles/Brand-Regular.otf")
	assert.Equal(t, gobold.TTF, data)
	assert.Equal(t, []string{"previews/brand-1.png", "uploads/v2.zip"}, store.Keys(productsBucket))
}

func TestUpdateProduct_PersistenceFailureKeepsServingAssets(t *testing.T) {
	ctx := context.Background()
	baseRepo := setupRepo(t)
	store := storage.NewMemoryStore("")
	id := seedProduct(t, baseRepo, store, store)
	store.Put(productsBucket, "uploads/v2.zip", v2Archive(t))
	productsBefore := store.Keys(productsBucket)

	repo := &stubRepo{ProductRepository: baseRepo, updateErr: errors.New("deadlock detected")}
	svc := services.NewIngestService(repo, store, testConfig())
	prior, err := svc.LoadPriorAssets(ctx, id)
	require.NoError(t, err)
	newKey := "uploads/v2.zip"

	_, err = svc.UpdateProduct(ctx, id, brandInput(), &newKey, prior)
	require.Error(t, err)
	assert.Equal(t, services.PersistenceFailure, services.KindOf(err))

	// Previous archive and previews are still retrievable, with their
	// original bytes; everything new is gone.
	_, err = store.Download(ctx, productsBucket, "uploads/v1.zip")
	assert.NoError(t, err)
	assert.Equal(t, []string{"brand/styles/Brand-Bold.otf", "brand/styles/Brand-Regular.otf"}, store.Keys(previewsBucket))
	data, _, _ := store.Object(previewsBucket, "brand/styles/Brand-Regular.otf")
	assert.Equal(t, goregular.TTF, data)

	productsAfter := store.Keys(productsBucket)
	assert.NotContains(t, productsAfter, "uploads/v2.zip")
	assert.ElementsMatch(t, without(productsBefore, "uploads/v2.zip"), productsAfter)

	p, err := baseRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "uploads/v1.zip", p.DownloadZipPath)
	require.Len(t, p.FontFiles, 2)
	assert.Equal(t, "Bold", p.FontFiles[1].Style)
}

func TestUpdateProduct_ReprocessSameArchive(t *testing.T) {
	ctx := context.Background()
	baseRepo := setupRepo(t)
	store := storage.NewMemoryStore("")
	id := seedProduct(t, baseRepo, store, store)

	repo := &stubRepo{ProductRepository: baseRepo, updateErr: errors.New("timeout")}
	key := "uploads/v1.zip"
	_, err := services.NewIngestService(repo, store, testConfig()).UpdateProduct(ctx, id, brandInput(), &key, nil)
	require.Error(t, err)

	_, err = store.Download(ctx, productsBucket, "uploads/v1.zip")
	assert.NoError(t, err)

	out, err := services.NewIngestService(baseRepo, store, testConfig()).UpdateProduct(ctx, id, brandInput(), &key, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
	assert.Contains(t, store.Keys(productsBucket), "uploads/v1.zip")
	assert.Len(t, store.Keys(previewsBucket), 2)
}

func TestUpdateProduct_MetadataOnly(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("")
	id := seedProduct(t, repo, store, store)
	svc := services.NewIngestService(repo, store, testConfig())
	before := store.Ops()

	in := brandInput()
	in.StaffPick = true
	out, err := svc.UpdateProduct(ctx, id, in, nil, nil)
	require.NoError(t, err)
	assert.True(t, out.Product.StaffPick)

	after := store.Ops()
	assert.Equal(t, before.Uploads, after.Uploads)
	assert.Equal(t, before.Downloads, after.Downloads)
	assert.Equal(t, before.Removes, after.Removes)
	assert.Equal(t, []string{"previews/brand-1.png", "previews/brand-2.png", "uploads/v1.zip"}, store.Keys(productsBucket))
	assert.Len(t, store.Keys(previewsBucket), 2)

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.StaffPick)
	assert.Len(t, p.FontFiles, 2)
	assert.Len(t, p.PreviewImageURLs, 2)
}

func TestUpdateProduct_ClearPreviewImages(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("")
	id := seedProduct(t, repo, store, store)
	svc := services.NewIngestService(repo, store, testConfig())

	in := brandInput()
	in.PreviewImageURLs = &[]string{}
	_, err := svc.UpdateProduct(ctx, id, in, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"uploads/v1.zip"}, store.Keys(productsBucket))
	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, p.PreviewImageURLs)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	svc := services.NewIngestService(setupRepo(t), storage.NewMemoryStore(""), testConfig())
	_, err := svc.UpdateProduct(context.Background(), "missing", brandInput(), nil, nil)
	assert.Equal(t, services.NotFound, services.KindOf(err))
}

func TestUpdateProduct_DeletedConcurrently(t *testing.T) {
	ctx := context.Background()
	baseRepo := setupRepo(t)
	store := storage.NewMemoryStore("")
	id := seedProduct(t, baseRepo, store, store)
	store.Put(productsBucket, "uploads/v2.zip", v2Archive(t))

	repo := &stubRepo{ProductRepository: baseRepo, updateErr: repositories.ErrProductNotFound}
	newKey := "uploads/v2.zip"
	_, err := services.NewIngestService(repo, store, testConfig()).UpdateProduct(ctx, id, brandInput(), &newKey, nil)
	require.Error(t, err)
	assert.Equal(t, services.NotFound, services.KindOf(err))
	assert.True(t, errors.Is(err, repositories.ErrProductNotFound))

	// The new upload is compensated, the previous previews are restored.
	assert.NotContains(t, store.Keys(productsBucket), "uploads/v2.zip")
	assert.Equal(t, []string{"brand/styles/Brand-Bold.otf", "brand/styles/Brand-Regular.otf"}, store.Keys(previewsBucket))
	data, _, _ := store.Object(previewsBucket, "brand/styles/Brand-Regular.otf")
	assert.Equal(t, goregular.TTF, data)
}

func TestDeleteProduct_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("")
	id := seedProduct(t, repo, store, store)
	svc := services.NewIngestService(repo, store, testConfig())

	out, err := svc.DeleteProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Deleted)
	assert.Empty(t, store.Keys(productsBucket))
	assert.Empty(t, store.Keys(previewsBucket))

	before := store.Ops()
	out, err = svc.DeleteProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Deleted)
	assert.Equal(t, before, store.Ops())
}

func TestDeleteProduct_StorageFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	mem := storage.NewMemoryStore("")
	id := seedProduct(t, repo, mem, mem)
	store := &faultyStore{MemoryStore: mem, failRemove: true}

	out, err := services.NewIngestService(repo, store, testConfig()).DeleteProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Deleted)
	assert.Len(t, out.Warnings, 2)
	assert.Contains(t, out.Warnings[0], string(services.StorageDeleteFailure))

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestBulkDeleteProducts(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	store := storage.NewMemoryStore("")
	store.Put(productsBucket, "a.zip", scenarioArchive(t))
	store.Put(productsBucket, "b.zip", scenarioArchive(t))
	svc := services.NewIngestService(repo, store, testConfig())

	a, err := svc.CreateProduct(ctx, brandInput(), "a.zip")
	require.NoError(t, err)
	in := brandInput()
	in.Name = "Other"
	b, err := svc.CreateProduct(ctx, in, "b.zip")
	require.NoError(t, err)

	before := store.Ops()
	out, err := svc.BulkDeleteProducts(ctx, []string{a.ProductID, b.ProductID, "ghost", a.ProductID})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Deleted)
	assert.Equal(t, []string{"ghost"}, out.Missing)
	assert.Equal(t, "deleted 2 of 3 products; not found: ghost", out.Message)
	assert.Equal(t, before.Removes+2, store.Ops().Removes)
	assert.Empty(t, store.Keys(productsBucket))
	assert.Empty(t, store.Keys(previewsBucket))
}

func TestBulkDeleteProducts_StorageWarnings(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	mem := storage.NewMemoryStore("")
	id := seedProduct(t, repo, mem, mem)
	store := &faultyStore{MemoryStore: mem, failRemove: true}

	out, err := services.NewIngestService(repo, store, testConfig()).BulkDeleteProducts(ctx, []string{id})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Deleted)
	assert.Contains(t, out.Message, "storage warnings")
}

func TestBulkDeleteProducts_Empty(t *testing.T) {
	svc := services.NewIngestService(setupRepo(t), storage.NewMemoryStore(""), testConfig())
	_, err := svc.BulkDeleteProducts(context.Background(), []string{" ", ""})
	assert.Equal(t, services.ValidationFailure, services.KindOf(err))
}

func without(values []string, drop string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
