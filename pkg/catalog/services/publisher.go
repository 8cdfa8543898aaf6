package services

import (
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/archive"
	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/fontinfo"
	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
	"github.com/fontmarkt/catalog-api/pkg/config"
)

const previewContentType = "font/otf"

// AssetPublisher uploads preview copies of OTF binaries to the previews bucket.
type AssetPublisher struct {
	store  storage.ObjectStore
	bucket string
	opts   storage.UploadOptions
}

func NewAssetPublisher(store storage.ObjectStore, cfg config.Storage) *AssetPublisher {
	return &AssetPublisher{
		store:  store,
		bucket: cfg.PreviewsBucket,
		opts: storage.UploadOptions{
			ContentType:  previewContentType,
			CacheControl: strconv.Itoa(cfg.CacheSeconds),
			Upsert:       true,
		},
	}
}

// StorageKey is the previews bucket key of fileName under slug.
func StorageKey(slug, fileName string) string {
	return path.Join(slug, "styles", path.Base(fileName))
}

// Publish uploads data as the preview of fileName. Re-publishing under the
// same slug overwrites the previous copy.
func (p *AssetPublisher) Publish(ctx context.Context, slug, fileName string, data []byte) (models.FontStyleAsset, error) {
	if !fontinfo.Publishable(archive.Extension(fileName)) {
		return models.FontStyleAsset{}, fmt.Errorf("publish %s: only otf files are previewable", fileName)
	}
	key := StorageKey(slug, fileName)
	if err := p.store.Upload(ctx, p.bucket, key, data, p.opts); err != nil {
		return models.FontStyleAsset{}, fmt.Errorf("publish %s: %w", fileName, err)
	}
	return models.FontStyleAsset{
		Style:      fontinfo.StyleLabel(fileName),
		URL:        p.store.PublicURL(p.bucket, key),
		FileName:   path.Base(fileName),
		StorageKey: key,
	}, nil
}

// Bucket is the bucket previews are published to.
func (p *AssetPublisher) Bucket() string { return p.bucket }

// UploadOptions are the options every preview is written with.
func (p *AssetPublisher) UploadOptions() storage.UploadOptions { return p.opts }
