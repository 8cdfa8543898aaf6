/*
 * Font catalog API v1
 *
 * Product ingestion and asset management for the font storefront
 *
 * API version: 1.0.0
 */

package models

import (
	"time"

	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// FontStyleAsset is a published preview copy of one font file.
type FontStyleAsset struct {
	Style      string `json:"style"`
	URL        string `json:"url"`
	FileName   string `json:"file_name,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
}

// Product is the durable record the storefront and pricing read from.
type Product struct {
	ID               string                              `gorm:"column:id;primaryKey"`
	Name             string                              `gorm:"column:name;not null"`
	Slug             string                              `gorm:"column:slug;uniqueIndex;not null"`
	Category         string                              `gorm:"column:category;index"`
	Tags             pq.StringArray                      `gorm:"column:tags;type:text[]"`
	Price            float64                             `gorm:"column:price"`
	MainDescription  string                              `gorm:"column:main_description"`
	PartnerID        *string                             `gorm:"column:partner_id"`
	PurposeTags      pq.StringArray                      `gorm:"column:purpose_tags;type:text[]"`
	PreviewImageURLs pq.StringArray                      `gorm:"column:preview_image_urls;type:text[]"`
	FontFiles        datatypes.JSONSlice[FontStyleAsset] `gorm:"column:font_files"`
	Glyphs           datatypes.JSONSlice[string]         `gorm:"column:glyphs_json"`
	DownloadZipPath  string                              `gorm:"column:download_zip_path"`
	StaffPick        bool                                `gorm:"column:staff_pick"`
	FileSizeKB       int64                               `gorm:"column:file_size_kb"`
	FileTypes        pq.StringArray                      `gorm:"column:file_types;type:text[]"`
	CreatedAt        time.Time                           `gorm:"column:created_at"`
	UpdatedAt        time.Time                           `gorm:"column:updated_at"`
}

// AssetRefs are the storage objects a product owns.
type AssetRefs struct {
	ProductID        string
	PreviewImageURLs []string
	FontFiles        []FontStyleAsset
	DownloadZipPath  string
}

// Refs extracts the asset references of p.
func (p *Product) Refs() AssetRefs {
	return AssetRefs{
		ProductID:        p.ID,
		PreviewImageURLs: append([]string(nil), p.PreviewImageURLs...),
		FontFiles:        append([]FontStyleAsset(nil), p.FontFiles...),
		DownloadZipPath:  p.DownloadZipPath,
	}
}

// Keys groups every stored object the refs point at by bucket. Preview
// images live in the products bucket, font previews in the previews bucket.
func (r AssetRefs) Keys(productsBucket, previewsBucket string) map[string][]string {
	out := map[string][]string{}
	if r.DownloadZipPath != "" {
		out[productsBucket] = append(out[productsBucket], r.DownloadZipPath)
	}
	for _, u := range r.PreviewImageURLs {
		if key, ok := storage.KeyFromPublicURL(u, productsBucket); ok {
			out[productsBucket] = append(out[productsBucket], key)
		}
	}
	if fonts := FontKeys(r.FontFiles, previewsBucket); len(fonts) > 0 {
		out[previewsBucket] = fonts
	}
	return out
}

// FontKeys returns the previews bucket keys of assets. Records written before
// storage keys were stored fall back to parsing the public URL.
func FontKeys(assets []FontStyleAsset, previewsBucket string) []string {
	keys := make([]string, 0, len(assets))
	for _, a := range assets {
		if a.StorageKey != "" {
			keys = append(keys, a.StorageKey)
			continue
		}
		if key, ok := storage.KeyFromPublicURL(a.URL, previewsBucket); ok {
			keys = append(keys, key)
		}
	}
	return keys
}
