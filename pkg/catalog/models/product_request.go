package models

import "time"

// ProductInput carries the caller-supplied metadata of a product.
type ProductInput struct {
	Name             string    `json:"name" binding:"required"`
	Category         string    `json:"category,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	Price            float64   `json:"price"`
	MainDescription  string    `json:"mainDescription,omitempty"`
	PartnerID        *string   `json:"partnerId,omitempty"`
	PurposeTags      []string  `json:"purposeTags,omitempty"`
	PreviewImageURLs *[]string `json:"previewImageUrls,omitempty"`
	StaffPick        bool      `json:"staffPick"`
}

// PreviewImages returns the submitted preview image URLs. It is nil when the
// field was left out, which on update keeps the stored images.
func (in ProductInput) PreviewImages() []string {
	if in.PreviewImageURLs == nil {
		return nil
	}
	return *in.PreviewImageURLs
}

type CreateProductRequest struct {
	ProductInput
	// SourceArchiveKey is the key of the uploaded ZIP in the products bucket.
	SourceArchiveKey string `json:"sourceArchiveKey" binding:"required"`
}

type UpdateProductRequest struct {
	Id string `path:"id"`
	ProductInput
	SourceArchiveKey *string `json:"sourceArchiveKey,omitempty"`
}

// ProductParams addresses a single product by id.
type ProductParams struct {
	Id string `path:"id"`
}

type BulkDeleteRequest struct {
	Ids []string `json:"ids" binding:"required,min=1,dive,required"`
}

// Link is a HAL-style hypermedia link.
type Link struct {
	Href string `json:"href"`
}

type Links struct {
	Self *Link `json:"self"`
}

type ProductDetail struct {
	Id               string           `json:"id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	Category         string           `json:"category,omitempty"`
	Tags             []string         `json:"tags"`
	Price            float64          `json:"price"`
	MainDescription  string           `json:"mainDescription,omitempty"`
	PartnerID        *string          `json:"partnerId,omitempty"`
	PurposeTags      []string         `json:"purposeTags"`
	PreviewImageURLs []string         `json:"previewImageUrls"`
	FontFiles        []FontStyleAsset `json:"fontFiles"`
	Glyphs           []string         `json:"glyphs"`
	GlyphCount       int              `json:"glyphCount"`
	DownloadZipPath  string           `json:"downloadZipPath"`
	StaffPick        bool             `json:"staffPick"`
	FileSizeKB       int64            `json:"fileSizeKb"`
	FileTypes        []string         `json:"fileTypes"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	Links            *Links           `json:"_links,omitempty"`
}

type IngestResponse struct {
	Product  *ProductDetail `json:"product"`
	Warnings []string       `json:"warnings,omitempty"`
}

type DeleteResponse struct {
	Id       string   `json:"id"`
	Deleted  bool     `json:"deleted"`
	Warnings []string `json:"warnings,omitempty"`
	Message  string   `json:"message,omitempty"`
}

type BulkDeleteResponse struct {
	Deleted  int      `json:"deleted"`
	Missing  []string `json:"missing,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Message  string   `json:"message"`
}
