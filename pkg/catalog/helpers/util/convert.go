package util

import (
	"fmt"

	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
)

func ToProductDetail(p *models.Product) *models.ProductDetail {
	return &models.ProductDetail{
		Id:               p.ID,
		Name:             p.Name,
		Slug:             p.Slug,
		Category:         p.Category,
		Tags:             nonNil(p.Tags),
		Price:            p.Price,
		MainDescription:  p.MainDescription,
		PartnerID:        p.PartnerID,
		PurposeTags:      nonNil(p.PurposeTags),
		PreviewImageURLs: nonNil(p.PreviewImageURLs),
		FontFiles:        append([]models.FontStyleAsset{}, p.FontFiles...),
		Glyphs:           nonNil(p.Glyphs),
		GlyphCount:       len(p.Glyphs),
		DownloadZipPath:  p.DownloadZipPath,
		StaffPick:        p.StaffPick,
		FileSizeKB:       p.FileSizeKB,
		FileTypes:        nonNil(p.FileTypes),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		Links: &models.Links{
			Self: &models.Link{Href: fmt.Sprintf("/v1/products/%s", p.ID)},
		},
	}
}

// ApplyInput copies caller metadata onto p. Identity, slug and asset fields
// are left alone, and so are the preview images unless a list was sent.
func ApplyInput(p *models.Product, in models.ProductInput) {
	p.Name = in.Name
	p.Category = in.Category
	p.Tags = append([]string(nil), in.Tags...)
	p.Price = in.Price
	p.MainDescription = in.MainDescription
	p.PartnerID = in.PartnerID
	p.PurposeTags = append([]string(nil), in.PurposeTags...)
	if in.PreviewImageURLs != nil {
		p.PreviewImageURLs = append([]string(nil), in.PreviewImages()...)
	}
	p.StaffPick = in.StaffPick
}

func nonNil[S ~[]string](s S) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}
