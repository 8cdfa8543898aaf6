package services

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/problem"
	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
	"github.com/fontmarkt/catalog-api/pkg/catalog/repositories"
	"github.com/fontmarkt/catalog-api/pkg/config"
	"github.com/go-playground/validator/v10"
)

// RecordWriter validates product records and hands them to the repository.
// It never touches object storage; store errors are returned untouched.
type RecordWriter struct {
	repo     repositories.ProductRepository
	catalog  config.Catalog
	validate *validator.Validate
}

func NewRecordWriter(repo repositories.ProductRepository, catalog config.Catalog) *RecordWriter {
	return &RecordWriter{repo: repo, catalog: catalog, validate: validator.New()}
}

// Validate checks the caller-supplied metadata of a product.
func (w *RecordWriter) Validate(in models.ProductInput) error {
	var invalid []problem.InvalidParam
	if strings.TrimSpace(in.Name) == "" {
		invalid = append(invalid, problem.InvalidParam{Name: "name", Reason: "is required"})
	}
	if math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		invalid = append(invalid, problem.InvalidParam{Name: "price", Reason: "must be a number"})
	} else if in.Price < 0 {
		invalid = append(invalid, problem.InvalidParam{Name: "price", Reason: "must not be negative"})
	}
	if limit := w.catalog.MaxPreviewImages; limit > 0 && len(in.PreviewImages()) > limit {
		invalid = append(invalid, problem.InvalidParam{
			Name:   "previewImageUrls",
			Reason: fmt.Sprintf("at most %d preview images are allowed", limit),
		})
	}
	for i, u := range in.PreviewImages() {
		if err := w.validate.Var(u, "required,url"); err != nil {
			invalid = append(invalid, problem.InvalidParam{
				Name:   fmt.Sprintf("previewImageUrls[%d]", i),
				Reason: "must be a valid URL",
			})
		}
	}
	if in.Category != "" && len(w.catalog.Categories) > 0 && !slices.Contains(w.catalog.Categories, in.Category) {
		invalid = append(invalid, problem.InvalidParam{
			Name:   "category",
			Reason: fmt.Sprintf("must be one of %s", strings.Join(w.catalog.Categories, ", ")),
		})
	}

	if len(invalid) == 0 {
		return nil
	}
	reasons := make([]string, len(invalid))
	for i, p := range invalid {
		reasons[i] = p.Name + " " + p.Reason
	}
	return &IngestError{
		Kind:    ValidationFailure,
		Msg:     strings.Join(reasons, "; "),
		Invalid: invalid,
	}
}

func (w *RecordWriter) Create(ctx context.Context, p *models.Product) error {
	if err := w.Validate(inputOf(p)); err != nil {
		return err
	}
	return w.repo.Create(ctx, p)
}

func (w *RecordWriter) Update(ctx context.Context, p *models.Product) error {
	if err := w.Validate(inputOf(p)); err != nil {
		return err
	}
	return w.repo.Update(ctx, p)
}

func (w *RecordWriter) Delete(ctx context.Context, id string) (bool, error) {
	return w.repo.Delete(ctx, id)
}

func (w *RecordWriter) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	return w.repo.DeleteByIDs(ctx, ids)
}

func inputOf(p *models.Product) models.ProductInput {
	images := []string(p.PreviewImageURLs)
	return models.ProductInput{
		Name:             p.Name,
		Category:         p.Category,
		Tags:             p.Tags,
		Price:            p.Price,
		MainDescription:  p.MainDescription,
		PartnerID:        p.PartnerID,
		PurposeTags:      p.PurposeTags,
		PreviewImageURLs: &images,
		StaffPick:        p.StaffPick,
	}
}
