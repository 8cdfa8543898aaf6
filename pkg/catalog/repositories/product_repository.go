package repositories

import (
	"context"
	"errors"

	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
	"gorm.io/gorm"
)

// ErrProductNotFound is returned by Update when no row matches the id.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository persists product records.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	// GetByID returns nil, nil when the product does not exist.
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	AllAssetRefs(ctx context.Context) ([]models.AssetRefs, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepository) Update(ctx context.Context, p *models.Product) error {
	res := r.db.WithContext(ctx).Model(p).Select("*").Omit("id", "created_at").Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *productRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *productRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

// AllAssetRefs loads the storage references of every product, for the
// orphan sweep.
func (r *productRepository) AllAssetRefs(ctx context.Context) ([]models.AssetRefs, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Select("id", "preview_image_urls", "font_files", "download_zip_path").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	refs := make([]models.AssetRefs, 0, len(products))
	for i := range products {
		refs = append(refs, products[i].Refs())
	}
	return refs, nil
}
