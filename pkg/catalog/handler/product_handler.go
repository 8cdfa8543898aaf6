package handler

import (
	"errors"

	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/problem"
	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/util"
	"github.com/fontmarkt/catalog-api/pkg/catalog/models"
	"github.com/fontmarkt/catalog-api/pkg/catalog/services"
	"github.com/gin-gonic/gin"
)

// ProductsController binds HTTP requests to the IngestService
type ProductsController struct {
	Service *services.IngestService
}

// NewProductsController creates a new controller
func NewProductsController(s *services.IngestService) *ProductsController {
	return &ProductsController{Service: s}
}

// RetrieveProduct handles GET /products/:id
func (c *ProductsController) RetrieveProduct(ctx *gin.Context, params *models.ProductParams) (*models.ProductDetail, error) {
	p, err := c.Service.GetProduct(ctx.Request.Context(), params.Id)
	if err != nil {
		return nil, asProblem(err)
	}
	return util.ToProductDetail(p), nil
}

// CreateProduct handles POST /products
func (c *ProductsController) CreateProduct(ctx *gin.Context, body *models.CreateProductRequest) (*models.IngestResponse, error) {
	out, err := c.Service.CreateProduct(ctx.Request.Context(), body.ProductInput, body.SourceArchiveKey)
	if err != nil {
		return nil, asProblem(err)
	}
	return &models.IngestResponse{Product: util.ToProductDetail(out.Product), Warnings: out.Warnings}, nil
}

// UpdateProduct handles PUT /products/:id
func (c *ProductsController) UpdateProduct(ctx *gin.Context, body *models.UpdateProductRequest) (*models.IngestResponse, error) {
	out, err := c.Service.UpdateProduct(ctx.Request.Context(), body.Id, body.ProductInput, body.SourceArchiveKey, nil)
	if err != nil {
		return nil, asProblem(err)
	}
	return &models.IngestResponse{Product: util.ToProductDetail(out.Product), Warnings: out.Warnings}, nil
}

// DeleteProduct handles DELETE /products/:id. Deleting an absent product
// succeeds with deleted=false.
func (c *ProductsController) DeleteProduct(ctx *gin.Context, params *models.ProductParams) (*models.DeleteResponse, error) {
	out, err := c.Service.DeleteProduct(ctx.Request.Context(), params.Id)
	if err != nil {
		return nil, asProblem(err)
	}
	return &models.DeleteResponse{
		Id:       params.Id,
		Deleted:  out.Deleted > 0,
		Warnings: out.Warnings,
		Message:  out.Message,
	}, nil
}

// BulkDeleteProducts handles POST /products/bulk-delete
func (c *ProductsController) BulkDeleteProducts(ctx *gin.Context, body *models.BulkDeleteRequest) (*models.BulkDeleteResponse, error) {
	out, err := c.Service.BulkDeleteProducts(ctx.Request.Context(), body.Ids)
	if err != nil {
		return nil, asProblem(err)
	}
	return &models.BulkDeleteResponse{
		Deleted:  out.Deleted,
		Missing:  out.Missing,
		Warnings: out.Warnings,
		Message:  out.Message,
	}, nil
}

// asProblem maps an ingestion failure onto its HTTP problem. Errors that are
// not ingestion failures pass through to the error hook.
func asProblem(err error) error {
	var ie *services.IngestError
	if !errors.As(err, &ie) {
		return err
	}
	var apiErr problem.APIError
	switch ie.Kind {
	case services.ValidationFailure:
		apiErr = problem.NewBadRequest(ie.Msg, ie.Invalid...)
	case services.NotFound:
		apiErr = problem.NewNotFound(ie.Msg)
	case services.ArchiveUnreadable, services.NoPreviewableFont:
		apiErr = problem.NewUnprocessable(ie.Error())
	case services.StorageUploadFailure, services.StorageDownloadFailure, services.StorageDeleteFailure:
		apiErr = problem.NewBadGateway(ie.Error())
	default:
		apiErr = problem.NewInternalServerError(ie.Error())
	}
	return apiErr.WithWarnings(ie.Warnings)
}
