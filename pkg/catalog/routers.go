package catalog

import (
	"github.com/fontmarkt/catalog-api/pkg/catalog/handler"
	"github.com/fontmarkt/catalog-api/pkg/catalog/middleware"
	"github.com/gin-gonic/gin"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/wI2L/fizz"
	"github.com/wI2L/fizz/openapi"
)

const (
	ScopeRead  = "products:read"
	ScopeWrite = "products:write"
)

var (
	apiVersionHeader = fizz.Header(
		"API-Version",
		"API version of the response",
		"",
	)

	notFoundResponse = fizz.Response("404", "Not Found", nil, nil, nil)

	unprocessableResponse = fizz.Response("422", "Archive holds no usable font", nil, nil, nil)

	badGatewayResponse = fizz.Response("502", "Object store unavailable", nil, nil, nil)
)

func NewRouter(apiVersion string, controller *handler.ProductsController) *fizz.Fizz {
	tonic.SetErrorHook(ErrorHook)

	g := gin.Default()
	g.Use(APIVersionMiddleware(apiVersion))
	f := fizz.NewFromEngine(g)

	gen := f.Generator()
	gen.SetServers([]*openapi.Server{
		{
			URL:         "https://api.fontmarkt.example/v1",
			Description: "Production",
		},
	})
	gen.API().Components.Headers["API-Version"] = &openapi.HeaderOrRef{
		Header: &openapi.Header{
			Description: "API version of the response",
			Schema: &openapi.SchemaOrRef{
				Schema: &openapi.Schema{Type: "string"},
			},
		},
	}

	info := &openapi.Info{
		Title:       "Font catalog API v1",
		Description: "Ingestion and management of font products",
		Version:     apiVersion,
	}

	root := f.Group("/v1", "Catalog v1", "Font catalog v1 routes")

	read := root.Group("", "Read", "Read-only endpoints", middleware.RequireAccess(ScopeRead))
	read.GET("/products/:id",
		[]fizz.OperationOption{
			fizz.ID("retrieveProduct"),
			fizz.Summary("Retrieve a product"),
			apiVersionHeader,
			notFoundResponse,
		},
		tonic.Handler(controller.RetrieveProduct, 200),
	)

	write := root.Group("", "Write", "Product ingestion and removal", middleware.RequireAccess(ScopeWrite))
	write.POST("/products",
		[]fizz.OperationOption{
			fizz.ID("createProduct"),
			fizz.Summary("Create a product from an uploaded font archive"),
			apiVersionHeader,
			unprocessableResponse,
			badGatewayResponse,
		},
		tonic.Handler(controller.CreateProduct, 201),
	)

	write.PUT("/products/:id",
		[]fizz.OperationOption{
			fizz.ID("updateProduct"),
			fizz.Summary("Update a product, optionally re-ingesting a new archive"),
			apiVersionHeader,
			notFoundResponse,
			unprocessableResponse,
			badGatewayResponse,
		},
		tonic.Handler(controller.UpdateProduct, 200),
	)

	write.DELETE("/products/:id",
		[]fizz.OperationOption{
			fizz.ID("deleteProduct"),
			fizz.Summary("Delete a product and its stored assets"),
			apiVersionHeader,
		},
		tonic.Handler(controller.DeleteProduct, 200),
	)

	write.POST("/products/bulk-delete",
		[]fizz.OperationOption{
			fizz.ID("bulkDeleteProducts"),
			fizz.Summary("Delete several products at once"),
			apiVersionHeader,
		},
		tonic.Handler(controller.BulkDeleteProducts, 200),
	)

	f.GET("/v1/openapi.json", []fizz.OperationOption{}, f.OpenAPI(info, "json"))

	return f
}

type apiVersionWriter struct {
	gin.ResponseWriter
	version string
}

func (w *apiVersionWriter) WriteHeader(code int) {
	if code >= 200 && code < 300 {
		w.Header().Set("API-Version", w.version)
	}
	w.ResponseWriter.WriteHeader(code)
}

func APIVersionMiddleware(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &apiVersionWriter{c.Writer, version}
		c.Next()
	}
}
