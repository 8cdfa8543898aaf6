package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	catalog "github.com/fontmarkt/catalog-api/pkg/catalog"
	"github.com/fontmarkt/catalog-api/pkg/catalog/database"
	"github.com/fontmarkt/catalog-api/pkg/catalog/handler"
	"github.com/fontmarkt/catalog-api/pkg/catalog/repositories"
	"github.com/fontmarkt/catalog-api/pkg/catalog/services"
	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
	"github.com/fontmarkt/catalog-api/pkg/config"
	"github.com/fontmarkt/catalog-api/pkg/jobs"
	"github.com/fontmarkt/catalog-api/pkg/sweeper"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dsn, err := cfg.Database.DSN()
	if err != nil {
		log.Fatalf("database config: %v", err)
	}
	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	store := storage.New(cfg.Storage)
	productRepo := repositories.NewProductRepository(db)
	ingestService := services.NewIngestService(productRepo, store, cfg)
	productsController := handler.NewProductsController(ingestService)

	if cfg.Sweep.Enabled {
		_, err := jobs.ScheduleOrphanSweep(context.Background(), cfg.Sweep.Schedule, productRepo, store, sweeper.Options{
			Grace:          cfg.Sweep.Grace,
			ProductsBucket: cfg.Storage.ProductsBucket,
			PreviewsBucket: cfg.Storage.PreviewsBucket,
			MaxFraction:    cfg.Sweep.MaxFraction,
		})
		if err != nil {
			log.Fatalf("orphan sweep: %v", err)
		}
	}

	// Start server
	router := catalog.NewRouter(cfg.APIVersion, productsController)

	log.Printf("Server is running on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, router))
}
