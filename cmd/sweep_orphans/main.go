package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/fontmarkt/catalog-api/pkg/catalog/database"
	"github.com/fontmarkt/catalog-api/pkg/catalog/repositories"
	"github.com/fontmarkt/catalog-api/pkg/catalog/storage"
	"github.com/fontmarkt/catalog-api/pkg/config"
	"github.com/fontmarkt/catalog-api/pkg/sweeper"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report orphaned objects without removing them")
	grace := flag.Duration("grace", 0, "minimum age of removed objects (default SWEEP_GRACE)")
	maxFraction := flag.Float64("max-fraction", 0, "largest share of objects one run may remove (default SWEEP_MAX_FRACTION)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}
	cfg := config.Load()
	if !cfg.Storage.Remote() {
		log.Fatalf("STORAGE_URL and STORAGE_SERVICE_KEY are required")
	}

	dsn, err := cfg.Database.DSN()
	if err != nil {
		log.Fatalf("database config: %v", err)
	}
	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	opts := sweeper.Options{
		DryRun:         *dryRun,
		Grace:          cfg.Sweep.Grace,
		ProductsBucket: cfg.Storage.ProductsBucket,
		PreviewsBucket: cfg.Storage.PreviewsBucket,
		MaxFraction:    cfg.Sweep.MaxFraction,
	}
	if *grace > 0 {
		opts.Grace = *grace
	}
	if *maxFraction > 0 {
		opts.MaxFraction = *maxFraction
	}

	res, err := sweeper.Sweep(context.Background(), repositories.NewProductRepository(db), storage.NewSupabaseStore(cfg.Storage), opts)
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
	for bucket, keys := range res.Orphans {
		for _, k := range keys {
			log.Printf("orphan %s/%s", bucket, k)
		}
	}
	if len(res.Warnings) > 0 {
		log.Printf("sweep finished with warnings: %s", strings.Join(res.Warnings, "; "))
		os.Exit(1)
	}
}
