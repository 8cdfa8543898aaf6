package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort             = "1337"
	defaultAPIVersion       = "1.0.0"
	defaultProductsBucket   = "products"
	defaultPreviewsBucket   = "font-previews"
	defaultCacheSeconds     = 31536000
	defaultMaxPreviewImages = 20
	defaultMaxConcurrent    = 4
	defaultSweepSchedule    = "@daily"
	defaultSweepGrace       = 24 * time.Hour
	defaultSweepMaxFraction = 0.5

	// DefaultMaxEntryBytes caps how much of a single archive entry is read.
	DefaultMaxEntryBytes = 64 << 20
)

// DefaultCategories is used when CATALOG_CATEGORIES is not set.
var DefaultCategories = []string{"serif", "sans-serif", "display", "script", "monospace", "handwriting"}

type Config struct {
	Port       string
	APIVersion string
	Database   Database
	Storage    Storage
	Catalog    Catalog
	Ingest     Ingest
	Sweep      Sweep
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	Schema   string
}

type Storage struct {
	URL            string
	ServiceKey     string
	ProductsBucket string
	PreviewsBucket string
	CacheSeconds   int
}

// Catalog holds the lookup lists and limits that product records are validated against.
type Catalog struct {
	Categories       []string
	MaxPreviewImages int
}

type Ingest struct {
	MaxConcurrent int
	MaxEntryBytes int64
}

// Sweep configures the orphan sweep. It is off unless ENABLE_SWEEP is set.
type Sweep struct {
	Enabled     bool
	Schedule    string
	Grace       time.Duration
	MaxFraction float64 // largest share of stored objects one run may remove
}

// Load reads the configuration from the environment. Call godotenv.Load first
// when a .env file should be honoured.
func Load() Config {
	return Config{
		Port:       envOr("PORT", defaultPort),
		APIVersion: envOr("API_VERSION", defaultAPIVersion),
		Database: Database{
			Host:     strings.TrimSpace(os.Getenv("DB_HOSTNAME")),
			Port:     envOr("DB_PORT", "5432"),
			User:     strings.TrimSpace(os.Getenv("DB_USERNAME")),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     strings.TrimSpace(os.Getenv("DB_DBNAME")),
			Schema:   strings.TrimSpace(os.Getenv("DB_SCHEMA")),
		},
		Storage: Storage{
			URL:            strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_URL")), "/"),
			ServiceKey:     strings.TrimSpace(os.Getenv("STORAGE_SERVICE_KEY")),
			ProductsBucket: envOr("STORAGE_PRODUCTS_BUCKET", defaultProductsBucket),
			PreviewsBucket: envOr("STORAGE_PREVIEWS_BUCKET", defaultPreviewsBucket),
			CacheSeconds:   envInt("STORAGE_CACHE_SECONDS", defaultCacheSeconds),
		},
		Catalog: Catalog{
			Categories:       envList("CATALOG_CATEGORIES", DefaultCategories),
			MaxPreviewImages: envInt("CATALOG_MAX_PREVIEW_IMAGES", defaultMaxPreviewImages),
		},
		Ingest: Ingest{
			MaxConcurrent: envInt("INGEST_MAX_CONCURRENT", defaultMaxConcurrent),
			MaxEntryBytes: int64(envInt("INGEST_MAX_ENTRY_BYTES", DefaultMaxEntryBytes)),
		},
		Sweep: Sweep{
			Enabled:     envBool("ENABLE_SWEEP", false),
			Schedule:    envOr("SWEEP_SCHEDULE", defaultSweepSchedule),
			Grace:       envDuration("SWEEP_GRACE", defaultSweepGrace),
			MaxFraction: envFraction("SWEEP_MAX_FRACTION", defaultSweepMaxFraction),
		},
	}
}

// DSN builds the postgres connection string. It returns an error when the
// required DB_* variables are missing.
func (d Database) DSN() (string, error) {
	if d.Host == "" || d.User == "" || d.Name == "" {
		return "", fmt.Errorf("missing DB env vars; need DB_HOSTNAME, DB_USERNAME, DB_DBNAME")
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + d.Port,
		Path:   d.Name,
	}
	u.User = url.UserPassword(d.User, d.Password)

	q := u.Query()
	if d.Schema != "" {
		q.Set("search_path", d.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Remote reports whether a storage endpoint is configured.
func (s Storage) Remote() bool {
	return s.URL != "" && s.ServiceKey != ""
}

// CacheControl is the directive attached to published preview assets.
func (s Storage) CacheControl() string {
	return strconv.Itoa(s.CacheSeconds)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func envFraction(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 1 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), fallback...)
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
