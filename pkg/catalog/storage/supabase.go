package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/httpclient"
	"github.com/fontmarkt/catalog-api/pkg/config"
)

const (
	service         = "storage"
	removeBatchSize = 1000
	listPageSize    = 1000
)

// SupabaseStore talks to the Supabase Storage REST API.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
}

// NewSupabaseStore builds a store from the storage configuration.
func NewSupabaseStore(cfg config.Storage) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
	}
}

func (s *SupabaseStore) PublicURL(bucket, key string) string {
	return publicURL(s.baseURL, bucket, key)
}

func (s *SupabaseStore) Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) error {
	req, err := s.newRequest(ctx, http.MethodPost, s.objectURL(bucket, key), bytes.NewReader(data))
	if err != nil {
		return err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if opts.CacheControl != "" {
		req.Header.Set("Cache-Control", "max-age="+opts.CacheControl)
	}
	if opts.Upsert {
		req.Header.Set("x-upsert", "true")
	}

	resp, err := httpclient.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: upload %s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()
	if err := httpclient.CheckStatus(service, resp); err != nil {
		return fmt.Errorf("storage: upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *SupabaseStore) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.objectURL(bucket, key), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := httpclient.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: download %s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()
	if err := httpclient.CheckStatus(service, resp); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("storage: download %s/%s: %w", bucket, key, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Remove deletes keys in batches of at most 1000 prefixes per call.
func (s *SupabaseStore) Remove(ctx context.Context, bucket string, keys []string) error {
	var errs []error
	for start := 0; start < len(keys); start += removeBatchSize {
		end := min(start+removeBatchSize, len(keys))
		if err := s.removeBatch(ctx, bucket, keys[start:end]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *SupabaseStore) removeBatch(ctx context.Context, bucket string, keys []string) error {
	payload, err := json.Marshal(map[string][]string{"prefixes": keys})
	if err != nil {
		return fmt.Errorf("storage: marshal remove payload: %w", err)
	}
	target := fmt.Sprintf("%s/object/%s", s.baseURL, url.PathEscape(bucket))
	req, err := s.newRequest(ctx, http.MethodDelete, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpclient.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: remove %d objects from %s: %w", len(keys), bucket, err)
	}
	defer resp.Body.Close()
	if err := httpclient.CheckStatus(service, resp); err != nil {
		return fmt.Errorf("storage: remove %d objects from %s: %w", len(keys), bucket, err)
	}
	return nil
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy struct {
		Column string `json:"column"`
		Order  string `json:"order"`
	} `json:"sortBy"`
}

type listEntry struct {
	Name      string     `json:"name"`
	ID        *string    `json:"id"`
	UpdatedAt *time.Time `json:"updated_at"`
	Metadata  *struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

// List walks prefix recursively. Entries without an id are folders.
func (s *SupabaseStore) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	pending := []string{strings.Trim(prefix, "/")}
	for len(pending) > 0 {
		folder := pending[0]
		pending = pending[1:]
		for offset := 0; ; offset += listPageSize {
			entries, err := s.listPage(ctx, bucket, folder, offset)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				key := e.Name
				if folder != "" {
					key = folder + "/" + e.Name
				}
				if e.ID == nil {
					pending = append(pending, key)
					continue
				}
				info := ObjectInfo{Key: key}
				if e.UpdatedAt != nil {
					info.UpdatedAt = *e.UpdatedAt
				}
				if e.Metadata != nil {
					info.Size = e.Metadata.Size
				}
				out = append(out, info)
			}
			if len(entries) < listPageSize {
				break
			}
		}
	}
	return out, nil
}

func (s *SupabaseStore) listPage(ctx context.Context, bucket, folder string, offset int) ([]listEntry, error) {
	body := listRequest{Prefix: folder, Limit: listPageSize, Offset: offset}
	body.SortBy.Column = "name"
	body.SortBy.Order = "asc"
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal list payload: %w", err)
	}
	target := fmt.Sprintf("%s/object/list/%s", s.baseURL, url.PathEscape(bucket))
	req, err := s.newRequest(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpclient.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s/%s: %w", bucket, folder, err)
	}
	defer resp.Body.Close()
	if err := httpclient.CheckStatus(service, resp); err != nil {
		return nil, fmt.Errorf("storage: list %s/%s: %w", bucket, folder, err)
	}
	var entries []listEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("storage: decode list %s/%s: %w", bucket, folder, err)
	}
	return entries, nil
}

func (s *SupabaseStore) objectURL(bucket, key string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, url.PathEscape(bucket), escapeKey(key))
}

func (s *SupabaseStore) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("storage: create request: %w", err)
	}
	if s.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("apikey", s.serviceKey)
	}
	return req, nil
}

// isNotFound recognises both a plain 404 and the 400 + "not_found" body some
// Storage API versions answer with.
func isNotFound(err error) bool {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	if statusErr.Status == http.StatusNotFound {
		return true
	}
	body := strings.ToLower(statusErr.Body)
	return statusErr.Status == http.StatusBadRequest &&
		(strings.Contains(body, "not_found") || strings.Contains(body, "not found"))
}
