package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// StoredObject is an object held by FakeStorage.
type StoredObject struct {
	Data         []byte
	ContentType  string
	CacheControl string
	UpdatedAt    time.Time
}

// FakeStorage serves the subset of the Supabase Storage REST API the catalog
// uses, keeping objects in memory.
type FakeStorage struct {
	mu       sync.Mutex
	objects  map[string]map[string]StoredObject
	requests []string
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{objects: map[string]map[string]StoredObject{}}
}

// Put seeds an object.
func (f *FakeStorage) Put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bucket(bucket)[key] = StoredObject{Data: data, UpdatedAt: time.Now().UTC()}
}

// Get returns a stored object.
func (f *FakeStorage) Get(bucket, key string) (StoredObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[bucket][key]
	return obj, ok
}

// Requests returns "METHOD path" for every request served so far.
func (f *FakeStorage) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	rest, ok := strings.CutPrefix(r.URL.Path, "/object/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(rest, "list/"):
		f.list(w, r, strings.TrimPrefix(rest, "list/"))
	case r.Method == http.MethodGet && strings.HasPrefix(rest, "public/"):
		f.download(w, strings.TrimPrefix(rest, "public/"))
	case r.Method == http.MethodPost:
		f.upload(w, r, rest)
	case r.Method == http.MethodGet:
		f.download(w, rest)
	case r.Method == http.MethodDelete:
		f.remove(w, r, rest)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *FakeStorage) upload(w http.ResponseWriter, r *http.Request, path string) {
	bucket, key, _ := strings.Cut(path, "/")
	if _, exists := f.objects[bucket][key]; exists && r.Header.Get("x-upsert") != "true" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"statusCode": "409", "error": "Duplicate"})
		return
	}
	data, _ := io.ReadAll(r.Body)
	f.bucket(bucket)[key] = StoredObject{
		Data:         data,
		ContentType:  r.Header.Get("Content-Type"),
		CacheControl: r.Header.Get("Cache-Control"),
		UpdatedAt:    time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, map[string]string{"Key": bucket + "/" + key})
}

func (f *FakeStorage) download(w http.ResponseWriter, path string) {
	bucket, key, _ := strings.Cut(path, "/")
	obj, ok := f.objects[bucket][key]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"statusCode": "404", "error": "not_found", "message": "Object not found",
		})
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	_, _ = w.Write(obj.Data)
}

func (f *FakeStorage) remove(w http.ResponseWriter, r *http.Request, bucket string) {
	var body struct {
		Prefixes []string `json:"prefixes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	removed := make([]map[string]string, 0, len(body.Prefixes))
	for _, key := range body.Prefixes {
		if _, ok := f.objects[bucket][key]; ok {
			delete(f.objects[bucket], key)
			removed = append(removed, map[string]string{"name": key})
		}
	}
	writeJSON(w, http.StatusOK, removed)
}

func (f *FakeStorage) list(w http.ResponseWriter, r *http.Request, bucket string) {
	var body struct {
		Prefix string `json:"prefix"`
		Limit  int    `json:"limit"`
		Offset int    `json:"offset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	prefix := strings.Trim(body.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	folders := map[string]bool{}
	var entries []map[string]any
	for key, obj := range f.objects[bucket] {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if folder, _, nested := strings.Cut(name, "/"); nested {
			folders[folder] = true
			continue
		}
		entries = append(entries, map[string]any{
			"name":       name,
			"id":         "obj-" + key,
			"updated_at": obj.UpdatedAt.Format(time.RFC3339Nano),
			"metadata":   map[string]any{"size": len(obj.Data)},
		})
	}
	for folder := range folders {
		entries = append(entries, map[string]any{"name": folder, "id": nil})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i]["name"].(string) < entries[j]["name"].(string)
	})

	if body.Offset > len(entries) {
		body.Offset = len(entries)
	}
	entries = entries[body.Offset:]
	if body.Limit > 0 && len(entries) > body.Limit {
		entries = entries[:body.Limit]
	}
	writeJSON(w, http.StatusOK, entries)
}

func (f *FakeStorage) bucket(name string) map[string]StoredObject {
	objects, ok := f.objects[name]
	if !ok {
		objects = map[string]StoredObject{}
		f.objects[name] = objects
	}
	return objects
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
