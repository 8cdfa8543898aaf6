package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data      []byte
	opts      UploadOptions
	updatedAt time.Time
}

// Ops counts the calls a MemoryStore has served.
type Ops struct {
	Uploads   int
	Downloads int
	Removes   int
	Lists     int
}

// Total is the number of calls of any kind.
func (o Ops) Total() int { return o.Uploads + o.Downloads + o.Removes + o.Lists }

// MemoryStore keeps objects in process memory. It backs local development
// when no storage endpoint is configured and stands in for it in tests.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	buckets map[string]map[string]memoryObject
	ops     Ops
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://storage"
	}
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		buckets: map[string]map[string]memoryObject{},
	}
}

func (m *MemoryStore) PublicURL(bucket, key string) string {
	return publicURL(m.baseURL, bucket, key)
}

func (m *MemoryStore) Upload(_ context.Context, bucket, key string, data []byte, opts UploadOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops.Uploads++
	objects := m.bucket(bucket)
	if _, exists := objects[key]; exists && !opts.Upsert {
		return fmt.Errorf("storage: upload %s/%s: object already exists", bucket, key)
	}
	objects[key] = memoryObject{data: append([]byte(nil), data...), opts: opts, updatedAt: time.Now()}
	return nil
}

func (m *MemoryStore) Download(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops.Downloads++
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Remove(_ context.Context, bucket string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops.Removes++
	for _, k := range keys {
		delete(m.buckets[bucket], k)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops.Lists++
	prefix = strings.Trim(prefix, "/")
	var out []ObjectInfo
	for k, obj := range m.buckets[bucket] {
		if prefix != "" && !strings.HasPrefix(k, prefix+"/") {
			continue
		}
		out = append(out, ObjectInfo{Key: k, Size: int64(len(obj.data)), UpdatedAt: obj.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Put stores an object without counting it as an upload.
func (m *MemoryStore) Put(bucket, key string, data []byte) {
	m.PutAt(bucket, key, data, time.Now())
}

// PutAt stores an object with an explicit modification time.
func (m *MemoryStore) PutAt(bucket, key string, data []byte, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(bucket)[key] = memoryObject{data: append([]byte(nil), data...), updatedAt: at}
}

// Object returns the stored bytes and upload options of key.
func (m *MemoryStore) Object(bucket, key string) ([]byte, UploadOptions, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	return obj.data, obj.opts, ok
}

// Keys lists the keys of bucket in lexical order.
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ops returns the call counters.
func (m *MemoryStore) Ops() Ops {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ops
}

func (m *MemoryStore) bucket(name string) map[string]memoryObject {
	objects, ok := m.buckets[name]
	if !ok {
		objects = map[string]memoryObject{}
		m.buckets[name] = objects
	}
	return objects
}
