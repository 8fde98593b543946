package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// memObject is one stored object with its metadata.
type memObject struct {
	data         []byte
	lastModified time.Time
}

// MemStore is an in-memory Store used by tests and by the one-shot CLI
// commands when no store root is configured.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]memObject

	// Now supplies object timestamps; overridable in tests.
	Now func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string]memObject),
		Now:     time.Now,
	}
}

// Get implements Store.Get.
func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	out := make([]byte, len(obj.data))
	copy(out, obj.data)

	return out, nil
}

// Put implements Store.Put.
func (s *MemStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)

	s.objects[key] = memObject{data: stored, lastModified: s.Now().UTC()}

	return nil
}

// ListPrefix implements Store.ListPrefix, sorted by key.
func (s *MemStore) ListPrefix(_ context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ObjectInfo, 0)

	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, ObjectInfo{
				Key:          key,
				LastModified: obj.lastModified,
				Size:         int64(len(obj.data)),
			})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	return infos, nil
}

// Len returns the number of stored objects.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}
