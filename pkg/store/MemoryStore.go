package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

/*
MemoryStore is an in-memory Store used in tests and dry runs. It is safe for
concurrent use. The hook fields let tests inject failures on specific keys to
exercise partial-failure paths.
*/
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// PutHook, if set, runs before each Put and can veto it.
	PutHook func(key string) error

	// DeleteHook, if set, runs per key during DeleteMany; a non-nil error
	// marks that key as unconfirmed.
	DeleteHook func(key string) error

	// PutLog records keys in the order they were stored.
	PutLog []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.PutHook != nil {
		if err := m.PutHook(key); err != nil {
			return err
		}
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = memoryObject{data: stored, contentType: contentType}
	m.PutLog = append(m.PutLog, key)

	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	object, ok := m.objects[key]

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	data := make([]byte, len(object.data))
	copy(data, object.data)

	return data, nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string

	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) DeleteMany(ctx context.Context, keys []string) (DeleteResult, error) {
	result := DeleteResult{}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		if m.DeleteHook != nil {
			if err := m.DeleteHook(key); err != nil {
				result.Failed = append(result.Failed, key)
				continue
			}
		}

		// Deleting an absent key is a success, matching S3 semantics.
		delete(m.objects, key)
		result.Deleted = append(result.Deleted, key)
	}

	return result, nil
}

/*
Len returns the number of stored objects.
*/
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}

var _ Store = (*MemoryStore)(nil)
