package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Store used by tests. It mirrors the tag semantics of
// the S3 store: tags live separately from object bodies and start empty.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	tags    map[string][]Tag

	// FailTags, when set, makes tag operations on that key fail. Lets tests
	// exercise the archived-but-untagged limbo path.
	FailTags map[string]bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string][]byte),
		tags:     make(map[string][]Tag),
		FailTags: make(map[string]bool),
	}
}

func (m *Memory) Put(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(body))
	copy(buf, body)
	m.objects[key] = buf
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	buf := make([]byte, len(body))
	copy(buf, body)
	return buf, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) GetTags(_ context.Context, key string) ([]Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTags[key] {
		return nil, fmt.Errorf("get tags %s: injected failure", key)
	}
	if _, ok := m.objects[key]; !ok {
		return nil, fmt.Errorf("get tags %s: %w", key, ErrNotFound)
	}
	tags := make([]Tag, len(m.tags[key]))
	copy(tags, m.tags[key])
	return tags, nil
}

func (m *Memory) PutTags(_ context.Context, key string, tags []Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTags[key] {
		return fmt.Errorf("put tags %s: injected failure", key)
	}
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("put tags %s: %w", key, ErrNotFound)
	}
	buf := make([]Tag, len(tags))
	copy(buf, tags)
	m.tags[key] = buf
	return nil
}
