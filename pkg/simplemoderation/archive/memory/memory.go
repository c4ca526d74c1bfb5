// Package memory provides an in-memory Archiver for tests and development.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/tendant/simple-moderation/pkg/simplemoderation"
)

// Backend is an in-memory implementation of the simplemoderation.Archiver interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ simplemoderation.Archiver = (*Backend)(nil)

// New creates a new in-memory archive backend
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

// Save stores a snapshot under the given key, replacing any previous one.
func (b *Backend) Save(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

// Load returns the snapshot stored under key.
func (b *Backend) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", key)
	}

	// Copy so callers cannot mutate the stored bytes.
	buf := make([]byte, len(data))
	copy(buf, data)
	return io.NopCloser(bytes.NewReader(buf)), nil
}

// Delete removes the snapshot stored under key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.objects[key]; !ok {
		return fmt.Errorf("snapshot not found: %s", key)
	}
	delete(b.objects, key)
	return nil
}

// Len reports the number of stored snapshots.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
