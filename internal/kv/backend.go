// Package kv provides the durable key-value storage the persisted stores
// sit on. Values are opaque JSON documents keyed by a namespace string.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Backend abstracts key-value persistence.
type Backend interface {
	// Get returns nil, nil for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by backends with a remote dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryBackend is mostly for testing.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string][]byte),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), val...), nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// FileBackend keeps every key in one JSON document on disk, the way a
// browser keeps localStorage in a single profile file.
type FileBackend struct {
	path string
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func NewFileBackend(path string) (*FileBackend, error) {
	fb := &FileBackend{
		path: path,
		data: make(map[string]json.RawMessage),
	}
	if err := fb.load(); err != nil {
		return nil, err
	}
	return fb, nil
}

func (f *FileBackend) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return nil
	}
	return json.Unmarshal(blob, &f.data)
}

func (f *FileBackend) persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), val...), nil
}

// Put requires value to be valid JSON.
func (f *FileBackend) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return errors.New("kv: file backend values must be JSON")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append(json.RawMessage(nil), value...)
	return f.persist()
}

func (f *FileBackend) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return nil
	}
	delete(f.data, key)
	return f.persist()
}
