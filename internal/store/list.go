package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"stabletrade/internal/kv"
)

// Namespaces under which the stores persist their lists.
const (
	HistoryKey  = "stabletrade-tx-history"
	PendingKey  = "stabletrade-pending-orders"
	ProductsKey = "virtual_products"
)

// jsonList is a JSON array persisted under one backend key. A capacity of
// zero means unbounded. All mutations go through update so read-modify-write
// is serialized per list.
type jsonList[T any] struct {
	backend  kv.Backend
	key      string
	capacity int
	mu       sync.Mutex
}

func newJSONList[T any](backend kv.Backend, key string, capacity int) *jsonList[T] {
	return &jsonList[T]{backend: backend, key: key, capacity: capacity}
}

func (l *jsonList[T]) load(ctx context.Context) ([]T, error) {
	raw, err := l.backend.Get(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.key, err)
	}
	items := []T{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.key, err)
	}
	return items, nil
}

func (l *jsonList[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.key, err)
	}
	if err := l.backend.Put(ctx, l.key, raw); err != nil {
		return fmt.Errorf("write %s: %w", l.key, err)
	}
	return nil
}

func (l *jsonList[T]) list(ctx context.Context) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

func (l *jsonList[T]) update(ctx context.Context, fn func([]T) ([]T, error)) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	items, err = fn(items)
	if err != nil {
		return nil, err
	}
	if err := l.save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// prepend puts item first and evicts from the tail past capacity.
func (l *jsonList[T]) prepend(ctx context.Context, item T) ([]T, error) {
	return l.update(ctx, func(items []T) ([]T, error) {
		out := make([]T, 0, len(items)+1)
		out = append(out, item)
		out = append(out, items...)
		if l.capacity > 0 && len(out) > l.capacity {
			out = out[:l.capacity]
		}
		return out, nil
	})
}
