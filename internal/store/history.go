package store

import (
	"context"

	"stabletrade/internal/kv"
)

const (
	HistoryCapacity = 50
	PendingCapacity = 20
)

// HistoryStore keeps the newest HistoryCapacity transaction records.
type HistoryStore struct {
	list *jsonList[Record]
}

func NewHistoryStore(backend kv.Backend) *HistoryStore {
	return &HistoryStore{list: newJSONList[Record](backend, HistoryKey, HistoryCapacity)}
}

// Append records rec as the newest entry, evicting the oldest past capacity.
func (h *HistoryStore) Append(ctx context.Context, rec Record) error {
	_, err := h.list.prepend(ctx, rec)
	return err
}

// List returns records newest first.
func (h *HistoryStore) List(ctx context.Context) ([]Record, error) {
	return h.list.list(ctx)
}

func (h *HistoryStore) Clear(ctx context.Context) error {
	_, err := h.list.update(ctx, func([]Record) ([]Record, error) {
		return []Record{}, nil
	})
	return err
}

// PendingStore keeps delayed redemptions until the caller removes them.
type PendingStore struct {
	list *jsonList[PendingOrder]
}

func NewPendingStore(backend kv.Backend) *PendingStore {
	return &PendingStore{list: newJSONList[PendingOrder](backend, PendingKey, PendingCapacity)}
}

func (p *PendingStore) Add(ctx context.Context, order PendingOrder) error {
	_, err := p.list.prepend(ctx, order)
	return err
}

// Remove drops every order with digest. Unknown digests are a no-op.
func (p *PendingStore) Remove(ctx context.Context, digest string) error {
	_, err := p.list.update(ctx, func(items []PendingOrder) ([]PendingOrder, error) {
		out := items[:0]
		for _, it := range items {
			if it.Digest != digest {
				out = append(out, it)
			}
		}
		return out, nil
	})
	return err
}

func (p *PendingStore) List(ctx context.Context) ([]PendingOrder, error) {
	return p.list.list(ctx)
}
