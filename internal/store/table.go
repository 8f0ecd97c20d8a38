package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Table gives typed access to one collection. T must round-trip through
// encoding/json and carry an `json:"id"` field.
type Table[T any] struct {
	backend    Backend
	collection Collection
}

func NewTable[T any](backend Backend, c Collection) Table[T] {
	return Table[T]{backend: backend, collection: c}
}

func (t Table[T]) Collection() Collection {
	return t.collection
}

func (t Table[T]) Get(ctx context.Context, id int64) (T, error) {
	var out T
	raw, err := t.backend.Get(ctx, t.collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s/%d: %w", t.collection, id, err)
	}
	return out, nil
}

// All returns every record in id order.
func (t Table[T]) All(ctx context.Context) ([]T, error) {
	records, err := t.backend.All(ctx, t.collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var item T
		if err := json.Unmarshal(rec.Doc, &item); err != nil {
			return nil, fmt.Errorf("decode %s/%d: %w", t.collection, rec.ID, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// First returns the record with the lowest id.
func (t Table[T]) First(ctx context.Context) (T, error) {
	var out T
	records, err := t.backend.All(ctx, t.collection)
	if err != nil {
		return out, err
	}
	if len(records) == 0 {
		return out, ErrNotFound
	}
	if err := json.Unmarshal(records[0].Doc, &out); err != nil {
		return out, fmt.Errorf("decode %s/%d: %w", t.collection, records[0].ID, err)
	}
	return out, nil
}

func (t Table[T]) Add(ctx context.Context, item T) (int64, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", t.collection, err)
	}
	return t.backend.Add(ctx, t.collection, raw)
}

func (t Table[T]) Put(ctx context.Context, id int64, item T) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %s/%d: %w", t.collection, id, err)
	}
	return t.backend.Put(ctx, t.collection, id, raw)
}

func (t Table[T]) Delete(ctx context.Context, id int64) error {
	return t.backend.Delete(ctx, t.collection, id)
}

func (t Table[T]) Count(ctx context.Context) (int, error) {
	return t.backend.Count(ctx, t.collection)
}
