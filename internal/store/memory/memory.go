package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/jipraks/kasirgratisan/internal/store"
)

// Store keeps every collection in process memory. It backs the demo server
// and most tests.
type Store struct {
	mu      sync.RWMutex
	version int
	tables  map[store.Collection]*table
}

type table struct {
	seq  int64
	rows map[int64]json.RawMessage
}

func New() *Store {
	tables := make(map[store.Collection]*table)
	for _, c := range store.Collections() {
		tables[c] = &table{rows: make(map[int64]json.RawMessage)}
	}
	return &Store{tables: tables}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) Version(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

func (s *Store) SetVersion(_ context.Context, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
	return nil
}

func (s *Store) Get(_ context.Context, c store.Collection, id int64) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(c)
	if err != nil {
		return nil, err
	}
	doc, ok := t.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(doc), nil
}

func (s *Store) All(_ context.Context, c store.Collection) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(c)
	if err != nil {
		return nil, err
	}
	records := make([]store.Record, 0, len(t.rows))
	for id, doc := range t.rows {
		records = append(records, store.Record{ID: id, Doc: slices.Clone(doc)})
	}
	slices.SortFunc(records, func(a, b store.Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return records, nil
}

func (s *Store) Count(_ context.Context, c store.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(c)
	if err != nil {
		return 0, err
	}
	return len(t.rows), nil
}

func (s *Store) Add(_ context.Context, c store.Collection, doc json.RawMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(c)
	if err != nil {
		return 0, err
	}
	return t.add(doc)
}

func (s *Store) Put(_ context.Context, c store.Collection, id int64, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(c)
	if err != nil {
		return err
	}
	return t.put(id, doc)
}

func (s *Store) Delete(_ context.Context, c store.Collection, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(c)
	if err != nil {
		return err
	}
	delete(t.rows, id)
	return nil
}

func (s *Store) Clear(_ context.Context, c store.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(c)
	if err != nil {
		return err
	}
	t.rows = make(map[int64]json.RawMessage)
	return nil
}

// BulkPut is all-or-nothing within the collection: documents are validated
// before any row changes.
func (s *Store) BulkPut(_ context.Context, c store.Collection, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(c)
	if err != nil {
		return err
	}
	staged := &table{seq: t.seq, rows: make(map[int64]json.RawMessage, len(t.rows)+len(records))}
	for id, doc := range t.rows {
		staged.rows[id] = doc
	}
	for _, rec := range records {
		if rec.ID == 0 {
			if _, err := staged.add(rec.Doc); err != nil {
				return err
			}
			continue
		}
		if err := staged.put(rec.ID, rec.Doc); err != nil {
			return err
		}
	}
	*t = *staged
	return nil
}

func (s *Store) table(c store.Collection) (*table, error) {
	t, ok := s.tables[c]
	if !ok {
		_, err := c.Table()
		return nil, err
	}
	return t, nil
}

func (t *table) add(doc json.RawMessage) (int64, error) {
	id := t.seq + 1
	stored, err := store.WithID(doc, id)
	if err != nil {
		return 0, err
	}
	t.seq = id
	t.rows[id] = stored
	return id, nil
}

func (t *table) put(id int64, doc json.RawMessage) error {
	stored, err := store.WithID(doc, id)
	if err != nil {
		return err
	}
	if id > t.seq {
		t.seq = id
	}
	t.rows[id] = stored
	return nil
}
