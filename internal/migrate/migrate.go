// Package migrate upgrades stored ledger documents between schema versions.
//
// Each Migration is a pure function over the collections it touches. The same
// steps run against a live store on open (Run) and against an incoming backup
// file before it is imported (UpgradeDataset).
package migrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/jipraks/kasirgratisan/internal/store"
)

// Doc is one stored document decoded with json.Number for numbers.
type Doc = map[string]any

// Dataset holds decoded documents per collection.
type Dataset map[store.Collection][]Doc

type Migration struct {
	From    int
	To      int
	Name    string
	Touches []store.Collection
	// Done reports whether the data already has the target shape.
	Done func(Dataset) bool
	// Apply returns the upgraded collections and must not modify its input.
	Apply func(Dataset) (Dataset, error)
}

// SchemaVersion is the version the code reads and writes.
const SchemaVersion = 4

func Migrations() []Migration {
	return []Migration{
		{
			From:    1,
			To:      2,
			Name:    "soft-delete-lifecycle",
			Touches: []store.Collection{store.Categories, store.Products, store.Suppliers},
			Done:    lifecycleDone,
			Apply:   addLifecycle,
		},
		{
			From:    2,
			To:      3,
			Name:    "device-id",
			Touches: []store.Collection{store.StoreSettings},
			Done:    deviceIDDone,
			Apply:   assignDeviceID,
		},
		{
			From:    3,
			To:      4,
			Name:    "split-transaction-items",
			Touches: []store.Collection{store.Transactions, store.TransactionItems},
			Done:    itemsSplitDone,
			Apply:   splitTransactionItems,
		},
	}
}

// Pending returns the steps needed to bring a store at version current up to
// SchemaVersion, in order. A fresh store (version 0) starts at 1.
func Pending(current int) []Migration {
	if current < 1 {
		current = 1
	}
	pending := make([]Migration, 0, 3)
	for _, m := range Migrations() {
		if m.From >= current {
			pending = append(pending, m)
		}
	}
	return pending
}

// UpgradeDataset runs every pending step over ds in memory.
func UpgradeDataset(ds Dataset, from int) (Dataset, error) {
	out := maps.Clone(ds)
	if out == nil {
		out = Dataset{}
	}
	for _, m := range Pending(from) {
		if m.Done(out) {
			continue
		}
		next, err := m.Apply(out)
		if err != nil {
			return nil, &Error{From: m.From, To: m.To, Name: m.Name, Err: err}
		}
		for c, docs := range next {
			out[c] = docs
		}
	}
	return out, nil
}

// Decode parses stored records into documents.
func Decode(records []store.Record) ([]Doc, error) {
	docs := make([]Doc, 0, len(records))
	for _, rec := range records {
		doc, err := DecodeDoc(rec.Doc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func DecodeDoc(raw json.RawMessage) (Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Doc
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is not an object")
	}
	return doc, nil
}

// Encode turns documents back into records keyed by their "id" field; a
// document without one gets a fresh id on write.
func Encode(docs []Doc) ([]store.Record, error) {
	records := make([]store.Record, 0, len(docs))
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		id, err := store.DocID(raw)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		records = append(records, store.Record{ID: id, Doc: raw})
	}
	return records, nil
}

type Error struct {
	From int
	To   int
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("migration %d->%d (%s): %v", e.From, e.To, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
