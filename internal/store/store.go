// Package store defines the Record Store: ten keyed collections of JSON
// documents plus an integer schema version. Backends live in subpackages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Name identifies the ledger store on disk.
const Name = "kasirgratisan-db"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

type Collection string

const (
	Categories       Collection = "categories"
	Products         Collection = "products"
	Suppliers        Collection = "suppliers"
	StockIns         Collection = "stockIns"
	StockOuts        Collection = "stockOuts"
	HPPHistory       Collection = "hppHistory"
	PaymentMethods   Collection = "paymentMethods"
	Transactions     Collection = "transactions"
	TransactionItems Collection = "transactionItems"
	StoreSettings    Collection = "storeSettings"
)

var tableNames = map[Collection]string{
	Categories:       "categories",
	Products:         "products",
	Suppliers:        "suppliers",
	StockIns:         "stock_ins",
	StockOuts:        "stock_outs",
	HPPHistory:       "hpp_history",
	PaymentMethods:   "payment_methods",
	Transactions:     "transactions",
	TransactionItems: "transaction_items",
	StoreSettings:    "store_settings",
}

// Collections lists every collection in backup-file order.
func Collections() []Collection {
	return []Collection{
		Categories,
		Products,
		Suppliers,
		StockIns,
		StockOuts,
		HPPHistory,
		PaymentMethods,
		Transactions,
		TransactionItems,
		StoreSettings,
	}
}

func (c Collection) Valid() bool {
	_, ok := tableNames[c]
	return ok
}

// Table is the SQL table backing the collection.
func (c Collection) Table() (string, error) {
	name, ok := tableNames[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, string(c))
	}
	return name, nil
}

// Record is one stored document. Doc always carries its own "id" field equal
// to ID once it has been written.
type Record struct {
	ID  int64
	Doc json.RawMessage
}

// Backend is the storage contract. Every call is serialized on its own; there
// is no transaction spanning calls or collections.
type Backend interface {
	Version(ctx context.Context) (int, error)
	SetVersion(ctx context.Context, version int) error

	Get(ctx context.Context, c Collection, id int64) (json.RawMessage, error)
	All(ctx context.Context, c Collection) ([]Record, error)
	Count(ctx context.Context, c Collection) (int, error)

	// Add stores doc under the next free id and returns it.
	Add(ctx context.Context, c Collection, doc json.RawMessage) (int64, error)
	// Put creates or replaces the document with the given id.
	Put(ctx context.Context, c Collection, id int64, doc json.RawMessage) error
	Delete(ctx context.Context, c Collection, id int64) error
	Clear(ctx context.Context, c Collection) error
	// BulkPut writes records in order; a zero ID is assigned like Add.
	BulkPut(ctx context.Context, c Collection, records []Record) error

	Close() error
}
