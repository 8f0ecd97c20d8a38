// Package backup writes the whole ledger to a portable JSON file and restores
// a ledger from one, putting the previous data back if the restore fails.
package backup

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jipraks/kasirgratisan/internal/store"
)

// FormatVersion is written into every exported file. Version 1 files carried
// transaction items embedded in their transaction.
const FormatVersion = 2

// Document is the on-disk backup layout. Field order is the file order.
type Document struct {
	Version          int               `json:"version"`
	ExportedAt       time.Time         `json:"exportedAt"`
	Categories       []json.RawMessage `json:"categories"`
	Products         []json.RawMessage `json:"products"`
	Suppliers        []json.RawMessage `json:"suppliers"`
	StockIns         []json.RawMessage `json:"stockIns"`
	StockOuts        []json.RawMessage `json:"stockOuts"`
	HPPHistory       []json.RawMessage `json:"hppHistory"`
	PaymentMethods   []json.RawMessage `json:"paymentMethods"`
	Transactions     []json.RawMessage `json:"transactions"`
	TransactionItems []json.RawMessage `json:"transactionItems"`
	StoreSettings    []json.RawMessage `json:"storeSettings"`
}

func (d *Document) collection(c store.Collection) *[]json.RawMessage {
	switch c {
	case store.Categories:
		return &d.Categories
	case store.Products:
		return &d.Products
	case store.Suppliers:
		return &d.Suppliers
	case store.StockIns:
		return &d.StockIns
	case store.StockOuts:
		return &d.StockOuts
	case store.HPPHistory:
		return &d.HPPHistory
	case store.PaymentMethods:
		return &d.PaymentMethods
	case store.Transactions:
		return &d.Transactions
	case store.TransactionItems:
		return &d.TransactionItems
	case store.StoreSettings:
		return &d.StoreSettings
	}
	panic(fmt.Sprintf("backup: no document field for collection %q", c))
}

// Manifest summarizes an exported or imported file.
type Manifest struct {
	Version    int                      `json:"version"`
	ExportedAt time.Time                `json:"exportedAt"`
	Counts     map[store.Collection]int `json:"counts"`
}

func (m Manifest) Total() int {
	total := 0
	for _, n := range m.Counts {
		total += n
	}
	return total
}

// FileName is the suggested name for a backup taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("kasirgratisan-backup-%s.json", t.Format("2006-01-02"))
}

type Option func(*options)

type options struct {
	now  func() time.Time
	lock sync.Locker
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocker makes exports and imports hold l while they read or replace the
// store, so no ledger write lands in the middle of one.
func WithLocker(l sync.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.lock = l
		}
	}
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, lock: noLock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
