// Package service holds the ledger operations: catalog upkeep, the costing
// engine, the transaction recorder and store settings.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/events"
	"github.com/jipraks/kasirgratisan/internal/migrate"
	"github.com/jipraks/kasirgratisan/internal/seed"
	"github.com/jipraks/kasirgratisan/internal/store"
	"github.com/jipraks/kasirgratisan/internal/xid"
)

const (
	DefaultLowStockThreshold = 5
	DefaultBackupInterval    = 24 * time.Hour
)

type Service struct {
	backend store.Backend
	bus     *events.Bus
	logger  *slog.Logger

	categories     store.Table[domain.Category]
	products       store.Table[domain.Product]
	suppliers      store.Table[domain.Supplier]
	stockIns       store.Table[domain.StockIn]
	stockOuts      store.Table[domain.StockOut]
	costHistory    store.Table[domain.CostHistory]
	paymentMethods store.Table[domain.PaymentMethod]
	transactions   store.Table[domain.Transaction]
	items          store.Table[domain.TransactionItem]
	settings       store.Table[domain.StoreSettings]

	// writes serializes every read-modify-write of stock, cost and the
	// whole-store import.
	writes sync.Mutex

	now               func() time.Time
	receipts          xid.Receipts
	lowStockThreshold int
	backupInterval    time.Duration
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLowStockThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lowStockThreshold = n
		}
	}
}

func WithBackupInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.backupInterval = d
		}
	}
}

func New(backend store.Backend, bus *events.Bus, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		backend:           backend,
		bus:               bus,
		logger:            logger.With("component", "service"),
		categories:        store.NewTable[domain.Category](backend, store.Categories),
		products:          store.NewTable[domain.Product](backend, store.Products),
		suppliers:         store.NewTable[domain.Supplier](backend, store.Suppliers),
		stockIns:          store.NewTable[domain.StockIn](backend, store.StockIns),
		stockOuts:         store.NewTable[domain.StockOut](backend, store.StockOuts),
		costHistory:       store.NewTable[domain.CostHistory](backend, store.HPPHistory),
		paymentMethods:    store.NewTable[domain.PaymentMethod](backend, store.PaymentMethods),
		transactions:      store.NewTable[domain.Transaction](backend, store.Transactions),
		items:             store.NewTable[domain.TransactionItem](backend, store.TransactionItems),
		settings:          store.NewTable[domain.StoreSettings](backend, store.StoreSettings),
		now:               time.Now,
		lowStockThreshold: DefaultLowStockThreshold,
		backupInterval:    DefaultBackupInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if bus != nil {
		bus.Subscribe(func(events.Event) {
			if err := s.observeReceipts(context.Background()); err != nil {
				s.logger.Warn("reload receipt numbers after import", "error", err)
			}
		}, events.SnapshotImported)
	}
	return s
}

// Open brings the store up to the current schema, seeds defaults into an
// empty store and returns a Service over it. A migration failure is fatal.
func Open(ctx context.Context, backend store.Backend, bus *events.Bus, logger *slog.Logger, opts ...Option) (*Service, error) {
	s := New(backend, bus, logger, opts...)

	version, err := migrate.Run(ctx, backend, s.logger)
	if err != nil {
		return nil, err
	}
	if err := seed.Apply(ctx, backend, s.clock()); err != nil {
		return nil, fmt.Errorf("seed defaults: %w", err)
	}

	n, err := s.transactions.Count(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.observeReceipts(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("ledger ready", "schema_version", version, "transactions", n)
	return s, nil
}

// observeReceipts moves the receipt counter past every stored receipt number.
func (s *Service) observeReceipts(ctx context.Context) error {
	txs, err := s.transactions.All(ctx)
	if err != nil {
		return err
	}
	for _, tx := range txs {
		s.receipts.Observe(tx.ReceiptNumber)
	}
	return nil
}

// WriteLock is held by every operation that reads a record and writes it
// back. Whole-store replacement such as a backup import must hold it too.
func (s *Service) WriteLock() sync.Locker {
	return &s.writes
}

func (s *Service) Backend() store.Backend {
	return s.backend
}

func (s *Service) Bus() *events.Bus {
	return s.bus
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(ctx context.Context, kind events.Kind, at time.Time, payload any) {
	s.bus.Publish(ctx, events.Event{Kind: kind, At: at, Payload: payload})
}

// lookup turns a missing record into a validation failure on field.
func lookup[T any](ctx context.Context, t store.Table[T], field string, id int64) (T, error) {
	item, err := t.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return item, domain.Invalid(field, fmt.Sprintf("%s %d not found", t.Collection(), id))
	}
	return item, err
}

func inactive(field string, what string, id int64) error {
	return &domain.ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("%s %d has been deleted", what, id),
		Err:    domain.ErrInactiveReference,
	}
}
