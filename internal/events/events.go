// Package events is the app-scoped notification bus. The application root
// owns one Bus and hands it to the components that publish or listen.
package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type Kind string

const (
	SaleCommitted    Kind = "sale.committed"
	StockReceived    Kind = "stock.received"
	StockRemoved     Kind = "stock.removed"
	SnapshotExported Kind = "backup.exported"
	SnapshotImported Kind = "backup.imported"
	ImportRolledBack Kind = "backup.rolled_back"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

type Handler func(Event)

// Publisher forwards events out of the process.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}

type subscription struct {
	handler Handler
	kinds   map[Kind]bool
}

type Bus struct {
	mu        sync.RWMutex
	nextID    int
	subs      map[int]subscription
	publisher Publisher
	logger    *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:      make(map[int]subscription),
		publisher: NoopPublisher{},
		logger:    logger,
	}
}

// Forward sends every published event to p as well.
func (b *Bus) Forward(p Publisher) {
	if p == nil {
		p = NoopPublisher{}
	}
	b.mu.Lock()
	b.publisher = p
	b.mu.Unlock()
}

// Subscribe registers h for the given kinds, or for every kind when none are
// given. The returned func removes the subscription and is safe to call twice.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) (unsubscribe func()) {
	var filter map[Kind]bool
	if len(kinds) > 0 {
		filter = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			filter[k] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{handler: h, kinds: filter}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to matching subscribers synchronously, in subscription
// order, then forwards it. A nil Bus drops events.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		sub := b.subs[id]
		if sub.kinds != nil && !sub.kinds[e.Kind] {
			continue
		}
		handlers = append(handlers, sub.handler)
	}
	publisher := b.publisher
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
	if err := publisher.Publish(ctx, e); err != nil {
		b.logger.Warn("event forward failed", "kind", e.Kind, "err", err)
	}
}
