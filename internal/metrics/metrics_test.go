package metrics

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/events"
)

func TestCollectorCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	bus := events.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	detach := c.Attach(bus)
	ctx := context.Background()

	bus.Publish(ctx, events.Event{Kind: events.SaleCommitted, Payload: domain.Sale{
		Transaction: domain.Transaction{Total: 30000, Profit: 4250},
		Items:       []domain.TransactionItem{{Quantity: 2}, {Quantity: 1}},
	}})
	bus.Publish(ctx, events.Event{Kind: events.SaleCommitted, Payload: domain.Sale{
		Transaction: domain.Transaction{Total: 1000, Profit: -200},
		Items:       []domain.TransactionItem{{Quantity: 1}},
	}})
	bus.Publish(ctx, events.Event{Kind: events.StockReceived, Payload: domain.StockIn{Quantity: 5}})
	bus.Publish(ctx, events.Event{Kind: events.StockRemoved, Payload: domain.StockOut{Quantity: 2}})
	bus.Publish(ctx, events.Event{Kind: events.SnapshotExported})
	bus.Publish(ctx, events.Event{Kind: events.ImportRolledBack})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sales))
	assert.Equal(t, 31000.0, testutil.ToFloat64(c.salesAmount))
	assert.Equal(t, 4250.0, testutil.ToFloat64(c.salesProfit))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.unitsSold))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.unitsReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.unitsRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backups.WithLabelValues("export")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backups.WithLabelValues("rollback")))

	detach()
	bus.Publish(ctx, events.Event{Kind: events.StockReceived, Payload: domain.StockIn{Quantity: 5}})
	assert.Equal(t, 5.0, testutil.ToFloat64(c.unitsReceived))
}

func TestCollectorIgnoresUnexpectedPayload(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.Observe(events.Event{Kind: events.SaleCommitted, Payload: "not a sale"})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.sales))
}
