// Package metrics turns ledger events into Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/events"
)

type Collector struct {
	sales         prometheus.Counter
	salesAmount   prometheus.Counter
	salesProfit   prometheus.Counter
	unitsSold     prometheus.Counter
	unitsReceived prometheus.Counter
	unitsRemoved  prometheus.Counter
	backups       *prometheus.CounterVec
}

// NewCollector registers the ledger counters with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		sales: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kasir",
			Name:      "sales_total",
			Help:      "Committed sales.",
		}),
		salesAmount: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kasir",
			Name:      "sales_amount_rupiah_total",
			Help:      "Sum of sale totals after discounts.",
		}),
		salesProfit: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kasir",
			Name:      "sales_profit_rupiah_total",
			Help:      "Sum of recorded sale profit. Negative profit is not subtracted.",
		}),
		unitsSold: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kasir",
			Name:      "units_sold_total",
			Help:      "Product units leaving stock through sales.",
		}),
		unitsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kasir",
			Name:      "units_received_total",
			Help:      "Product units received from suppliers.",
		}),
		unitsRemoved: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kasir",
			Name:      "units_removed_total",
			Help:      "Product units written off outside of sales.",
		}),
		backups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kasir",
			Name:      "backup_operations_total",
			Help:      "Backup operations by kind.",
		}, []string{"operation"}),
	}
}

// Attach subscribes the collector to bus. The returned func detaches it.
func (c *Collector) Attach(bus *events.Bus) func() {
	return bus.Subscribe(c.Observe)
}

func (c *Collector) Observe(e events.Event) {
	switch e.Kind {
	case events.SaleCommitted:
		sale, ok := e.Payload.(domain.Sale)
		if !ok {
			return
		}
		c.sales.Inc()
		c.salesAmount.Add(float64(sale.Transaction.Total))
		if sale.Transaction.Profit > 0 {
			c.salesProfit.Add(float64(sale.Transaction.Profit))
		}
		for _, item := range sale.Items {
			c.unitsSold.Add(float64(item.Quantity))
		}
	case events.StockReceived:
		if in, ok := e.Payload.(domain.StockIn); ok {
			c.unitsReceived.Add(float64(in.Quantity))
		}
	case events.StockRemoved:
		if out, ok := e.Payload.(domain.StockOut); ok {
			c.unitsRemoved.Add(float64(out.Quantity))
		}
	case events.SnapshotExported:
		c.backups.WithLabelValues("export").Inc()
	case events.SnapshotImported:
		c.backups.WithLabelValues("import").Inc()
	case events.ImportRolledBack:
		c.backups.WithLabelValues("rollback").Inc()
	}
}
