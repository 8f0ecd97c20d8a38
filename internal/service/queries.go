package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/report"
	"github.com/jipraks/kasirgratisan/internal/store"
)

// LowStock lists active products whose stock is at or below threshold,
// lowest stock first. A threshold of zero or less uses the configured one.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	active, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	low := slices.DeleteFunc(active, func(p domain.Product) bool { return p.Stock > threshold })
	slices.SortStableFunc(low, func(a, b domain.Product) int { return a.Stock - b.Stock })
	return low, nil
}

// Transactions lists transactions dated in [from, to), newest first. A zero
// bound is open.
func (s *Service) Transactions(ctx context.Context, from time.Time, to time.Time) ([]domain.Transaction, error) {
	all, err := s.transactions.All(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(tx domain.Transaction) bool {
		return !inWindow(tx.Date, from, to)
	})
	slices.SortStableFunc(out, func(a, b domain.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out, nil
}

// Sales returns the transactions of Transactions together with their items.
func (s *Service) Sales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	txs, err := s.Transactions(ctx, from, to)
	if err != nil {
		return nil, err
	}
	items, err := s.items.All(ctx)
	if err != nil {
		return nil, err
	}
	byTx := make(map[int64][]domain.TransactionItem, len(txs))
	for _, it := range items {
		byTx[it.TransactionID] = append(byTx[it.TransactionID], it)
	}
	sales := make([]domain.Sale, 0, len(txs))
	for _, tx := range txs {
		lines := byTx[tx.ID]
		if lines == nil {
			lines = []domain.TransactionItem{}
		}
		sales = append(sales, domain.Sale{Transaction: tx, Items: lines})
	}
	return sales, nil
}

// TransactionDetail assembles a receipt: the transaction, its items, the
// payment method if it still exists and every product sold, deleted or not.
func (s *Service) TransactionDetail(ctx context.Context, id int64) (domain.SaleDetail, error) {
	tx, err := s.transactions.Get(ctx, id)
	if err != nil {
		return domain.SaleDetail{}, err
	}
	all, err := s.items.All(ctx)
	if err != nil {
		return domain.SaleDetail{}, err
	}
	items := slices.DeleteFunc(all, func(it domain.TransactionItem) bool { return it.TransactionID != id })

	detail := domain.SaleDetail{
		Sale:     domain.Sale{Transaction: tx, Items: items},
		Products: make(map[int64]domain.Product, len(items)),
	}
	if pm, err := s.paymentMethods.Get(ctx, tx.PaymentMethodID); err == nil {
		detail.PaymentMethod = &pm
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.SaleDetail{}, err
	}
	for _, it := range items {
		p, err := s.products.Get(ctx, it.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.SaleDetail{}, err
		}
		detail.Products[p.ID] = p
	}
	return detail, nil
}

// StockIns lists receipts newest first, for one product or for all when
// productID is zero.
func (s *Service) StockIns(ctx context.Context, productID int64) ([]domain.StockIn, error) {
	all, err := s.stockIns.All(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(r domain.StockIn) bool { return productID != 0 && r.ProductID != productID })
	slices.Reverse(out)
	return out, nil
}

func (s *Service) StockOuts(ctx context.Context, productID int64) ([]domain.StockOut, error) {
	all, err := s.stockOuts.All(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(r domain.StockOut) bool { return productID != 0 && r.ProductID != productID })
	slices.Reverse(out)
	return out, nil
}

// CostHistory lists unit-cost changes of a product, newest first.
func (s *Service) CostHistory(ctx context.Context, productID int64) ([]domain.CostHistory, error) {
	all, err := s.costHistory.All(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(h domain.CostHistory) bool { return h.ProductID != productID })
	slices.Reverse(out)
	return out, nil
}

// Report summarizes the sales of the last days calendar days.
func (s *Service) Report(ctx context.Context, days int) (report.Summary, error) {
	now := s.clock()
	period := report.Period{Days: days, Now: now, Location: now.Location()}
	sales, err := s.Sales(ctx, period.Start(), time.Time{})
	if err != nil {
		return report.Summary{}, err
	}
	methods, err := s.paymentMethods.All(ctx)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(period, sales, methods), nil
}

func inWindow(t time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
