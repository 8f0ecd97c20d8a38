package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/events"
	"github.com/jipraks/kasirgratisan/internal/pricing"
)

type ReceiptRequest struct {
	ProductID  int64        `json:"productId"`
	SupplierID int64        `json:"supplierId"`
	Quantity   int          `json:"quantity"`
	BuyPrice   domain.Money `json:"buyPrice"`
	Notes      string       `json:"notes"`
}

type ReceiptResult struct {
	StockIn     domain.StockIn     `json:"stockIn"`
	CostHistory domain.CostHistory `json:"costHistory"`
	Product     domain.Product     `json:"product"`
}

// AddReceipt records goods received from a supplier. The product's stock
// grows by the received quantity and its unit cost becomes the weighted
// average of the stock on hand and the incoming lot.
func (s *Service) AddReceipt(ctx context.Context, req ReceiptRequest) (ReceiptResult, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	if req.Quantity <= 0 {
		return ReceiptResult{}, domain.Invalid("quantity", "must be greater than zero")
	}
	if req.BuyPrice <= 0 {
		return ReceiptResult{}, domain.Invalid("buyPrice", "must be greater than zero")
	}

	product, err := lookup(ctx, s.products, "productId", req.ProductID)
	if err != nil {
		return ReceiptResult{}, err
	}
	if product.Lifecycle.IsDeleted() {
		return ReceiptResult{}, inactive("productId", "product", req.ProductID)
	}
	supplier, err := lookup(ctx, s.suppliers, "supplierId", req.SupplierID)
	if err != nil {
		return ReceiptResult{}, err
	}
	if supplier.Lifecycle.IsDeleted() {
		return ReceiptResult{}, inactive("supplierId", "supplier", req.SupplierID)
	}

	now := s.clock()
	newCost := pricing.WeightedAverageCost(product.Stock, product.HPP, req.Quantity, req.BuyPrice)

	stockIn := domain.StockIn{
		ProductID:  product.ID,
		SupplierID: supplier.ID,
		Quantity:   req.Quantity,
		BuyPrice:   req.BuyPrice,
		TotalPrice: req.BuyPrice * domain.Money(req.Quantity),
		Date:       now,
		Notes:      strings.TrimSpace(req.Notes),
	}
	entry := domain.CostHistory{
		ProductID: product.ID,
		OldHPP:    product.HPP,
		NewHPP:    newCost,
		Source:    domain.CostSourceStockIn,
		Date:      now,
	}
	updated := product
	updated.Stock = product.Stock + req.Quantity
	updated.HPP = newCost
	updated.UpdatedAt = now

	err = runSteps(ctx, s.logger, "add receipt", []step{
		{
			name: "add stock-in",
			do: func(ctx context.Context) error {
				id, err := s.stockIns.Add(ctx, stockIn)
				stockIn.ID = id
				return err
			},
			undo: func(ctx context.Context) error { return s.stockIns.Delete(ctx, stockIn.ID) },
		},
		{
			name: "append cost history",
			do: func(ctx context.Context) error {
				id, err := s.costHistory.Add(ctx, entry)
				entry.ID = id
				return err
			},
			undo: func(ctx context.Context) error { return s.costHistory.Delete(ctx, entry.ID) },
		},
		{
			name: "update product",
			do:   func(ctx context.Context) error { return s.products.Put(ctx, product.ID, updated) },
			undo: func(ctx context.Context) error { return s.products.Put(ctx, product.ID, product) },
		},
	})
	if err != nil {
		return ReceiptResult{}, err
	}

	s.logger.Info("stock received",
		"product_id", product.ID,
		"quantity", req.Quantity,
		"buy_price", int64(req.BuyPrice),
		"hpp_before", int64(product.HPP),
		"hpp_after", int64(newCost),
	)
	s.publish(ctx, events.StockReceived, now, stockIn)
	return ReceiptResult{StockIn: stockIn, CostHistory: entry, Product: updated}, nil
}

type StockOutRequest struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
}

// RemoveStock writes off stock that left the shelf without a sale. Unit cost
// is unchanged.
func (s *Service) RemoveStock(ctx context.Context, req StockOutRequest) (domain.StockOut, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	reason := strings.TrimSpace(req.Reason)
	if req.Quantity <= 0 {
		return domain.StockOut{}, domain.Invalid("quantity", "must be greater than zero")
	}
	if reason == "" {
		return domain.StockOut{}, domain.Invalid("reason", "must not be empty")
	}

	product, err := lookup(ctx, s.products, "productId", req.ProductID)
	if err != nil {
		return domain.StockOut{}, err
	}
	if req.Quantity > product.Stock {
		return domain.StockOut{}, &domain.ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("only %d %s of %s in stock", product.Stock, product.Unit, product.Name),
			Err:    domain.ErrInsufficientStock,
		}
	}

	now := s.clock()
	out := domain.StockOut{
		ProductID: product.ID,
		Quantity:  req.Quantity,
		Reason:    reason,
		Date:      now,
		Notes:     strings.TrimSpace(req.Notes),
	}
	updated := product
	updated.Stock -= req.Quantity
	updated.UpdatedAt = now

	err = runSteps(ctx, s.logger, "remove stock", []step{
		{
			name: "add stock-out",
			do: func(ctx context.Context) error {
				id, err := s.stockOuts.Add(ctx, out)
				out.ID = id
				return err
			},
			undo: func(ctx context.Context) error { return s.stockOuts.Delete(ctx, out.ID) },
		},
		{
			name: "update product",
			do:   func(ctx context.Context) error { return s.products.Put(ctx, product.ID, updated) },
			undo: func(ctx context.Context) error { return s.products.Put(ctx, product.ID, product) },
		},
	})
	if err != nil {
		return domain.StockOut{}, err
	}

	s.logger.Info("stock removed", "product_id", product.ID, "quantity", req.Quantity, "reason", reason)
	s.publish(ctx, events.StockRemoved, now, out)
	return out, nil
}
