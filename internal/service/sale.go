package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/events"
	"github.com/jipraks/kasirgratisan/internal/pricing"
)

type SaleRequest struct {
	PaymentMethodID int64        `json:"paymentMethodId"`
	PaymentAmount   domain.Money `json:"paymentAmount"`
	Remarks         string       `json:"remarks"`
}

// CommitSale turns the cart into a transaction, its line items and the
// matching stock decrements. Each product is read again from the store and
// priced from that read, so a cart that went stale since it was filled is
// rejected rather than driving stock below zero.
func (s *Service) CommitSale(ctx context.Context, cart *Cart, req SaleRequest) (domain.Sale, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	if cart == nil || cart.Len() == 0 {
		return domain.Sale{}, domain.Invalid("cart", "cart is empty")
	}
	if req.PaymentAmount < 0 {
		return domain.Sale{}, domain.Invalid("paymentAmount", "must not be negative")
	}
	discount := cart.Discount()
	if err := discount.Validate(); err != nil {
		return domain.Sale{}, err
	}
	if _, err := lookup(ctx, s.paymentMethods, "paymentMethodId", req.PaymentMethodID); err != nil {
		return domain.Sale{}, err
	}

	cartLines := cart.Lines()
	current := make([]domain.Product, 0, len(cartLines))
	priced := make([]pricing.Line, 0, len(cartLines))
	for _, l := range cartLines {
		p, err := lookup(ctx, s.products, "productId", l.Product.ID)
		if err != nil {
			return domain.Sale{}, err
		}
		if p.Lifecycle.IsDeleted() {
			return domain.Sale{}, inactive("productId", "product", p.ID)
		}
		if p.Stock < l.Quantity {
			return domain.Sale{}, outOfStock(p, l.Quantity)
		}
		current = append(current, p)
		priced = append(priced, pricing.Line{
			ProductID: p.ID,
			Price:     p.Price,
			HPP:       p.HPP,
			Quantity:  l.Quantity,
			Discount:  l.Discount,
		})
	}

	totals := pricing.Compute(priced, discount)
	change, ok := pricing.Change(totals.Total, req.PaymentAmount)
	if !ok {
		return domain.Sale{}, &domain.ValidationError{
			Field:  "paymentAmount",
			Reason: fmt.Sprintf("payment %s does not cover total %s", pricing.FormatRupiah(req.PaymentAmount), pricing.FormatRupiah(totals.Total)),
			Err:    domain.ErrInsufficientPayment,
		}
	}

	now := s.clock()
	tx := domain.Transaction{
		Subtotal:        totals.Subtotal,
		DiscountType:    discount.Type,
		DiscountValue:   discount.Value,
		DiscountAmount:  totals.DiscountAmount,
		Total:           totals.Total,
		PaymentMethodID: req.PaymentMethodID,
		PaymentAmount:   req.PaymentAmount,
		Change:          change,
		Profit:          totals.Profit,
		Date:            now,
		ReceiptNumber:   s.receipts.Next(now),
		Remarks:         strings.TrimSpace(req.Remarks),
	}
	items := make([]domain.TransactionItem, len(totals.Lines))
	for i, lt := range totals.Lines {
		items[i] = domain.TransactionItem{
			ProductID:      lt.ProductID,
			ProductName:    current[i].Name,
			Quantity:       lt.Quantity,
			Price:          lt.Price,
			HPP:            lt.HPP,
			DiscountType:   lt.Discount.Type,
			DiscountValue:  lt.Discount.Value,
			DiscountAmount: lt.DiscountAmount,
			Subtotal:       lt.Subtotal,
		}
	}

	steps := []step{{
		name: "add transaction",
		do: func(ctx context.Context) error {
			id, err := s.transactions.Add(ctx, tx)
			tx.ID = id
			return err
		},
		undo: func(ctx context.Context) error { return s.transactions.Delete(ctx, tx.ID) },
	}}
	for i := range items {
		i := i
		steps = append(steps, step{
			name: fmt.Sprintf("add item %d", i+1),
			do: func(ctx context.Context) error {
				items[i].TransactionID = tx.ID
				id, err := s.items.Add(ctx, items[i])
				items[i].ID = id
				return err
			},
			undo: func(ctx context.Context) error { return s.items.Delete(ctx, items[i].ID) },
		})
	}
	for i, p := range current {
		p := p
		updated := p
		updated.Stock -= items[i].Quantity
		updated.UpdatedAt = now
		steps = append(steps, step{
			name: fmt.Sprintf("decrement stock of product %d", p.ID),
			do:   func(ctx context.Context) error { return s.products.Put(ctx, p.ID, updated) },
			undo: func(ctx context.Context) error { return s.products.Put(ctx, p.ID, p) },
		})
	}

	if err := runSteps(ctx, s.logger, "commit sale", steps); err != nil {
		return domain.Sale{}, err
	}

	sale := domain.Sale{Transaction: tx, Items: items}
	s.logger.Info("sale committed",
		"receipt", tx.ReceiptNumber,
		"lines", len(items),
		"total", int64(tx.Total),
		"profit", int64(tx.Profit),
	)
	s.publish(ctx, events.SaleCommitted, now, sale)
	return sale, nil
}
