// Package pricing holds the money arithmetic of the ledger: weighted-average
// unit cost, line and transaction discounts, and sale totals. Every result is
// rounded to whole rupiah, half away from zero.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jipraks/kasirgratisan/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// WeightedAverageCost blends the current unit cost of stock on hand with an
// incoming receipt: round((stock*cost + qty*buyPrice) / (stock+qty)). With
// nothing on hand and nothing received the buy price is the new cost.
func WeightedAverageCost(stock int, cost domain.Money, qty int, buyPrice domain.Money) domain.Money {
	units := int64(stock) + int64(qty)
	if units <= 0 {
		return buyPrice
	}
	onHand := decimal.NewFromInt(int64(stock)).Mul(cost.Decimal())
	incoming := decimal.NewFromInt(int64(qty)).Mul(buyPrice.Decimal())
	return domain.MoneyFromDecimal(onHand.Add(incoming).Div(decimal.NewFromInt(units)))
}

// LineSubtotal applies a line discount to price*qty. The subtotal never drops
// below zero; discountAmount is whatever the discount actually took off.
func LineSubtotal(price domain.Money, qty int, d domain.Discount) (subtotal domain.Money, discountAmount domain.Money) {
	base := price.Decimal().Mul(decimal.NewFromInt(int64(qty)))
	value := decimal.NewFromFloat(d.Value)

	net := base
	switch d.Type {
	case domain.DiscountPercentage:
		net = base.Mul(decimal.NewFromInt(1).Sub(value.Div(hundred)))
	case domain.DiscountNominal:
		net = base.Sub(value)
	}
	if net.IsNegative() {
		net = decimal.Zero
	}

	subtotal = domain.MoneyFromDecimal(net)
	return subtotal, domain.MoneyFromDecimal(base) - subtotal
}

// DiscountAmount is the transaction-level discount taken off subtotal,
// clamped to [0, subtotal].
func DiscountAmount(subtotal domain.Money, d domain.Discount) domain.Money {
	value := decimal.NewFromFloat(d.Value)

	var amount domain.Money
	switch d.Type {
	case domain.DiscountPercentage:
		amount = domain.MoneyFromDecimal(subtotal.Decimal().Mul(value).Div(hundred))
	case domain.DiscountNominal:
		amount = domain.MoneyFromDecimal(value)
	}
	if amount < 0 {
		amount = 0
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}
