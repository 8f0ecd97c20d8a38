package pricing

import "github.com/jipraks/kasirgratisan/internal/domain"

type Line struct {
	ProductID int64
	Price     domain.Money
	HPP       domain.Money
	Quantity  int
	Discount  domain.Discount
}

type LineTotal struct {
	Line
	DiscountAmount domain.Money
	Subtotal       domain.Money
}

type Totals struct {
	Lines          []LineTotal
	Subtotal       domain.Money
	DiscountAmount domain.Money
	Total          domain.Money
	Profit         domain.Money
}

// Compute prices a sale. Profit is gross margin at the captured unit cost
// minus the transaction-level discount; line discounts do not reduce it.
func Compute(lines []Line, discount domain.Discount) Totals {
	out := Totals{Lines: make([]LineTotal, 0, len(lines))}

	var margin domain.Money
	for _, line := range lines {
		subtotal, lineDiscount := LineSubtotal(line.Price, line.Quantity, line.Discount)
		out.Lines = append(out.Lines, LineTotal{Line: line, DiscountAmount: lineDiscount, Subtotal: subtotal})
		out.Subtotal += subtotal
		margin += (line.Price - line.HPP) * domain.Money(line.Quantity)
	}

	out.DiscountAmount = DiscountAmount(out.Subtotal, discount)
	out.Total = max(out.Subtotal-out.DiscountAmount, 0)
	out.Profit = margin - out.DiscountAmount
	return out
}

// Change is what the cashier hands back. ok is false when the payment does
// not cover the total.
func Change(total domain.Money, payment domain.Money) (change domain.Money, ok bool) {
	if payment < total {
		return 0, false
	}
	return payment - total, true
}
