package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/pricing"
)

// CartLine is one product in the cart, priced from the product as it was
// when it was added.
type CartLine struct {
	Product  domain.Product  `json:"product"`
	Quantity int             `json:"quantity"`
	Discount domain.Discount `json:"discount"`
}

// Cart is the cashier's in-progress sale. It is never persisted and is not
// safe for concurrent use.
type Cart struct {
	lines    []CartLine
	discount domain.Discount
}

func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) index(productID int64) int {
	return slices.IndexFunc(c.lines, func(l CartLine) bool { return l.Product.ID == productID })
}

// Add puts one more unit of p in the cart.
func (c *Cart) Add(p domain.Product) error {
	if p.Lifecycle.IsDeleted() {
		return inactive("productId", "product", p.ID)
	}
	i := c.index(p.ID)
	if i < 0 {
		if p.Stock < 1 {
			return outOfStock(p, 1)
		}
		c.lines = append(c.lines, CartLine{Product: p, Quantity: 1})
		return nil
	}
	if c.lines[i].Quantity+1 > p.Stock {
		return outOfStock(p, c.lines[i].Quantity+1)
	}
	c.lines[i].Product = p
	c.lines[i].Quantity++
	return nil
}

func (c *Cart) SetQuantity(productID int64, qty int) error {
	i := c.index(productID)
	if i < 0 {
		return domain.Invalid("productId", fmt.Sprintf("product %d is not in the cart", productID))
	}
	if qty < 1 {
		return domain.Invalid("quantity", "must be at least 1")
	}
	if qty > c.lines[i].Product.Stock {
		return outOfStock(c.lines[i].Product, qty)
	}
	c.lines[i].Quantity = qty
	return nil
}

func (c *Cart) Remove(productID int64) {
	if i := c.index(productID); i >= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
	}
}

func (c *Cart) SetLineDiscount(productID int64, d domain.Discount) error {
	i := c.index(productID)
	if i < 0 {
		return domain.Invalid("productId", fmt.Sprintf("product %d is not in the cart", productID))
	}
	if err := d.Validate(); err != nil {
		return err
	}
	c.lines[i].Discount = d
	return nil
}

// SetDiscount sets the discount applied to the whole sale.
func (c *Cart) SetDiscount(d domain.Discount) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c.discount = d
	return nil
}

func (c *Cart) Discount() domain.Discount {
	return c.discount
}

func (c *Cart) Lines() []CartLine {
	return slices.Clone(c.lines)
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Totals prices the cart from its product snapshots.
func (c *Cart) Totals() pricing.Totals {
	lines := make([]pricing.Line, 0, len(c.lines))
	for _, l := range c.lines {
		lines = append(lines, pricing.Line{
			ProductID: l.Product.ID,
			Price:     l.Product.Price,
			HPP:       l.Product.HPP,
			Quantity:  l.Quantity,
			Discount:  l.Discount,
		})
	}
	return pricing.Compute(lines, c.discount)
}

// LineRequest asks for quantity units of one product in a sale built
// without the interactive cart.
type LineRequest struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Discount  domain.Discount `json:"discount"`
}

// FillCart builds a cart from line requests against the current catalog.
// Repeated product ids add up.
func (s *Service) FillCart(ctx context.Context, lines []LineRequest, discount domain.Discount) (*Cart, error) {
	cart := NewCart()
	for i, l := range lines {
		if l.Quantity < 1 {
			return nil, domain.Invalid(fmt.Sprintf("lines[%d].quantity", i), "must be at least 1")
		}
		p, err := lookup(ctx, s.products, fmt.Sprintf("lines[%d].productId", i), l.ProductID)
		if err != nil {
			return nil, err
		}
		if err := cart.Add(p); err != nil {
			return nil, err
		}
		qty := l.Quantity
		if j := cart.index(p.ID); cart.lines[j].Quantity > 1 {
			qty += cart.lines[j].Quantity - 1
		}
		if err := cart.SetQuantity(p.ID, qty); err != nil {
			return nil, err
		}
		if l.Discount.Type != domain.DiscountNone {
			if err := cart.SetLineDiscount(p.ID, l.Discount); err != nil {
				return nil, err
			}
		}
	}
	if err := cart.SetDiscount(discount); err != nil {
		return nil, err
	}
	return cart, nil
}

func outOfStock(p domain.Product, want int) error {
	return &domain.ValidationError{
		Field:  "quantity",
		Reason: fmt.Sprintf("%s: wanted %d, only %d in stock", p.Name, want, p.Stock),
		Err:    domain.ErrInsufficientStock,
	}
}
