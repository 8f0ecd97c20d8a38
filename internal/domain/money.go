package domain

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in whole rupiah.
type Money int64

// UnmarshalJSON accepts integral and fractional numbers. Fractions come from
// older backups where discounts were computed in floating point; they are
// rounded half away from zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*m = 0
		return nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return fmt.Errorf("invalid money amount %s: %w", raw, err)
	}
	*m = Money(d.Round(0).IntPart())
	return nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m))
}

func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Round(0).IntPart())
}
