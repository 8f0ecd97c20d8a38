package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountPercentage DiscountType = "percentage"
	DiscountNominal    DiscountType = "nominal"
)

// MarshalJSON writes the absent discount type as null.
func (t DiscountType) MarshalJSON() ([]byte, error) {
	if t == DiscountNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *DiscountType) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = DiscountNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch DiscountType(raw) {
	case DiscountNone, DiscountPercentage, DiscountNominal:
		*t = DiscountType(raw)
		return nil
	}
	return fmt.Errorf("unknown discount type %q", raw)
}

// Discount is either a percentage of an amount or a fixed amount off it.
type Discount struct {
	Type  DiscountType `json:"type"`
	Value float64      `json:"value"`
}

func NoDiscount() Discount {
	return Discount{}
}

func Percentage(value float64) Discount {
	return Discount{Type: DiscountPercentage, Value: value}
}

func Nominal(value float64) Discount {
	return Discount{Type: DiscountNominal, Value: value}
}

func (d Discount) IsZero() bool {
	return d.Type == DiscountNone || d.Value == 0
}

func (d Discount) Validate() error {
	if math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
		return Invalid("discount", "value must be a finite number")
	}
	switch d.Type {
	case DiscountNone:
		return nil
	case DiscountPercentage:
		if d.Value < 0 || d.Value > 100 {
			return Invalid("discount", "percentage must be between 0 and 100")
		}
	case DiscountNominal:
		if d.Value < 0 {
			return Invalid("discount", "amount must not be negative")
		}
	default:
		return Invalid("discount", fmt.Sprintf("unknown type %q", d.Type))
	}
	return nil
}
