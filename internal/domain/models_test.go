package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductLifecycleWireShape(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := Product{ID: 7, Name: "Kopi Sachet", Price: 2600, Stock: 3, Lifecycle: Deleted(at)}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, true, fields["isDeleted"])
	assert.Equal(t, "2026-03-01T10:00:00Z", fields["deletedAt"])
	assert.NotContains(t, fields, "Lifecycle")

	var back Product
	require.NoError(t, json.Unmarshal(raw, &back))
	got, deleted := back.Lifecycle.DeletedAt()
	assert.True(t, deleted)
	assert.True(t, got.Equal(at))
	assert.Equal(t, "Kopi Sachet", back.Name)
	assert.Equal(t, int64(7), back.ID)
}

func TestActiveLifecycleWritesNullTimestamp(t *testing.T) {
	raw, err := json.Marshal(Category{Name: "Minuman"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"isDeleted":false`)
	assert.Contains(t, string(raw), `"deletedAt":null`)
}

func TestLifecycleFlagWithoutTimestampStaysDeleted(t *testing.T) {
	var s Supplier
	require.NoError(t, json.Unmarshal([]byte(`{"name":"CV Maju","isDeleted":true,"deletedAt":null}`), &s))
	assert.True(t, s.Lifecycle.IsDeleted())

	require.NoError(t, json.Unmarshal([]byte(`{"name":"CV Maju"}`), &s))
	assert.False(t, s.Lifecycle.IsDeleted())
}

func TestMoneyRoundsFractionalAmounts(t *testing.T) {
	cases := map[string]Money{
		`1000`:    1000,
		`1249.5`:  1250,
		`1249.49`: 1249,
		`-2.5`:    -3,
		`null`:    0,
	}
	for input, want := range cases {
		var m Money
		require.NoError(t, json.Unmarshal([]byte(input), &m), input)
		assert.Equal(t, want, m, input)
	}

	var m Money
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestDiscountTypeNullRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Transaction{Total: 5000})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"discountType":null`)

	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"discountType":"percentage","discountValue":12.5}`), &tx))
	assert.Equal(t, Percentage(12.5), tx.Discount())

	assert.Error(t, json.Unmarshal([]byte(`{"discountType":"bogo"}`), &tx))
}

func TestDiscountValidate(t *testing.T) {
	assert.NoError(t, NoDiscount().Validate())
	assert.NoError(t, Percentage(100).Validate())
	assert.NoError(t, Nominal(0).Validate())

	err := Percentage(120).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Error(t, Nominal(-1).Validate())

	for _, d := range []Discount{Nominal(math.NaN()), Nominal(math.Inf(1)), Percentage(math.NaN()), Percentage(math.Inf(-1))} {
		assert.ErrorIs(t, d.Validate(), ErrValidation, "%+v", d)
	}
}

func TestValidationErrorWrapsCause(t *testing.T) {
	err := error(InvalidBecause("quantity", ErrInsufficientStock))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "quantity: insufficient stock", err.Error())
}
