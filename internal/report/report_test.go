package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jipraks/kasirgratisan/internal/domain"
)

var now = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return time.Date(2026, 10, day, hour, 0, 0, 0, time.UTC)
}

func fixture() ([]domain.Sale, []domain.PaymentMethod) {
	mie := func(txID int64) domain.TransactionItem {
		return domain.TransactionItem{TransactionID: txID, ProductID: 1, ProductName: "Indomie Goreng", Quantity: 2, Price: 3500, HPP: 2700, Subtotal: 7000}
	}
	sales := []domain.Sale{
		{
			Transaction: domain.Transaction{ID: 1, Subtotal: 30850, DiscountAmount: 850, Total: 30000, Profit: 4250, PaymentMethodID: 1, Date: at(15, 8)},
			Items: []domain.TransactionItem{
				mie(1),
				{TransactionID: 1, ProductID: 2, ProductName: "Telur 1kg", Quantity: 1, Price: 26500, HPP: 23000, DiscountAmount: 2650, Subtotal: 23850},
			},
		},
		{
			Transaction: domain.Transaction{ID: 2, Subtotal: 7000, Total: 7000, Profit: 1600, PaymentMethodID: 3, Date: at(14, 12)},
			Items:       []domain.TransactionItem{mie(2)},
		},
		{
			Transaction: domain.Transaction{ID: 3, Subtotal: 99000, Total: 99000, Profit: 9000, PaymentMethodID: 1, Date: at(1, 10)},
			Items:       []domain.TransactionItem{{ProductName: "Lama", Quantity: 1, Price: 99000, HPP: 90000, Subtotal: 99000}},
		},
	}
	methods := []domain.PaymentMethod{{ID: 1, Name: "Tunai"}, {ID: 3, Name: "QRIS"}}
	return sales, methods
}

func TestPeriodStart(t *testing.T) {
	p := Period{Days: 7, Now: now, Location: time.UTC}
	assert.True(t, p.Start().Equal(time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC)))

	p = Period{Now: now, Location: time.UTC}
	assert.True(t, p.Start().Equal(time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC)), "zero days falls back to a week")
}

func TestSummarize(t *testing.T) {
	sales, methods := fixture()
	s := Summarize(Period{Days: 7, Now: now, Location: time.UTC}, sales, methods)

	assert.Equal(t, 2, s.Transactions)
	assert.Equal(t, domain.Money(37000), s.Sales)
	assert.Equal(t, domain.Money(5850), s.Profit)
	assert.Equal(t, domain.Money(37850), s.Revenue)
	assert.Equal(t, domain.Money(850), s.Discount)
	assert.Equal(t, domain.Money(33800), s.HPP)
	assert.Equal(t, domain.Money(37000), s.NetSales)
	assert.Equal(t, domain.Money(3200), s.GrossProfit)
	assert.InDelta(t, 8.648, s.MarginPercent, 0.001)

	require.Len(t, s.Daily, 7)
	assert.Equal(t, "2026-10-09", s.Daily[0].Date)
	assert.Equal(t, DailySales{Date: "2026-10-14", Sales: 7000}, s.Daily[5])
	assert.Equal(t, DailySales{Date: "2026-10-15", Sales: 30000}, s.Daily[6])

	assert.Equal(t, []ProductSales{
		{Name: "Telur 1kg", Quantity: 1, Revenue: 23850, Profit: 850},
		{Name: "Indomie Goreng", Quantity: 4, Revenue: 14000, Profit: 3200},
	}, s.TopProducts)

	assert.Equal(t, []PaymentTotal{
		{PaymentMethodID: 1, Name: "Tunai", Count: 1, Total: 30000},
		{PaymentMethodID: 3, Name: "QRIS", Count: 1, Total: 7000},
	}, s.ByPayment)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(Period{Days: 30, Now: now, Location: time.UTC}, nil, nil)

	assert.Zero(t, s.Transactions)
	assert.Zero(t, s.MarginPercent)
	assert.Len(t, s.Daily, 30)
	assert.Empty(t, s.TopProducts)
	assert.Empty(t, s.ByPayment)
}

func TestSummarizeKeepsTopFive(t *testing.T) {
	var items []domain.TransactionItem
	for i, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		items = append(items, domain.TransactionItem{ProductName: name, Quantity: 1, Price: domain.Money(1000 * (i + 1)), Subtotal: domain.Money(1000 * (i + 1))})
	}
	sales := []domain.Sale{{Transaction: domain.Transaction{ID: 1, Date: at(15, 8), PaymentMethodID: 9}, Items: items}}

	s := Summarize(Period{Days: 7, Now: now, Location: time.UTC}, sales, nil)

	require.Len(t, s.TopProducts, 5)
	assert.Equal(t, "G", s.TopProducts[0].Name)
	assert.Equal(t, "C", s.TopProducts[4].Name)
	assert.Equal(t, "#9", s.ByPayment[0].Name)
}

func TestWriteText(t *testing.T) {
	sales, methods := fixture()
	s := Summarize(Period{Days: 7, Now: now, Location: time.UTC}, sales, methods)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, s))

	out := buf.String()
	assert.Contains(t, out, "Laporan 7 hari sejak 2026-10-08 (2 transaksi)")
	assert.Contains(t, out, "Rp 37.000")
	assert.Contains(t, out, "8.6%")
	assert.Contains(t, out, "1. Telur 1kg x1 Rp 23.850")
}

func TestWriteXLSX(t *testing.T) {
	sales, methods := fixture()
	s := Summarize(Period{Days: 7, Now: now, Location: time.UTC}, sales, methods)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, s))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, dailySheet, productSheet, paymentSheet}, f.GetSheetList())

	v, err := f.GetCellValue(summarySheet, "B5")
	require.NoError(t, err)
	assert.Equal(t, "37000", v)

	v, err = f.GetCellValue(productSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Telur 1kg", v)

	rows, err := f.GetRows(dailySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 8)
}
