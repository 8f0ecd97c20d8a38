// Package report aggregates committed sales for the reports screen and the
// spreadsheet export.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/pricing"
)

// Period is the last Days calendar days up to and including Now's day.
type Period struct {
	Days     int
	Now      time.Time
	Location *time.Location
}

func (p Period) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p Period) days() int {
	if p.Days < 1 {
		return 7
	}
	return p.Days
}

// Start is midnight Days days before Now, so a 7-day period spans eight
// calendar dates of data the way the reports screen counts it.
func (p Period) Start() time.Time {
	now := p.Now.In(p.loc())
	y, m, d := now.AddDate(0, 0, -p.days()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc())
}

type DailySales struct {
	Date  string       `json:"date"`
	Sales domain.Money `json:"sales"`
}

type ProductSales struct {
	Name     string       `json:"name"`
	Quantity int          `json:"quantity"`
	Revenue  domain.Money `json:"revenue"`
	Profit   domain.Money `json:"profit"`
}

type PaymentTotal struct {
	PaymentMethodID int64        `json:"paymentMethodId"`
	Name            string       `json:"name"`
	Count           int          `json:"count"`
	Total           domain.Money `json:"total"`
}

type Summary struct {
	From          time.Time      `json:"from"`
	Days          int            `json:"days"`
	Transactions  int            `json:"transactions"`
	Sales         domain.Money   `json:"sales"`
	Profit        domain.Money   `json:"profit"`
	Revenue       domain.Money   `json:"revenue"`
	Discount      domain.Money   `json:"discount"`
	HPP           domain.Money   `json:"hpp"`
	NetSales      domain.Money   `json:"netSales"`
	GrossProfit   domain.Money   `json:"grossProfit"`
	MarginPercent float64        `json:"marginPercent"`
	Daily         []DailySales   `json:"daily"`
	TopProducts   []ProductSales `json:"topProducts"`
	ByPayment     []PaymentTotal `json:"byPayment"`
}

const topProducts = 5

// Summarize aggregates the sales dated on or after p.Start(). Products are
// grouped by the name captured at sale time.
func Summarize(p Period, sales []domain.Sale, methods []domain.PaymentMethod) Summary {
	start := p.Start()
	s := Summary{From: start, Days: p.days()}

	daily := make(map[string]domain.Money, p.days())
	for i := p.days() - 1; i >= 0; i-- {
		key := p.Now.In(p.loc()).AddDate(0, 0, -i).Format("2006-01-02")
		s.Daily = append(s.Daily, DailySales{Date: key})
		daily[key] = 0
	}

	names := make(map[int64]string, len(methods))
	for _, m := range methods {
		names[m.ID] = m.Name
	}
	byProduct := map[string]*ProductSales{}
	byPayment := map[int64]*PaymentTotal{}

	for _, sale := range sales {
		tx := sale.Transaction
		if tx.Date.Before(start) {
			continue
		}
		s.Transactions++
		s.Sales += tx.Total
		s.Profit += tx.Profit
		s.Revenue += tx.Subtotal
		s.Discount += tx.DiscountAmount

		key := tx.Date.In(p.loc()).Format("2006-01-02")
		if _, ok := daily[key]; ok {
			daily[key] += tx.Total
		}

		pt := byPayment[tx.PaymentMethodID]
		if pt == nil {
			name, ok := names[tx.PaymentMethodID]
			if !ok {
				name = fmt.Sprintf("#%d", tx.PaymentMethodID)
			}
			pt = &PaymentTotal{PaymentMethodID: tx.PaymentMethodID, Name: name}
			byPayment[tx.PaymentMethodID] = pt
		}
		pt.Count++
		pt.Total += tx.Total

		for _, item := range sale.Items {
			qty := domain.Money(item.Quantity)
			s.HPP += item.HPP * qty

			ps := byProduct[item.ProductName]
			if ps == nil {
				ps = &ProductSales{Name: item.ProductName}
				byProduct[item.ProductName] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue += item.Subtotal
			ps.Profit += (item.Price-item.HPP)*qty - item.DiscountAmount
		}
	}

	for i := range s.Daily {
		s.Daily[i].Sales = daily[s.Daily[i].Date]
	}

	s.NetSales = s.Revenue - s.Discount
	s.GrossProfit = s.NetSales - s.HPP
	if s.NetSales > 0 {
		s.MarginPercent = float64(s.GrossProfit) / float64(s.NetSales) * 100
	}

	s.TopProducts = make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		s.TopProducts = append(s.TopProducts, *ps)
	}
	slices.SortFunc(s.TopProducts, func(a, b ProductSales) int {
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(s.TopProducts) > topProducts {
		s.TopProducts = s.TopProducts[:topProducts]
	}

	s.ByPayment = make([]PaymentTotal, 0, len(byPayment))
	for _, pt := range byPayment {
		s.ByPayment = append(s.ByPayment, *pt)
	}
	slices.SortFunc(s.ByPayment, func(a, b PaymentTotal) int { return cmp.Compare(a.PaymentMethodID, b.PaymentMethodID) })
	return s
}

// WriteText prints the summary for a terminal.
func WriteText(w io.Writer, s Summary) error {
	lines := []struct {
		label string
		value domain.Money
	}{
		{"Penjualan", s.Sales},
		{"Pendapatan kotor", s.Revenue},
		{"Diskon", s.Discount},
		{"Penjualan bersih", s.NetSales},
		{"HPP", s.HPP},
		{"Laba kotor", s.GrossProfit},
		{"Laba tercatat", s.Profit},
	}
	if _, err := fmt.Fprintf(w, "Laporan %d hari sejak %s (%d transaksi)\n", s.Days, s.From.Format("2006-01-02"), s.Transactions); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "  %-18s %s\n", l.label, pricing.FormatRupiah(l.value)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "  %-18s %.1f%%\n", "Margin", s.MarginPercent); err != nil {
		return err
	}
	for i, ps := range s.TopProducts {
		if _, err := fmt.Fprintf(w, "  %d. %s x%d %s\n", i+1, ps.Name, ps.Quantity, pricing.FormatRupiah(ps.Revenue)); err != nil {
			return err
		}
	}
	return nil
}
