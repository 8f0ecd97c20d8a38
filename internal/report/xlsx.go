package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Ringkasan"
	dailySheet   = "Harian"
	productSheet = "Produk Terlaris"
	paymentSheet = "Pembayaran"
)

// WriteXLSX writes the summary as a workbook with one sheet per section.
func WriteXLSX(w io.Writer, s Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	summaryRows := [][]any{
		{"Periode (hari)", s.Days},
		{"Sejak", s.From.Format("2006-01-02")},
		{"Transaksi", s.Transactions},
		{"Penjualan", int64(s.Sales)},
		{"Pendapatan kotor", int64(s.Revenue)},
		{"Diskon", int64(s.Discount)},
		{"Penjualan bersih", int64(s.NetSales)},
		{"HPP", int64(s.HPP)},
		{"Laba kotor", int64(s.GrossProfit)},
		{"Laba tercatat", int64(s.Profit)},
		{"Margin (%)", s.MarginPercent},
	}
	dailyRows := make([][]any, 0, len(s.Daily))
	for _, d := range s.Daily {
		dailyRows = append(dailyRows, []any{d.Date, int64(d.Sales)})
	}
	productRows := make([][]any, 0, len(s.TopProducts))
	for _, p := range s.TopProducts {
		productRows = append(productRows, []any{p.Name, p.Quantity, int64(p.Revenue), int64(p.Profit)})
	}
	paymentRows := make([][]any, 0, len(s.ByPayment))
	for _, p := range s.ByPayment {
		paymentRows = append(paymentRows, []any{p.Name, p.Count, int64(p.Total)})
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]any
		widths []float64
	}{
		{summarySheet, []string{"Keterangan", "Nilai"}, summaryRows, []float64{22, 18}},
		{dailySheet, []string{"Tanggal", "Penjualan"}, dailyRows, []float64{14, 16}},
		{productSheet, []string{"Produk", "Qty", "Pendapatan", "Laba"}, productRows, []float64{28, 8, 16, 16}},
		{paymentSheet, []string{"Metode", "Transaksi", "Total"}, paymentRows, []float64{20, 12, 16}},
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return err
		}
		for c, v := range sh.header {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			_ = f.SetCellValue(sh.name, cell, v)
		}
		last, _ := excelize.CoordinatesToCellName(len(sh.header), 1)
		if err := f.SetCellStyle(sh.name, "A1", last, bold); err != nil {
			return err
		}
		for r, row := range sh.rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				_ = f.SetCellValue(sh.name, cell, v)
			}
		}
		for c, width := range sh.widths {
			col, _ := excelize.ColumnNumberToName(c + 1)
			_ = f.SetColWidth(sh.name, col, col, width)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
