package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/pricing"
	"github.com/jipraks/kasirgratisan/internal/service"
)

type ReceiveOptions struct {
	*RootOptions
	ProductID  int64
	SupplierID int64
	Quantity   int
	BuyPrice   int64
	Notes      string
}

type receiveResult service.ReceiptResult

func (r receiveResult) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Barang masuk: %s +%d %s (stok %d)\nHPP %s -> %s\n",
		r.Product.Name, r.StockIn.Quantity, r.Product.Unit, r.Product.Stock,
		pricing.FormatRupiah(r.CostHistory.OldHPP), pricing.FormatRupiah(r.CostHistory.NewHPP))
	return err
}

func NewReceiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReceiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Record goods received from a supplier",
		Long: `Record goods received from a supplier. Stock grows by the quantity and the
product's unit cost becomes the weighted average of the stock on hand and
the received goods.

Examples:
  kasir receive --product 3 --supplier 1 --qty 24 --price 12500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.ProductID, "product", 0, "product id")
	cmd.Flags().Int64Var(&opts.SupplierID, "supplier", 0, "supplier id")
	cmd.Flags().IntVar(&opts.Quantity, "qty", 0, "units received")
	cmd.Flags().Int64Var(&opts.BuyPrice, "price", 0, "buy price per unit in rupiah")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form note")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("supplier")
	_ = cmd.MarkFlagRequired("qty")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func runReceive(ctx context.Context, opts *ReceiveOptions, cmd *cobra.Command) error {
	l, err := opts.openLedger(ctx, cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer l.Close()

	result, err := l.svc.AddReceipt(ctx, service.ReceiptRequest{
		ProductID:  opts.ProductID,
		SupplierID: opts.SupplierID,
		Quantity:   opts.Quantity,
		BuyPrice:   domain.Money(opts.BuyPrice),
		Notes:      opts.Notes,
	})
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(receiveResult(result))
}

type StockOutOptions struct {
	*RootOptions
	ProductID int64
	Quantity  int
	Reason    string
	Notes     string
}

type stockOutResult struct {
	StockOut domain.StockOut `json:"stockOut"`
	Product  domain.Product  `json:"product"`
}

func (r stockOutResult) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Barang keluar: %s -%d %s (%s), sisa stok %d\n",
		r.Product.Name, r.StockOut.Quantity, r.Product.Unit, r.StockOut.Reason, r.Product.Stock)
	return err
}

func NewStockOutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StockOutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stock-out",
		Short: "Write off stock outside of a sale",
		Long: fmt.Sprintf(`Write off stock outside of a sale. The unit cost is unchanged.

Common reasons: %q.

Examples:
  kasir stock-out --product 3 --qty 2 --reason Rusak`, domain.StockOutReasons),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStockOut(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.ProductID, "product", 0, "product id")
	cmd.Flags().IntVar(&opts.Quantity, "qty", 0, "units removed")
	cmd.Flags().StringVar(&opts.Reason, "reason", domain.ReasonOther, "why the stock left")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form note")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("qty")

	return cmd
}

func runStockOut(ctx context.Context, opts *StockOutOptions, cmd *cobra.Command) error {
	l, err := opts.openLedger(ctx, cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer l.Close()

	out, err := l.svc.RemoveStock(ctx, service.StockOutRequest{
		ProductID: opts.ProductID,
		Quantity:  opts.Quantity,
		Reason:    opts.Reason,
		Notes:     opts.Notes,
	})
	if err != nil {
		return err
	}
	product, err := l.svc.Product(ctx, out.ProductID)
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(stockOutResult{StockOut: out, Product: product})
}
