package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/pricing"
)

type ProductsOptions struct {
	*RootOptions
	Query     string
	LowStock  bool
	Threshold int
}

type productList []domain.Product

func (l productList) renderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "Tidak ada produk")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSKU\tNAMA\tHARGA\tHPP\tSTOK")
	for _, p := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d %s\n", p.ID, p.SKU, p.Name, pricing.FormatRupiah(p.Price), pricing.FormatRupiah(p.HPP), p.Stock, p.Unit)
	}
	return tw.Flush()
}

func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List active products",
		Long: `List active products with their price, unit cost and stock.

Examples:
  kasir products
  kasir products --query kopi
  kasir products --low-stock --threshold 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducts(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "match name, SKU or barcode")
	cmd.Flags().BoolVar(&opts.LowStock, "low-stock", false, "only products at or below the low-stock threshold")
	cmd.Flags().IntVar(&opts.Threshold, "threshold", 0, "low-stock threshold (default from LOW_STOCK_THRESHOLD)")

	return cmd
}

func runProducts(ctx context.Context, opts *ProductsOptions, cmd *cobra.Command) error {
	l, err := opts.openLedger(ctx, cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer l.Close()

	var products []domain.Product
	if opts.LowStock {
		products, err = l.svc.LowStock(ctx, opts.Threshold)
	} else {
		products, err = l.svc.SearchProducts(ctx, opts.Query)
	}
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(productList(products))
}
