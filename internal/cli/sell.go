package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/pricing"
	"github.com/jipraks/kasirgratisan/internal/service"
)

type SellOptions struct {
	*RootOptions
	Items           []string
	Discount        string
	PaymentMethodID int64
	Pay             int64
	Remarks         string
}

type receipt domain.Sale

func (r receipt) renderText(w io.Writer) error {
	tx := r.Transaction
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\t%s\t\n", tx.ReceiptNumber, tx.Date.Format("02/01/2006 15:04"))
	for _, it := range r.Items {
		fmt.Fprintf(tw, "%s x%d\t%s\t\n", it.ProductName, it.Quantity, pricing.FormatRupiah(it.Subtotal))
		if it.DiscountAmount > 0 {
			fmt.Fprintf(tw, "  diskon\t-%s\t\n", pricing.FormatRupiah(it.DiscountAmount))
		}
	}
	fmt.Fprintf(tw, "Subtotal\t%s\t\n", pricing.FormatRupiah(tx.Subtotal))
	if tx.DiscountAmount > 0 {
		fmt.Fprintf(tw, "Diskon\t-%s\t\n", pricing.FormatRupiah(tx.DiscountAmount))
	}
	fmt.Fprintf(tw, "Total\t%s\t\n", pricing.FormatRupiah(tx.Total))
	fmt.Fprintf(tw, "Bayar\t%s\t\n", pricing.FormatRupiah(tx.PaymentAmount))
	fmt.Fprintf(tw, "Kembali\t%s\t\n", pricing.FormatRupiah(tx.Change))
	return tw.Flush()
}

func NewSellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Record a sale",
		Long: `Record a sale. Each --item is PRODUCT[:QTY[:DISCOUNT]]; a discount ending
in % is a percentage, anything else is an amount in rupiah. Without --pay the
customer pays the exact total; without --method the default payment method
is used.

Examples:
  kasir sell --item 1:2 --item 2:1:10%
  kasir sell --item 6:3 --discount 500 --pay 10000 --remarks "meja 4"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSell(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Items, "item", "i", nil, "PRODUCT[:QTY[:DISCOUNT]], repeatable")
	cmd.Flags().StringVar(&opts.Discount, "discount", "", "discount on the whole sale (10% or 5000)")
	cmd.Flags().Int64Var(&opts.PaymentMethodID, "method", 0, "payment method id")
	cmd.Flags().Int64Var(&opts.Pay, "pay", 0, "amount paid in rupiah")
	cmd.Flags().StringVar(&opts.Remarks, "remarks", "", "note printed on the receipt")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func runSell(ctx context.Context, opts *SellOptions, cmd *cobra.Command) error {
	lines := make([]service.LineRequest, 0, len(opts.Items))
	for _, raw := range opts.Items {
		line, err := parseItem(raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --item", err)
		}
		lines = append(lines, line)
	}
	discount, err := parseDiscount(opts.Discount)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --discount", err)
	}

	l, err := opts.openLedger(ctx, cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer l.Close()

	cart, err := l.svc.FillCart(ctx, lines, discount)
	if err != nil {
		return err
	}

	methodID := opts.PaymentMethodID
	if methodID == 0 {
		if methodID, err = defaultPaymentMethod(ctx, l.svc); err != nil {
			return err
		}
	}
	pay := domain.Money(opts.Pay)
	if pay == 0 {
		pay = cart.Totals().Total
	}

	sale, err := l.svc.CommitSale(ctx, cart, service.SaleRequest{
		PaymentMethodID: methodID,
		PaymentAmount:   pay,
		Remarks:         opts.Remarks,
	})
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(receipt(sale))
}

func defaultPaymentMethod(ctx context.Context, svc *service.Service) (int64, error) {
	methods, err := svc.PaymentMethods(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range methods {
		if m.IsDefault {
			return m.ID, nil
		}
	}
	if len(methods) == 0 {
		return 0, domain.Invalid("paymentMethodId", "no payment method configured")
	}
	return methods[0].ID, nil
}

func parseItem(raw string) (service.LineRequest, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) > 3 {
		return service.LineRequest{}, fmt.Errorf("%q: want PRODUCT[:QTY[:DISCOUNT]]", raw)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id < 1 {
		return service.LineRequest{}, fmt.Errorf("%q: bad product id", raw)
	}
	line := service.LineRequest{ProductID: id, Quantity: 1}
	if len(parts) > 1 {
		if line.Quantity, err = strconv.Atoi(parts[1]); err != nil {
			return service.LineRequest{}, fmt.Errorf("%q: bad quantity", raw)
		}
	}
	if len(parts) > 2 {
		if line.Discount, err = parseDiscount(parts[2]); err != nil {
			return service.LineRequest{}, fmt.Errorf("%q: %w", raw, err)
		}
	}
	return line, nil
}

// parseDiscount reads "10%" as a percentage and "5000" as an amount.
func parseDiscount(raw string) (domain.Discount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.NoDiscount(), nil
	}
	var d domain.Discount
	if pct, ok := strings.CutSuffix(raw, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return d, fmt.Errorf("bad percentage %q", raw)
		}
		d = domain.Percentage(v)
	} else {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return d, fmt.Errorf("bad amount %q", raw)
		}
		d = domain.Nominal(v)
	}
	return d, d.Validate()
}
