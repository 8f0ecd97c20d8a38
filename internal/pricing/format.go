package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jipraks/kasirgratisan/internal/domain"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount the way receipts show it, e.g. "Rp 40.000".
func FormatRupiah(m domain.Money) string {
	if m < 0 {
		return idPrinter.Sprintf("-Rp %d", -int64(m))
	}
	return idPrinter.Sprintf("Rp %d", int64(m))
}
