package invoices

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts in one currency with locale digit grouping.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewFormatter returns a Formatter for an ISO 4217 code such as "INR".
func NewFormatter(code string) (*Formatter, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", code, err)
	}
	return &Formatter{unit: unit, printer: message.NewPrinter(language.English)}, nil
}

// Code is the ISO code of the formatter's currency.
func (f *Formatter) Code() string {
	return f.unit.String()
}

// FormatAmount renders amount as symbol plus grouped value with two
// decimals, e.g. "₹900,000.00".
func (f *Formatter) FormatAmount(amount decimal.Decimal) string {
	symbol := f.printer.Sprint(currency.Symbol(f.unit))
	value, _ := amount.Round(2).Float64()
	return symbol + f.printer.Sprintf("%.2f", value)
}
