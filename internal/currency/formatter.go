package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts for human-readable messages.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
	scale   int32
}

// New returns a Formatter for an ISO 4217 currency code and a BCP 47 locale.
func New(code, locale string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{unit: unit, printer: message.NewPrinter(tag), scale: int32(scale)}, nil
}

// Format renders d with the currency symbol of the formatter's locale. The
// digits come from d itself, rounded to the currency's minor unit.
func (f *Formatter) Format(d decimal.Decimal) string {
	symbol := f.printer.Sprint(currency.Symbol(f.unit))
	return symbol + " " + d.StringFixed(f.scale)
}
