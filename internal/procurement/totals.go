package procurement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineInput describes a requested document line.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
}

// Totals holds computed document amounts.
type Totals struct {
	TotalAmount decimal.Decimal
	TaxAmount   decimal.Decimal
	GrandTotal  decimal.Decimal
}

// BuildLines validates inputs and computes per-line amounts.
func BuildLines(inputs []LineInput) ([]Line, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		if in.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i+1)
		}
		if in.UnitPrice.IsNegative() || in.TaxRate.IsNegative() {
			return nil, fmt.Errorf("%w: line %d amounts must not be negative", ErrValidation, i+1)
		}
		amount := in.Quantity.Mul(in.UnitPrice).Round(2)
		lines = append(lines, Line{
			LineNo:      i + 1,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     in.TaxRate,
			Amount:      amount,
			TaxAmount:   amount.Mul(in.TaxRate).Div(hundred).Round(2),
		})
	}
	return lines, nil
}

// ComputeTotals sums line amounts. extraTax is a document level tax added on
// top of the per-line tax.
func ComputeTotals(lines []Line, extraTax decimal.Decimal) (Totals, error) {
	if extraTax.IsNegative() {
		return Totals{}, fmt.Errorf("%w: tax amount must not be negative", ErrValidation)
	}
	total := decimal.Zero
	tax := extraTax
	for _, l := range lines {
		total = total.Add(l.Amount)
		tax = tax.Add(l.TaxAmount)
	}
	total = total.Round(2)
	tax = tax.Round(2)
	return Totals{TotalAmount: total, TaxAmount: tax, GrandTotal: total.Add(tax)}, nil
}
