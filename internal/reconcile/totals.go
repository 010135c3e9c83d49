package reconcile

import (
	"fmt"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultTaxRateBps is the sales tax applied to non-exempt invoices,
// expressed in basis points (800 = 8.00%).
const DefaultTaxRateBps = 800

// Discount is the tagged discount variant configured on an invoice.
// PercentBps is basis points (1000 = 10%); FixedCents is an absolute amount
// clamped to the subtotal so a discount can never push totals negative.
type Discount struct {
	Type       enums.DiscountType
	PercentBps int64
	FixedCents int64
}

// NoDiscount is the zero discount.
var NoDiscount = Discount{Type: enums.DiscountTypeNone}

// Totals holds the derived money fields of an invoice.
type Totals struct {
	SubtotalCents int64
	DiscountCents int64
	TaxCents      int64
	TotalCents    int64
}

// ComputeTotals derives invoice totals from its line items:
//
//	subtotal = Σ total_price_cents
//	discount = pct(subtotal) or min(fixed, subtotal)
//	tax      = round((subtotal - discount) * rate)  (0 when exempt)
//	total    = subtotal - discount + tax
//
// Rounding is half away from zero on the discount and tax derivations.
func ComputeTotals(items []models.InvoiceLineItem, d Discount, taxRateBps int64, taxExempt bool) (Totals, error) {
	if taxRateBps < 0 {
		return Totals{}, errors.New(errors.CodeValidation, fmt.Sprintf("tax rate must not be negative, got %d bps", taxRateBps))
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.TotalPriceCents
	}
	if subtotal < 0 {
		return Totals{}, errors.New(errors.CodeValidation, "line items sum to a negative subtotal")
	}

	discount, err := discountCents(subtotal, d)
	if err != nil {
		return Totals{}, err
	}

	taxable := subtotal - discount
	var tax int64
	if !taxExempt && taxable > 0 {
		tax = decimal.NewFromInt(taxable).
			Mul(decimal.NewFromInt(taxRateBps)).
			Div(decimal.NewFromInt(10000)).
			Round(0).
			IntPart()
	}

	return Totals{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		TaxCents:      tax,
		TotalCents:    taxable + tax,
	}, nil
}

func discountCents(subtotalCents int64, d Discount) (int64, error) {
	switch d.Type {
	case enums.DiscountTypeNone, "":
		return 0, nil
	case enums.DiscountTypePercentage:
		if d.PercentBps < 0 || d.PercentBps > 10000 {
			return 0, errors.New(errors.CodeValidation, fmt.Sprintf("discount percent out of range: %d bps", d.PercentBps))
		}
		return decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(d.PercentBps)).
			Div(decimal.NewFromInt(10000)).
			Round(0).
			IntPart(), nil
	case enums.DiscountTypeFixed:
		if d.FixedCents < 0 {
			return 0, errors.New(errors.CodeValidation, fmt.Sprintf("fixed discount must not be negative: %d", d.FixedCents))
		}
		if d.FixedCents > subtotalCents {
			return subtotalCents, nil
		}
		return d.FixedCents, nil
	default:
		return 0, errors.New(errors.CodeValidation, fmt.Sprintf("invalid discount type %q", d.Type))
	}
}

// DiscountFromInvoice reads the discount configuration stored on an invoice.
func DiscountFromInvoice(inv *models.Invoice) Discount {
	if inv == nil {
		return NoDiscount
	}
	return Discount{
		Type:       inv.DiscountType,
		PercentBps: inv.DiscountPercentBps,
		FixedCents: inv.DiscountFixedCents,
	}
}
