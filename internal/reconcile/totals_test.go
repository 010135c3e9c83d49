package reconcile

import (
	"testing"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/errors"
)

func items(amounts ...int64) []models.InvoiceLineItem {
	out := make([]models.InvoiceLineItem, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, models.InvoiceLineItem{
			Title:           "item",
			Category:        enums.LineItemCategoryCustom,
			Quantity:        1,
			UnitPriceCents:  a,
			TotalPriceCents: a,
		})
	}
	return out
}

func TestComputeTotals_NoDiscount(t *testing.T) {
	got, err := ComputeTotals(items(60000, 40000), NoDiscount, DefaultTaxRateBps, false)
	if err != nil {
		t.Fatalf("ComputeTotals error: %v", err)
	}
	want := Totals{SubtotalCents: 100000, DiscountCents: 0, TaxCents: 8000, TotalCents: 108000}
	if got != want {
		t.Fatalf("totals = %+v, want %+v", got, want)
	}
}

func TestComputeTotals_PercentageDiscount(t *testing.T) {
	d := Discount{Type: enums.DiscountTypePercentage, PercentBps: 1000} // 10%
	got, err := ComputeTotals(items(100000), d, DefaultTaxRateBps, false)
	if err != nil {
		t.Fatalf("ComputeTotals error: %v", err)
	}
	if got.DiscountCents != 10000 {
		t.Fatalf("discount %d, want 10000", got.DiscountCents)
	}
	if got.TaxCents != 7200 {
		t.Fatalf("tax %d, want 7200 (8%% of 90000)", got.TaxCents)
	}
	if got.TotalCents != 97200 {
		t.Fatalf("total %d, want 97200", got.TotalCents)
	}
}

func TestComputeTotals_FixedDiscountClamped(t *testing.T) {
	d := Discount{Type: enums.DiscountTypeFixed, FixedCents: 50000}
	got, err := ComputeTotals(items(30000), d, DefaultTaxRateBps, false)
	if err != nil {
		t.Fatalf("ComputeTotals error: %v", err)
	}
	if got.DiscountCents != 30000 {
		t.Fatalf("fixed discount should clamp to subtotal, got %d", got.DiscountCents)
	}
	if got.TaxCents != 0 || got.TotalCents != 0 {
		t.Fatalf("fully discounted invoice should have zero tax and total: %+v", got)
	}
}

func TestComputeTotals_TaxExempt(t *testing.T) {
	got, err := ComputeTotals(items(100000), NoDiscount, DefaultTaxRateBps, true)
	if err != nil {
		t.Fatalf("ComputeTotals error: %v", err)
	}
	if got.TaxCents != 0 {
		t.Fatalf("exempt invoice should carry no tax, got %d", got.TaxCents)
	}
	if got.TotalCents != 100000 {
		t.Fatalf("total %d, want 100000", got.TotalCents)
	}
}

func TestComputeTotals_TaxRounding(t *testing.T) {
	// 8% of 10037 = 802.96 -> 803
	got, err := ComputeTotals(items(10037), NoDiscount, DefaultTaxRateBps, false)
	if err != nil {
		t.Fatalf("ComputeTotals error: %v", err)
	}
	if got.TaxCents != 803 {
		t.Fatalf("tax %d, want 803", got.TaxCents)
	}

	// 8% of 10031 = 802.48 -> 802
	got, err = ComputeTotals(items(10031), NoDiscount, DefaultTaxRateBps, false)
	if err != nil {
		t.Fatalf("ComputeTotals error: %v", err)
	}
	if got.TaxCents != 802 {
		t.Fatalf("tax %d, want 802", got.TaxCents)
	}
}

func TestComputeTotals_EmptyItems(t *testing.T) {
	got, err := ComputeTotals(nil, NoDiscount, DefaultTaxRateBps, false)
	if err != nil {
		t.Fatalf("ComputeTotals error: %v", err)
	}
	if got != (Totals{}) {
		t.Fatalf("empty invoice should produce zero totals: %+v", got)
	}
}

func TestComputeTotals_Validation(t *testing.T) {
	tests := []struct {
		name string
		d    Discount
		rate int64
	}{
		{name: "negative tax rate", d: NoDiscount, rate: -1},
		{name: "percent over 100", d: Discount{Type: enums.DiscountTypePercentage, PercentBps: 10001}, rate: DefaultTaxRateBps},
		{name: "negative percent", d: Discount{Type: enums.DiscountTypePercentage, PercentBps: -5}, rate: DefaultTaxRateBps},
		{name: "negative fixed", d: Discount{Type: enums.DiscountTypeFixed, FixedCents: -100}, rate: DefaultTaxRateBps},
		{name: "unknown discount type", d: Discount{Type: enums.DiscountType("mystery")}, rate: DefaultTaxRateBps},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeTotals(items(10000), tc.d, tc.rate, false)
			if !errors.IsCode(err, errors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDiscountFromInvoice(t *testing.T) {
	inv := &models.Invoice{
		DiscountType:       enums.DiscountTypePercentage,
		DiscountPercentBps: 1500,
	}
	d := DiscountFromInvoice(inv)
	if d.Type != enums.DiscountTypePercentage || d.PercentBps != 1500 {
		t.Fatalf("unexpected discount: %+v", d)
	}
	if DiscountFromInvoice(nil) != NoDiscount {
		t.Fatal("nil invoice should map to NoDiscount")
	}
}
