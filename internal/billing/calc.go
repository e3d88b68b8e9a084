package billing

import (
	"billing-backend/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func money(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func round(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

// cents rounds an input amount to the two places the money columns hold.
func cents(f float64) decimal.Decimal { return money(f).Round(2) }

// PriceLine fills the amount and tax breakdown of item from its Price and
// Quantity. Price is tax inclusive, so base + tax always adds up to amount.
// Price itself is rounded to cents first.
func PriceLine(item *models.BillItem, ratePercent float64) {
	price := cents(item.Price)
	item.Price = price.InexactFloat64()
	qty := decimal.NewFromInt(int64(item.Quantity))
	amount := price.Mul(qty).Round(2)

	base := price
	if ratePercent > 0 {
		base = price.Div(decimal.NewFromInt(1).Add(money(ratePercent).Div(hundred))).Round(2)
	}

	item.Amount = round(amount)
	item.BasePrice = round(base)
	item.TaxAmount = round(amount.Sub(base.Mul(qty)))
}

// Totals recomputes the bill aggregates from its lines. FinalAmount is
// TotalAmount - Discount with no floor, with Discount rounded to cents.
func Totals(bill *models.Bill) {
	discount := cents(bill.Discount)
	bill.Discount = discount.InexactFloat64()

	total := decimal.Zero
	tax := decimal.Zero
	for _, it := range bill.Items {
		total = total.Add(money(it.Amount))
		tax = tax.Add(money(it.TaxAmount))
	}
	bill.TotalAmount = round(total)
	bill.TaxAmount = round(tax)
	bill.FinalAmount = round(total.Sub(discount))
}

// Subtotal is the tax-exclusive sum of the lines.
func Subtotal(bill *models.Bill) float64 {
	sum := decimal.Zero
	for _, it := range bill.Items {
		sum = sum.Add(money(it.BasePrice).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return round(sum)
}
