package pricing

import (
	"fmt"

	"ordersaga/internal/order"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineTerms is what the pricing collaborator decides for one line: which
// discount applies. Money is recomputed locally from it.
type LineTerms struct {
	ProductID       int64
	Quantity        int64
	DiscountPercent decimal.Decimal
}

// BuildQuote prices items under the given terms. Each line is rounded to two
// places before summation, which keeps lineTotal == discountedPrice*qty and
// total == subtotal+tax exact. Unit prices come from items, never from the
// collaborator.
func BuildQuote(
	items []order.PricedItem,
	terms []LineTerms,
	taxRatePercent decimal.Decimal,
	region string,
) (order.PriceQuote, error) {
	if len(terms) != len(items) {
		return order.PriceQuote{}, fmt.Errorf("%w: %d quote lines for %d items",
			order.ErrQuoteMismatch, len(terms), len(items))
	}
	if taxRatePercent.IsNegative() {
		return order.PriceQuote{}, fmt.Errorf("%w: negative tax rate %s",
			order.ErrQuoteMismatch, taxRatePercent)
	}

	q := order.PriceQuote{
		Subtotal:       decimal.Zero,
		Discount:       decimal.Zero,
		TaxRatePercent: taxRatePercent,
		Region:         region,
		Items:          make([]order.QuoteLine, 0, len(items)),
	}

	for i, it := range items {
		t := terms[i]
		if t.ProductID != it.ProductID || t.Quantity != it.Quantity {
			return order.PriceQuote{}, fmt.Errorf("%w: line %d is product %d x%d, expected product %d x%d",
				order.ErrQuoteMismatch, i, t.ProductID, t.Quantity, it.ProductID, it.Quantity)
		}
		if t.DiscountPercent.IsNegative() || t.DiscountPercent.GreaterThan(hundred) {
			return order.PriceQuote{}, fmt.Errorf("%w: discount %s%% on product %d",
				order.ErrQuoteMismatch, t.DiscountPercent, t.ProductID)
		}

		qty := decimal.NewFromInt(it.Quantity)
		discounted := it.UnitPrice.Mul(hundred.Sub(t.DiscountPercent)).Div(hundred).Round(2)
		lineTotal := discounted.Mul(qty)
		lineDiscount := it.UnitPrice.Sub(discounted).Mul(qty).Round(2)

		q.Items = append(q.Items, order.QuoteLine{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountedPrice: discounted,
			DiscountPercent: t.DiscountPercent,
			LineTotal:       lineTotal,
		})
		q.Subtotal = q.Subtotal.Add(lineTotal)
		q.Discount = q.Discount.Add(lineDiscount)
	}

	q.Tax = q.Subtotal.Mul(taxRatePercent).Div(hundred).Round(2)
	q.TotalAmount = q.Subtotal.Add(q.Tax)

	return q, nil
}
