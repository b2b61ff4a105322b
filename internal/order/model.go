package order

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const StatusConfirmed OrderStatus = "confirmed"

// CreateOrderInput is the order request as received on the wire. Numeric
// fields are kept as raw JSON tokens so a quoted or boolean value reaches the
// validator and is reported against its field instead of failing the decode.
// Products is the storefront's older name for LineItems and is only read when
// LineItems is absent.
type CreateOrderInput struct {
	CustomerID json.RawMessage  `json:"customer_id"`
	LineItems  []*LineItemInput `json:"line_items"`
	Products   []*LineItemInput `json:"products,omitempty"`
	Region     string           `json:"region,omitempty"`
}

type LineItemInput struct {
	ProductID json.RawMessage `json:"product_id"`
	Quantity  json.RawMessage `json:"quantity"`
}

// OrderRequest is a validated CreateOrderInput.
type OrderRequest struct {
	CustomerID int64
	LineItems  []RequestedItem
	Region     string
}

type RequestedItem struct {
	ProductID int64
	Quantity  int64
}

// PricedItem is a requested line after the inventory check. UnitPrice is
// the inventory price at reservation time.
type PricedItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type QuoteLine struct {
	ProductID       int64
	Quantity        int64
	UnitPrice       decimal.Decimal
	DiscountedPrice decimal.Decimal
	DiscountPercent decimal.Decimal
	LineTotal       decimal.Decimal
}

type PriceQuote struct {
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Tax            decimal.Decimal
	TaxRatePercent decimal.Decimal
	TotalAmount    decimal.Decimal
	Region         string
	Items          []QuoteLine
}

// StockAdjustment is applied to the inventory record inside the commit.
type StockAdjustment struct {
	ProductID     int64
	QuantityDelta int64
}

type Order struct {
	ID          int64           `json:"id"`
	CustomerID  int64           `json:"customer_id"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []OrderLine     `json:"lines"`
}

type OrderLine struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// Scales of the ledger's NUMERIC columns.
const (
	moneyScale     = 2
	unitPriceScale = 4
	percentScale   = 2
)

// asStored returns a copy of o rounded the way the ledger columns round it,
// so an order built in memory reads the same as one loaded back.
func (o *Order) asStored() *Order {
	c := *o
	c.Subtotal = o.Subtotal.Round(moneyScale)
	c.Discount = o.Discount.Round(moneyScale)
	c.Tax = o.Tax.Round(moneyScale)
	c.TotalAmount = o.TotalAmount.Round(moneyScale)
	if o.Lines != nil {
		c.Lines = make([]OrderLine, len(o.Lines))
		for i, l := range o.Lines {
			l.UnitPrice = l.UnitPrice.Round(unitPriceScale)
			l.DiscountedPrice = l.DiscountedPrice.Round(moneyScale)
			l.DiscountPercent = l.DiscountPercent.Round(percentScale)
			l.LineTotal = l.LineTotal.Round(moneyScale)
			c.Lines[i] = l
		}
	}
	return &c
}

// StockAdjustments derives the inventory decrements for a set of reserved
// items, one per item, in item order.
func StockAdjustments(items []PricedItem) []StockAdjustment {
	adj := make([]StockAdjustment, 0, len(items))
	for _, it := range items {
		adj = append(adj, StockAdjustment{
			ProductID:     it.ProductID,
			QuantityDelta: -it.Quantity,
		})
	}
	return adj
}
