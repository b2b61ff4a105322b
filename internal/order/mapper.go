package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire DTOs. Money goes out as fixed two-place strings so clients never
// see float artefacts.

type LineItemResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type QuoteLineResponse struct {
	ProductID          int64  `json:"product_id"`
	Quantity           int64  `json:"quantity"`
	UnitPrice          string `json:"unit_price"`
	DiscountedPrice    string `json:"discounted_price"`
	DiscountPercentage string `json:"discount_percentage"`
	LineTotal          string `json:"line_total"`
}

type QuoteResponse struct {
	Subtotal    string              `json:"subtotal"`
	Discount    string              `json:"discount"`
	Tax         string              `json:"tax"`
	TaxRate     string              `json:"tax_rate"`
	TotalAmount string              `json:"total_amount"`
	Region      string              `json:"region"`
	Items       []QuoteLineResponse `json:"items"`
}

type CreateOrderResponse struct {
	Success    bool               `json:"success"`
	OrderID    int64              `json:"order_id"`
	CustomerID int64              `json:"customer_id"`
	LineItems  []LineItemResponse `json:"line_items"`
	Quote      QuoteResponse      `json:"quote"`
	CreatedAt  time.Time          `json:"created_at"`
	Status     OrderStatus        `json:"status"`
	Message    string             `json:"message"`
}

type OrderItemResponse struct {
	ProductID          int64  `json:"product_id"`
	ProductName        string `json:"product_name"`
	Quantity           int64  `json:"quantity"`
	UnitPrice          string `json:"unit_price"`
	DiscountedPrice    string `json:"discounted_price"`
	DiscountPercentage string `json:"discount_percentage"`
	LineTotal          string `json:"line_total"`
}

type OrderResponse struct {
	OrderID     int64               `json:"order_id"`
	CustomerID  int64               `json:"customer_id"`
	Subtotal    string              `json:"subtotal"`
	Discount    string              `json:"discount"`
	Tax         string              `json:"tax"`
	TotalAmount string              `json:"total_amount"`
	Status      OrderStatus         `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	Items       []OrderItemResponse `json:"items,omitempty"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// percent drops trailing zeros: 10.00 becomes "10".
func percent(d decimal.Decimal) string { return d.String() }

func ToQuoteResponse(q PriceQuote) QuoteResponse {
	lines := make([]QuoteLineResponse, 0, len(q.Items))
	for _, l := range q.Items {
		lines = append(lines, QuoteLineResponse{
			ProductID:          l.ProductID,
			Quantity:           l.Quantity,
			UnitPrice:          money(l.UnitPrice),
			DiscountedPrice:    money(l.DiscountedPrice),
			DiscountPercentage: percent(l.DiscountPercent),
			LineTotal:          money(l.LineTotal),
		})
	}
	return QuoteResponse{
		Subtotal:    money(q.Subtotal),
		Discount:    money(q.Discount),
		Tax:         money(q.Tax),
		TaxRate:     percent(q.TaxRatePercent),
		TotalAmount: money(q.TotalAmount),
		Region:      q.Region,
		Items:       lines,
	}
}

func ToCreateOrderResponse(o *Order, items []PricedItem, q PriceQuote) CreateOrderResponse {
	lineItems := make([]LineItemResponse, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, LineItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   money(it.UnitPrice),
		})
	}

	return CreateOrderResponse{
		Success:    true,
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		LineItems:  lineItems,
		Quote:      ToQuoteResponse(q),
		CreatedAt:  o.CreatedAt,
		Status:     o.Status,
		Message:    "Order created successfully",
	}
}

func ToOrderResponse(o *Order) OrderResponse {
	if o == nil {
		return OrderResponse{}
	}

	resp := OrderResponse{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Subtotal:    money(o.Subtotal),
		Discount:    money(o.Discount),
		Tax:         money(o.Tax),
		TotalAmount: money(o.TotalAmount),
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
	}

	for _, l := range o.Lines {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID:          l.ProductID,
			ProductName:        l.ProductName,
			Quantity:           l.Quantity,
			UnitPrice:          money(l.UnitPrice),
			DiscountedPrice:    money(l.DiscountedPrice),
			DiscountPercentage: percent(l.DiscountPercent),
			LineTotal:          money(l.LineTotal),
		})
	}

	return resp
}

func ToOrderResponses(orders []*Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderResponse(o))
	}
	return out
}
