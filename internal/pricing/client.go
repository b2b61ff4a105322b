package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ordersaga/internal/logger"
	"ordersaga/internal/order"
	"ordersaga/internal/transport"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var totalTolerance = decimal.RequireFromString("0.01")

type calculateRequest struct {
	Products []productLine `json:"products"`
	Region   string        `json:"region"`
}

// UnitPrice goes out as a bare JSON number; the collaborator rejects strings.
type productLine struct {
	ProductID int64       `json:"product_id"`
	Quantity  int64       `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
}

type calculateResponse struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Region      string          `json:"region"`
	Items       []quotedLine    `json:"items"`
}

type quotedLine struct {
	ProductID          int64           `json:"product_id"`
	Quantity           int64           `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountedPrice    decimal.Decimal `json:"discounted_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	LineTotal          decimal.Decimal `json:"line_total"`
}

type Client struct {
	http          *transport.Client
	defaultRegion string
}

func NewClient(baseURL string, timeout time.Duration, defaultRegion string, opts ...transport.Option) *Client {
	return &Client{
		http:          transport.NewClient("pricing", baseURL, timeout, opts...),
		defaultRegion: defaultRegion,
	}
}

// Quote sends every reserved line in one call. There is no retry; any
// failure is reported as a collaborator fault.
func (c *Client) Quote(ctx context.Context, items []order.PricedItem, region string) (order.PriceQuote, error) {
	const op = "pricing.Quote"

	if region == "" {
		region = c.defaultRegion
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "pricing"),
		zap.String("region", region),
		zap.Int("line_count", len(items)),
	)

	req := calculateRequest{
		Products: make([]productLine, 0, len(items)),
		Region:   region,
	}
	for _, it := range items {
		req.Products = append(req.Products, productLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: json.Number(it.UnitPrice.String()),
		})
	}

	var resp calculateResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, "/api/pricing/calculate", req, &resp); err != nil {
		return order.PriceQuote{}, order.E(order.KindUnavailable, op, err)
	}

	terms := make([]LineTerms, 0, len(resp.Items))
	for _, l := range resp.Items {
		terms = append(terms, LineTerms{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			DiscountPercent: l.DiscountPercentage,
		})
	}

	if resp.Region != "" {
		region = resp.Region
	}

	q, err := BuildQuote(items, terms, resp.TaxRate, region)
	if err != nil {
		log.Warn("pricing response does not match reserved items", zap.Error(err))
		return order.PriceQuote{}, order.E(order.KindUnavailable, op, err)
	}

	if q.TotalAmount.Sub(resp.TotalAmount).Abs().GreaterThan(totalTolerance) {
		log.Warn("collaborator total differs from recomputed total",
			zap.String("reported", resp.TotalAmount.String()),
			zap.String("recomputed", q.TotalAmount.StringFixed(2)),
		)
	}

	log.Info("quote received",
		zap.String("subtotal", q.Subtotal.StringFixed(2)),
		zap.String("tax", q.Tax.StringFixed(2)),
		zap.String("total_amount", q.TotalAmount.StringFixed(2)),
	)

	return q, nil
}
