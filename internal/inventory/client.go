package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ordersaga/internal/order"
	"ordersaga/internal/transport"

	"github.com/shopspring/decimal"
)

// Product is the inventory collaborator's view of one product.
type Product struct {
	ProductID         int64           `json:"product_id"`
	ProductName       string          `json:"product_name"`
	QuantityAvailable int64           `json:"quantity_available"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

type Client struct {
	http *transport.Client
}

func NewClient(baseURL string, timeout time.Duration, opts ...transport.Option) *Client {
	return &Client{http: transport.NewClient("inventory", baseURL, timeout, opts...)}
}

// GetProduct reads current stock and price. A 404 is reported as
// order.ErrProductNotFound.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var p Product
	err := c.http.DoJSON(ctx, http.MethodGet, "/inventory/"+strconv.FormatInt(productID, 10), nil, &p)
	if transport.IsNotFound(err) {
		return nil, fmt.Errorf("product %d: %w", productID, order.ErrProductNotFound)
	}
	if err != nil {
		return nil, err
	}

	if p.QuantityAvailable < 0 || p.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("product %d: %w: negative stock or price", productID, transport.ErrMalformed)
	}
	if p.ProductID == 0 {
		p.ProductID = productID
	}
	return &p, nil
}

// kindOf maps a lookup failure onto the order error taxonomy.
func kindOf(err error) order.Kind {
	switch {
	case errors.Is(err, order.ErrProductNotFound), errors.Is(err, order.ErrInsufficientStock):
		return order.KindBusinessRule
	default:
		return order.KindUnavailable
	}
}
