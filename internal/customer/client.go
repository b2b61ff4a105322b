package customer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ordersaga/internal/transport"
)

type loyaltyRequest struct {
	PointsToAdd int64 `json:"points_to_add"`
}

type loyaltyResponse struct {
	CustomerID  int64 `json:"customer_id"`
	PointsAdded int64 `json:"points_added"`
	TotalPoints int64 `json:"total_points"`
}

type Client struct {
	http *transport.Client
}

func NewClient(baseURL string, timeout time.Duration, opts ...transport.Option) *Client {
	return &Client{http: transport.NewClient("customer", baseURL, timeout, opts...)}
}

// AddLoyaltyPoints credits points and returns the customer's new balance.
func (c *Client) AddLoyaltyPoints(ctx context.Context, customerID, points int64) (int64, error) {
	var resp loyaltyResponse
	path := fmt.Sprintf("/api/customers/%d/loyalty", customerID)
	if err := c.http.DoJSON(ctx, http.MethodPut, path, loyaltyRequest{PointsToAdd: points}, &resp); err != nil {
		return 0, err
	}
	return resp.TotalPoints, nil
}
