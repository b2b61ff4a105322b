package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ordersaga/internal/transport"
)

const TypeOrderConfirmation = "order_confirmation"

type sendRequest struct {
	OrderID          int64  `json:"order_id"`
	NotificationType string `json:"notification_type"`
}

type sendResponse struct {
	NotificationID json.Number `json:"notification_id"`
}

type Client struct {
	http *transport.Client
}

func NewClient(baseURL string, timeout time.Duration, opts ...transport.Option) *Client {
	return &Client{http: transport.NewClient("notification", baseURL, timeout, opts...)}
}

// Send asks the notification service to notify the customer of an order.
// The service reads the order back through GET /api/orders/{id}.
func (c *Client) Send(ctx context.Context, orderID int64, notificationType string) (string, error) {
	var resp sendResponse
	req := sendRequest{OrderID: orderID, NotificationType: notificationType}
	if err := c.http.DoJSON(ctx, http.MethodPost, "/api/notifications/send", req, &resp); err != nil {
		return "", err
	}
	return resp.NotificationID.String(), nil
}
