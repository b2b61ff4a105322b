package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCreateOrderResponse(t *testing.T) {
	items, quote := twoLineFixture()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	o := &Order{ID: 41, CustomerID: 7, Status: StatusConfirmed, CreatedAt: created, TotalAmount: quote.TotalAmount}

	resp := ToCreateOrderResponse(o, items, quote)

	assert.True(t, resp.Success)
	assert.Equal(t, int64(41), resp.OrderID)
	assert.Equal(t, StatusConfirmed, resp.Status)
	require.Len(t, resp.LineItems, 2)
	assert.Equal(t, "25.50", resp.LineItems[1].UnitPrice)
	assert.Equal(t, "225.50", resp.Quote.Subtotal)
	assert.Equal(t, "0.00", resp.Quote.Discount)
	assert.Equal(t, "14", resp.Quote.TaxRate)
	assert.Equal(t, "257.07", resp.Quote.TotalAmount)
	assert.Equal(t, "200.00", resp.Quote.Items[0].LineTotal)
}

func TestToOrderResponse(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		assert.Equal(t, OrderResponse{}, ToOrderResponse(nil))
	})

	t.Run("WithLines", func(t *testing.T) {
		o := &Order{
			ID: 3, CustomerID: 1,
			Subtotal: dec("200"), Discount: dec("0"), Tax: dec("28"), TotalAmount: dec("228"),
			Status: StatusConfirmed,
			Lines: []OrderLine{
				{ProductID: 1, ProductName: "Laptop", Quantity: 2, UnitPrice: dec("100"), DiscountedPrice: dec("100"), DiscountPercent: dec("0"), LineTotal: dec("200")},
			},
		}

		raw, err := json.Marshal(ToOrderResponse(o))
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "228.00", got["total_amount"])
		assert.Equal(t, float64(1), got["customer_id"])
		items := got["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "Laptop", items[0].(map[string]any)["product_name"])
	})

	t.Run("HeadersOnly", func(t *testing.T) {
		resps := ToOrderResponses([]*Order{{ID: 1}, {ID: 2}})
		require.Len(t, resps, 2)
		assert.Nil(t, resps[0].Items)
	})
}
