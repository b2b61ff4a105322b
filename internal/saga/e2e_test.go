package saga

import (
	"context"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"ordersaga/internal/inventory"
	"ordersaga/internal/metrics"
	"ordersaga/internal/order"
	"ordersaga/internal/pricing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decimalArg string

func (a decimalArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := decimal.NewFromString(s)
	return err == nil && got.Equal(decimal.RequireFromString(string(a)))
}

// collaborators serves inventory and pricing the way the real services do.
func collaborators(t *testing.T, stock int64, pricingDelay time.Duration) (inv, pr *httptest.Server, invCalls *int32) {
	t.Helper()
	var calls int32

	inv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"product_id": 1, "product_name": "Laptop", "quantity_available": ` +
			strconv.FormatInt(stock, 10) + `, "unit_price": 100.00}`))
	}))
	t.Cleanup(inv.Close)

	release := make(chan struct{})
	pr = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pricingDelay > 0 {
			select {
			case <-time.After(pricingDelay):
			case <-release:
				return
			}
		}
		_, _ = w.Write([]byte(`{"subtotal": 200.0, "discount": 0.0, "tax": 28.0, "tax_rate": 14.0,
			"total_amount": 228.0, "region": "Cairo",
			"items": [{"product_id": 1, "quantity": 2, "unit_price": 100.0,
				"discounted_price": 100.0, "discount_percentage": 0, "line_total": 200.0}]}`))
	}))
	t.Cleanup(pr.Close)
	t.Cleanup(func() { close(release) })

	return inv, pr, &calls
}

func TestSaga_EndToEnd_Scenario(t *testing.T) {
	inv, pr, _ := collaborators(t, 50, 0)

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 12, 11, 10, 30, 45, 0, time.UTC)
	dbMock.ExpectBegin()
	dbMock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(1), decimalArg("200"), decimalArg("0"), decimalArg("28"), decimalArg("228"), "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1001, created))
	dbMock.ExpectQuery(`INSERT INTO order_items`).
		WithArgs(int64(1001), int64(1), int64(2), decimalArg("100"), decimalArg("100"), decimalArg("0"), decimalArg("200")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	dbMock.ExpectExec(`UPDATE inventory`).
		WithArgs(int64(-2), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	effects := &recordingEffects{}
	s := New(
		inventory.NewReserver(inventory.NewClient(inv.URL, time.Second)),
		pricing.NewClient(pr.URL, time.Second, "Cairo"),
		order.NewService(order.NewRepository(db), nil),
		effects,
		metrics.NewRegistry(),
	)

	res, err := s.CreateOrder(context.Background(),
		input(t, `{"customer_id": 1, "line_items": [{"product_id": 1, "quantity": 2}]}`))
	require.NoError(t, err)

	assert.Equal(t, int64(1001), res.Order.ID)
	assert.Equal(t, "200.00", res.Quote.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", res.Quote.Discount.StringFixed(2))
	assert.Equal(t, "28.00", res.Quote.Tax.StringFixed(2))
	assert.Equal(t, "228.00", res.Order.TotalAmount.StringFixed(2))
	require.Len(t, res.Order.Lines, 1)
	assert.Equal(t, "200.00", res.Order.Lines[0].LineTotal.StringFixed(2))
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSaga_EndToEnd_PricingTimeoutWritesNothing(t *testing.T) {
	inv, pr, _ := collaborators(t, 50, time.Second)

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(
		inventory.NewReserver(inventory.NewClient(inv.URL, time.Second)),
		pricing.NewClient(pr.URL, 30*time.Millisecond, "Cairo"),
		order.NewService(order.NewRepository(db), nil),
		&recordingEffects{},
		metrics.NewRegistry(),
	)

	res, err := s.CreateOrder(context.Background(),
		input(t, `{"customer_id": 1, "line_items": [{"product_id": 1, "quantity": 2}]}`))

	assert.Nil(t, res)
	rej := requireRejection(t, err)
	assert.Equal(t, StagePricing, rej.Stage)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSaga_EndToEnd_InsufficientStock(t *testing.T) {
	inv, pr, calls := collaborators(t, 1, 0)

	s := New(
		inventory.NewReserver(inventory.NewClient(inv.URL, time.Second)),
		pricing.NewClient(pr.URL, time.Second, "Cairo"),
		nil,
		nil,
		nil,
	)

	_, err := s.CreateOrder(context.Background(),
		input(t, `{"customer_id": 1, "line_items": [{"product_id": 1, "quantity": 2}, {"product_id": 1, "quantity": 1}]}`))

	rej := requireRejection(t, err)
	assert.Equal(t, StageInventory, rej.Stage)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}
