package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ordersaga/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/notifications/send", r.URL.Path)

			var body sendRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(41), body.OrderID)
			assert.Equal(t, TypeOrderConfirmation, body.NotificationType)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success": true, "notification_id": 9001}`))
		}))
		defer srv.Close()

		id, err := NewClient(srv.URL, time.Second).Send(context.Background(), 41, TypeOrderConfirmation)
		require.NoError(t, err)
		assert.Equal(t, "9001", id)
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second).Send(context.Background(), 41, TypeOrderConfirmation)

		var se *transport.StatusError
		assert.ErrorAs(t, err, &se)
	})
}
