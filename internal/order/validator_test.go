package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(s string) json.RawMessage {
	return json.RawMessage(s)
}

func decodeInput(t *testing.T, body string) CreateOrderInput {
	t.Helper()
	var in CreateOrderInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func TestValidate_Success(t *testing.T) {
	in := decodeInput(t, `{"customer_id": 7, "line_items": [{"product_id": 1, "quantity": 2}, {"product_id": 3, "quantity": 1}], "region": " Giza "}`)

	req, err := Validate(in)
	require.NoError(t, err)

	assert.Equal(t, int64(7), req.CustomerID)
	assert.Equal(t, []RequestedItem{{ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 1}}, req.LineItems)
	assert.Equal(t, "Giza", req.Region)
}

func TestValidate_FirstFailureWins(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		index int
	}{
		{"missing customer", `{"line_items": [{"product_id": 1, "quantity": 1}]}`, "customer_id", -1},
		{"zero customer", `{"customer_id": 0, "line_items": []}`, "customer_id", -1},
		{"negative customer", `{"customer_id": -4}`, "customer_id", -1},
		{"fractional customer", `{"customer_id": 1.5, "line_items": [{"product_id": 1, "quantity": 1}]}`, "customer_id", -1},
		{"missing line items", `{"customer_id": 1}`, "line_items", -1},
		{"empty line items", `{"customer_id": 1, "line_items": []}`, "line_items", -1},
		{"null item", `{"customer_id": 1, "line_items": [null]}`, "product_id", 0},
		{"missing product", `{"customer_id": 1, "line_items": [{"quantity": 1}]}`, "product_id", 0},
		{"product before quantity", `{"customer_id": 1, "line_items": [{"product_id": 0, "quantity": 0}]}`, "product_id", 0},
		{"missing quantity", `{"customer_id": 1, "line_items": [{"product_id": 1, "quantity": 1}, {"product_id": 2}]}`, "quantity", 1},
		{"zero quantity", `{"customer_id": 1, "line_items": [{"product_id": 1, "quantity": 1}, {"product_id": 2, "quantity": 0}]}`, "quantity", 1},
		{"negative quantity", `{"customer_id": 1, "line_items": [{"product_id": 1, "quantity": -3}, {"product_id": 2, "quantity": 0}]}`, "quantity", 0},
		{"exponent quantity", `{"customer_id": 1, "line_items": [{"product_id": 1, "quantity": 1e2}]}`, "quantity", 0},
		{"null customer", `{"customer_id": null, "line_items": [{"product_id": 1, "quantity": 1}]}`, "customer_id", -1},
		{"quoted customer", `{"customer_id": "5", "line_items": [{"product_id": 1, "quantity": 2}]}`, "customer_id", -1},
		{"quoted product", `{"customer_id": 5, "line_items": [{"product_id": "1", "quantity": 2}]}`, "product_id", 0},
		{"quoted quantity", `{"customer_id": 5, "line_items": [{"product_id": 1, "quantity": 2}, {"product_id": 2, "quantity": "2"}]}`, "quantity", 1},
		{"boolean quantity", `{"customer_id": 5, "line_items": [{"product_id": 1, "quantity": 2}, {"product_id": 2, "quantity": true}]}`, "quantity", 1},
		{"object product", `{"customer_id": 5, "line_items": [{"product_id": {"id": 1}, "quantity": 2}]}`, "product_id", 0},
		{"trailing fraction", `{"customer_id": 5, "line_items": [{"product_id": 1, "quantity": 2.0}]}`, "quantity", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(decodeInput(t, tt.body))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.index, ve.Index)
			assert.Equal(t, KindInput, KindOf(err))
		})
	}
}

func TestValidate_ProductsAlias(t *testing.T) {
	in := decodeInput(t, `{"customer_id": 1, "products": [{"product_id": 1, "quantity": 2}, {"product_id": 3, "quantity": 1}]}`)

	req, err := Validate(in)
	require.NoError(t, err)
	assert.Len(t, req.LineItems, 2)

	in = decodeInput(t, `{"customer_id": 1, "line_items": [{"product_id": 4, "quantity": 1}], "products": [{"product_id": 1, "quantity": 2}]}`)
	req, err = Validate(in)
	require.NoError(t, err)
	assert.Equal(t, []RequestedItem{{ProductID: 4, Quantity: 1}}, req.LineItems)
}

func TestValidationError_Message(t *testing.T) {
	assert.Equal(t, "customer_id: is required",
		(&ValidationError{Field: "customer_id", Index: -1, Reason: reasonMissing}).Error())
	assert.Equal(t, "line_items[2].quantity: must be a positive integer",
		(&ValidationError{Field: "quantity", Index: 2, Reason: reasonPositive}).Error())
}

func TestValidate_DirectInput(t *testing.T) {
	in := CreateOrderInput{
		CustomerID: num("12"),
		LineItems:  []*LineItemInput{{ProductID: num("5"), Quantity: num("9")}},
	}

	req, err := Validate(in)
	require.NoError(t, err)
	assert.Equal(t, int64(12), req.CustomerID)
	assert.Equal(t, "", req.Region)
}
