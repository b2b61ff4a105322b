package order

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	reasonMissing  = "is required"
	reasonPositive = "must be a positive integer"
	reasonEmpty    = "must contain at least one item"
)

// Validate checks an incoming request field by field and stops at the first
// failure: customer_id, then line_items, then each item in index order
// (product_id before quantity). It performs no I/O.
func Validate(in CreateOrderInput) (OrderRequest, error) {
	if missing(in.CustomerID) {
		return OrderRequest{}, &ValidationError{Field: "customer_id", Index: -1, Reason: reasonMissing}
	}
	customerID, ok := positiveInt(in.CustomerID)
	if !ok {
		return OrderRequest{}, &ValidationError{Field: "customer_id", Index: -1, Reason: reasonPositive}
	}

	lineItems := in.LineItems
	if lineItems == nil {
		lineItems = in.Products
	}
	if lineItems == nil {
		return OrderRequest{}, &ValidationError{Field: "line_items", Index: -1, Reason: reasonMissing}
	}
	if len(lineItems) == 0 {
		return OrderRequest{}, &ValidationError{Field: "line_items", Index: -1, Reason: reasonEmpty}
	}

	items := make([]RequestedItem, 0, len(lineItems))
	for i, li := range lineItems {
		if li == nil || missing(li.ProductID) {
			return OrderRequest{}, &ValidationError{Field: "product_id", Index: i, Reason: reasonMissing}
		}
		productID, ok := positiveInt(li.ProductID)
		if !ok {
			return OrderRequest{}, &ValidationError{Field: "product_id", Index: i, Reason: reasonPositive}
		}

		if missing(li.Quantity) {
			return OrderRequest{}, &ValidationError{Field: "quantity", Index: i, Reason: reasonMissing}
		}
		qty, ok := positiveInt(li.Quantity)
		if !ok {
			return OrderRequest{}, &ValidationError{Field: "quantity", Index: i, Reason: reasonPositive}
		}

		items = append(items, RequestedItem{ProductID: productID, Quantity: qty})
	}

	return OrderRequest{
		CustomerID: customerID,
		LineItems:  items,
		Region:     strings.TrimSpace(in.Region),
	}, nil
}

var jsonNull = []byte("null")

func missing(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, jsonNull)
}

// positiveInt accepts bare base-10 integer tokens only. Strings such as "5",
// booleans, "2.0" and "1e3" are rejected along with zero and negatives.
func positiveInt(raw json.RawMessage) (int64, bool) {
	tok := bytes.TrimSpace(raw)
	if len(tok) == 0 {
		return 0, false
	}
	for i, c := range tok {
		if c == '-' && i == 0 {
			continue
		}
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
